package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// Fetcher sends a query to the geodata service and returns the raw response.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (io.ReadCloser, error)
}

// Converter turns a raw geodata response stream into a feature document.
type Converter interface {
	Name() string
	Convert(ctx context.Context, src io.Reader, dst io.Writer) error
}

// ComposeQuery wraps a category's query body in the Overpass QL envelope. The
// box is always the geographic one; the service does not know the output CRS.
func ComposeQuery(bbox model.BoundingBox, body string, timeoutSeconds int) string {
	var b strings.Builder
	b.WriteString("[out:json][bbox:")
	b.WriteString(bbox.Overpass())
	b.WriteString("]")
	if timeoutSeconds > 0 {
		b.WriteString("[timeout:")
		b.WriteString(strconv.Itoa(timeoutSeconds))
		b.WriteString("]")
	}
	b.WriteString(";(")
	b.WriteString(body)
	b.WriteString(");out body;>;out skel qt;")
	return b.String()
}

// FeatureAcquisitionJob acquires one category: query, convert, persist.
type FeatureAcquisitionJob struct {
	fetcher      Fetcher
	converter    Converter
	ext          string
	queryTimeout int
}

func NewFeatureAcquisitionJob(fetcher Fetcher, converter Converter, ext string, queryTimeout int) *FeatureAcquisitionJob {
	return &FeatureAcquisitionJob{
		fetcher:      fetcher,
		converter:    converter,
		ext:          ext,
		queryTimeout: queryTimeout,
	}
}

func (j *FeatureAcquisitionJob) OutputPath(category model.FeatureCategory) string {
	return filepath.Join(category.DestinationDir, category.Name+"."+j.ext)
}

// Run leaves either a complete <name>.<ext> or no file at all. A failed run
// also removes the previous run's file for the category.
func (j *FeatureAcquisitionJob) Run(ctx context.Context, category model.FeatureCategory, bbox model.BoundingBox) model.AcquisitionResult {
	start := time.Now()
	path := j.OutputPath(category)
	result := model.AcquisitionResult{Category: category.Name, Path: path}

	n, stage, err := j.run(ctx, category, bbox, path)
	result.Duration = time.Since(start)
	if err != nil {
		j.Discard(category)
		result.Err = &model.AcquisitionError{Category: category.Name, Stage: stage, Err: err}
		return result
	}

	result.Bytes = n
	return result
}

// Discard removes the category's output from an earlier run, if any.
func (j *FeatureAcquisitionJob) Discard(category model.FeatureCategory) {
	path := j.OutputPath(category)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove stale output", "category", category.Name, "path", path, "error", err)
	}
}

func (j *FeatureAcquisitionJob) run(ctx context.Context, category model.FeatureCategory, bbox model.BoundingBox, path string) (int64, model.Stage, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.StageQuery, err
	}

	query := ComposeQuery(bbox, category.Query, j.queryTimeout)
	slog.Debug("sending query", "category", category.Name, "query", query)

	body, err := j.fetcher.Fetch(ctx, query)
	if err != nil {
		return 0, model.StageQuery, err
	}
	src := &trackingReader{r: body}
	defer src.Close()

	tmp, err := os.CreateTemp(category.DestinationDir, "."+category.Name+".*.tmp")
	if err != nil {
		return 0, model.StagePrepare, fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	out := &countingWriter{w: tmp}
	convErr := j.converter.Convert(ctx, src, out)
	if readErr := src.Err(); readErr != nil {
		return 0, model.StageQuery, fmt.Errorf("read response: %w", readErr)
	}
	if convErr != nil {
		return 0, model.StageConvert, convErr
	}
	if err := ctx.Err(); err != nil {
		return 0, model.StageConvert, err
	}

	if err := tmp.Chmod(FilePerm); err != nil {
		return 0, model.StageConvert, fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, model.StageConvert, fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, model.StageConvert, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, model.StageConvert, fmt.Errorf("rename output: %w", err)
	}
	committed = true

	return out.n, "", nil
}

// trackingReader remembers the first read error of the response body so a
// broken download is reported as a query failure, not a conversion failure.
// Errors caused by our own Close are not recorded.
type trackingReader struct {
	r io.ReadCloser

	mu     sync.Mutex
	err    error
	closed bool
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.mu.Lock()
		if !t.closed && t.err == nil {
			t.err = err
		}
		t.mu.Unlock()
	}
	return n, err
}

func (t *trackingReader) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.r.Close()
}

func (t *trackingReader) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
