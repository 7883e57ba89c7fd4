package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTool = "osmtogeojson"

	// waitDelay bounds how long Wait blocks on I/O after the process is killed.
	waitDelay = 5 * time.Second
	stderrMax = 4096
)

// Subprocess pipes the raw response through an external conversion tool that
// reads standard input and writes the converted document to standard output.
type Subprocess struct {
	path string
	args []string
}

func NewSubprocess(path string, args ...string) *Subprocess {
	if path == "" {
		path = DefaultTool
	}
	return &Subprocess{path: path, args: args}
}

func (s *Subprocess) Name() string {
	return filepath.Base(s.path)
}

// Check verifies the tool can be found before any category runs.
func (s *Subprocess) Check() error {
	if _, err := exec.LookPath(s.path); err != nil {
		return fmt.Errorf("conversion tool %s: %w", s.path, err)
	}
	return nil
}

// Convert starts the tool, feeds src into its stdin while it writes to dst, and
// waits for both. If ctx is cancelled the process is killed. If src is an
// io.Closer it is closed when the tool fails.
func (s *Subprocess) Convert(ctx context.Context, src io.Reader, dst io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)

	cmd := exec.CommandContext(gctx, s.path, s.args...)
	cmd.Stdout = dst
	stderr := &tailBuffer{max: stderrMax}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Name(), err)
	}

	g.Go(func() error {
		_, err := io.Copy(stdin, src)
		if cerr := stdin.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = cerr
		}
		// The tool may exit before draining stdin; its exit status decides.
		if err != nil && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("feed %s: %w", s.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		if err := cmd.Wait(); err != nil {
			// Unblock the feeding goroutine if it is stuck reading src.
			if c, ok := src.(io.Closer); ok {
				c.Close()
			}
			if msg := stderr.String(); msg != "" {
				return fmt.Errorf("%s: %w: %s", s.Name(), err, msg)
			}
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		return nil
	})

	return g.Wait()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
