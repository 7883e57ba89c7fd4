package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/repository"
)

const (
	parkingLinesFile = "street_parking_lines.geojson"
)

// Notifier announces finished runs to downstream stages.
type Notifier interface {
	Publish(ctx context.Context, event model.GeneratedEvent) error
}

// Stages selects which parts of a run execute.
type Stages struct {
	Input  bool
	Output bool
	Tiles  bool
}

func AllStages() Stages { return Stages{Input: true, Output: true, Tiles: true} }

type Paths struct {
	MapstyleDir      string
	StreetParkingDir string
	OutputDir        string
	ViewerTemplate   string
	// StyleArchive is resolved against MapstyleDir when relative.
	StyleArchive string
}

func (p Paths) LayerRoot() string {
	return filepath.Join(p.MapstyleDir, "layer", "geojson")
}

func (p Paths) StyleArchivePath() string {
	if filepath.IsAbs(p.StyleArchive) {
		return p.StyleArchive
	}
	return filepath.Join(p.MapstyleDir, p.StyleArchive)
}

func (p Paths) Roots() CatalogRoots {
	return CatalogRoots{Layers: p.LayerRoot(), StreetParking: p.StreetParkingDir}
}

// Generator runs the whole pipeline for one location.
type Generator struct {
	transformer *CoordinateTransformer
	masks       *MaskGeometryBuilder
	scheduler   *AcquisitionScheduler
	style       *StyleDocumentConfigurer
	recorder    repository.RunRecorder
	notifier    Notifier
	paths       Paths
}

// NewGenerator wires the pipeline. recorder and notifier may be nil.
func NewGenerator(
	paths Paths,
	transformer *CoordinateTransformer,
	masks *MaskGeometryBuilder,
	scheduler *AcquisitionScheduler,
	style *StyleDocumentConfigurer,
	recorder repository.RunRecorder,
	notifier Notifier,
) *Generator {
	return &Generator{
		transformer: transformer,
		masks:       masks,
		scheduler:   scheduler,
		style:       style,
		recorder:    recorder,
		notifier:    notifier,
		paths:       paths,
	}
}

// Generate runs the selected stages. Problems detected before acquisition
// starts return a nil report. Otherwise the report is always returned and the
// error joins every failed category with any later stage failure.
func (g *Generator) Generate(ctx context.Context, loc model.Location, stages Stages) (*model.RunReport, error) {
	if err := loc.BBox.Validate(); err != nil {
		return nil, fmt.Errorf("location %s: %w", loc.Name, err)
	}
	projected, err := g.transformer.Transform(loc.BBox, model.WGS84, loc.CRS)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc.Name, err)
	}
	categories, err := Categories(g.paths.Roots(), loc.SkipCategories)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc.Name, err)
	}

	report := &model.RunReport{
		RunID:      uuid.NewString(),
		Location:   loc.Name,
		CRS:        loc.CRS,
		OutputRoot: filepath.Join(g.paths.OutputDir, loc.Name),
		StartedAt:  time.Now(),
	}
	logger := slog.With("run_id", report.RunID, "location", loc.Name)
	logger.Info("starting run",
		"bbox", loc.BBox.String(),
		"crs", loc.CRS.String(),
		"area_km2", fmt.Sprintf("%.2f", AreaKm2(loc.BBox)),
		"diagonal_km", fmt.Sprintf("%.2f", DiagonalKm(loc.BBox)))

	if stages.Input {
		logger.Info("stage input", "extent", projected.Corners())
		if _, err := g.masks.Build(projected); err != nil {
			return nil, fmt.Errorf("build masks: %w", err)
		}
		report.Results = g.scheduler.RunAll(ctx, categories, loc.BBox)
	}

	stageErr := g.runLaterStages(ctx, logger, loc, stages, report)
	if stageErr != nil {
		logger.Error("run aborted", "error", stageErr)
	}

	report.FinishedAt = time.Now()
	g.finish(ctx, logger, report)

	return report, errors.Join(stageErr, report.Err())
}

func (g *Generator) runLaterStages(ctx context.Context, logger *slog.Logger, loc model.Location, stages Stages, report *model.RunReport) error {
	if stages.Output {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("stage output")
		if err := g.configureStyle(loc); err != nil {
			return fmt.Errorf("output stage: %w", err)
		}
		if err := g.handoffParkingLines(logger); err != nil {
			return fmt.Errorf("output stage: %w", err)
		}
	}

	if stages.Tiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("stage tiles", "output", report.OutputRoot)
		if _, err := WriteViewer(g.paths.ViewerTemplate, report.OutputRoot, loc.Name, loc.BBox); err != nil {
			return fmt.Errorf("tiles stage: %w", err)
		}
		job, err := PlanTileJob(report.OutputRoot, g.masks.Files().Extent, loc.Tiles, loc.BBox)
		if err != nil {
			return fmt.Errorf("tiles stage: %w", err)
		}
		report.TileJob = job
	}
	return nil
}

func (g *Generator) configureStyle(loc model.Location) error {
	projectDir, err := filepath.Abs(g.paths.MapstyleDir)
	if err != nil {
		return fmt.Errorf("resolve mapstyle directory: %w", err)
	}
	subs := StyleSubstitutions(ScaleFactor(loc.BBox), loc.CRS, projectDir)
	out, err := g.style.ConfigureFile(g.paths.StyleArchivePath(), subs, loc.ExcludeLayers)
	if err != nil {
		return err
	}
	slog.Info("wrote style document", "path", out)
	return nil
}

// handoffParkingLines copies the street parking processor's lines into the
// layer tree, where the style document expects them.
func (g *Generator) handoffParkingLines(logger *slog.Logger) error {
	src := filepath.Join(g.paths.StreetParkingDir, "data", "output", parkingLinesFile)
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("street parking lines not found, skipping", "path", src)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read street parking lines: %w", err)
	}
	dst := filepath.Join(g.paths.LayerRoot(), "parking", parkingLinesFile)
	return writeFileAtomic(dst, data)
}

// finish records and announces the run. Neither may fail the run.
func (g *Generator) finish(ctx context.Context, logger *slog.Logger, report *model.RunReport) {
	failed := report.Failed()
	logger.Info("run finished",
		"categories", len(report.Results),
		"failed", len(failed),
		"bytes", report.BytesWritten(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if g.recorder != nil {
		if err := g.recorder.Record(ctx, report); err != nil {
			logger.Error("failed to record run", "error", err)
		}
	}
	if g.notifier != nil {
		event := model.NewGeneratedEvent(report, g.masks.Files().Extent)
		if err := g.notifier.Publish(ctx, event); err != nil {
			logger.Error("failed to publish run event", "error", err)
		}
	}
}
