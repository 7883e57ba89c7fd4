package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const (
	DefaultWorkers = 2
	MaxWorkers     = 8
)

// JobRunner runs a single category. FeatureAcquisitionJob implements it.
type JobRunner interface {
	Run(ctx context.Context, category model.FeatureCategory, bbox model.BoundingBox) model.AcquisitionResult
	// Discard removes output left by an earlier run of the category.
	Discard(category model.FeatureCategory)
}

// ResultObserver is notified after every category finishes.
type ResultObserver interface {
	Observe(result model.AcquisitionResult)
}

// AcquisitionScheduler runs the whole catalog under a bounded worker pool. A
// failing category never stops its siblings.
type AcquisitionScheduler struct {
	job      JobRunner
	workers  int
	observer ResultObserver
}

func NewAcquisitionScheduler(job JobRunner, workers int, observer ResultObserver) *AcquisitionScheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &AcquisitionScheduler{job: job, workers: workers, observer: observer}
}

// RunAll returns one result per category, in catalog order.
func (s *AcquisitionScheduler) RunAll(ctx context.Context, categories []model.FeatureCategory, bbox model.BoundingBox) []model.AcquisitionResult {
	results := make([]model.AcquisitionResult, len(categories))
	var done atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			results[i] = s.runOne(ctx, category, bbox)
			s.report(results[i], int(done.Add(1)), len(categories))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *AcquisitionScheduler) runOne(ctx context.Context, category model.FeatureCategory, bbox model.BoundingBox) model.AcquisitionResult {
	if err := ctx.Err(); err != nil {
		s.job.Discard(category)
		return model.AcquisitionResult{
			Category: category.Name,
			Err:      &model.AcquisitionError{Category: category.Name, Stage: model.StageQuery, Err: err},
		}
	}

	// MkdirAll treats an existing directory as success, so concurrent
	// categories sharing a parent do not race.
	if err := os.MkdirAll(category.DestinationDir, DirPerm); err != nil {
		return model.AcquisitionResult{
			Category: category.Name,
			Err: &model.AcquisitionError{
				Category: category.Name,
				Stage:    model.StagePrepare,
				Err:      fmt.Errorf("create destination directory: %w", err),
			},
		}
	}

	slog.Info("generating category", "category", category.Name, "dir", category.DestinationDir)
	return s.job.Run(ctx, category, bbox)
}

func (s *AcquisitionScheduler) report(result model.AcquisitionResult, done, total int) {
	if result.OK() {
		slog.Info("category done",
			"category", result.Category,
			"bytes", result.Bytes,
			"duration", result.Duration,
			"progress", fmt.Sprintf("%d/%d", done, total))
	} else {
		slog.Error("category failed",
			"category", result.Category,
			"stage", result.Err.Stage,
			"error", result.Err.Err,
			"progress", fmt.Sprintf("%d/%d", done, total))
	}
	if s.observer != nil {
		s.observer.Observe(result)
	}
}
