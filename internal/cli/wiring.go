package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/core"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/repository"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/infrastructure/converter"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/infrastructure/events"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/pkg/config"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/pkg/metrics"
)

type checkedConverter interface {
	core.Converter
	Check() error
}

func newConverter(c config.AcquisitionConfig) (checkedConverter, error) {
	switch c.Converter {
	case "builtin":
		return converter.NewBuiltin(), nil
	case "osmtogeojson":
		return converter.NewSubprocess(c.ConverterPath), nil
	default:
		return nil, fmt.Errorf("unknown converter %q", c.Converter)
	}
}

// pipeline is a fully wired generator plus what has to be released after it.
type pipeline struct {
	generator *core.Generator
	metrics   *metrics.Acquisition
	closers   []func() error
}

func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	return errors.Join(errs...)
}

func buildPipeline(ctx context.Context, c *config.Config) (*pipeline, error) {
	conv, err := newConverter(c.Acquisition)
	if err != nil {
		return nil, err
	}
	if err := conv.Check(); err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(c.Overpass.Rate), c.Overpass.Burst)
	overpass := repository.NewOverpassRepository(c.Overpass.URL, c.Overpass.Timeout, limiter)
	job := core.NewFeatureAcquisitionJob(overpass, conv, c.Acquisition.Extension, c.Overpass.QueryTimeout)

	p := &pipeline{metrics: metrics.NewAcquisition()}
	scheduler := core.NewAcquisitionScheduler(job, c.Acquisition.Workers, p.metrics)

	paths := core.Paths{
		MapstyleDir:      c.Paths.MapstyleDir,
		StreetParkingDir: c.Paths.StreetParkingDir,
		OutputDir:        c.Paths.OutputDir,
		ViewerTemplate:   c.Paths.ViewerTemplate,
		StyleArchive:     c.Style.Archive,
	}
	masks := core.NewMaskGeometryBuilder(paths.LayerRoot(), c.Acquisition.Extension, c.Acquisition.FogMargin)

	var recorder repository.RunRecorder
	if c.Recorder.Driver != "" {
		db, err := repository.OpenDB(ctx, c.Recorder.Driver, c.Recorder.DSN)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, db.Close)
		sqlRecorder := repository.NewSQLRunRecorder(db)
		if err := sqlRecorder.Migrate(ctx); err != nil {
			p.Close()
			return nil, err
		}
		recorder = sqlRecorder
	}

	var notifier core.Notifier
	if c.NATS.URL != "" {
		publisher, err := events.Connect(c.NATS.URL, c.NATS.Subject)
		if err != nil {
			// Downstream notification is optional; the run goes on without it.
			slog.Warn("nats unavailable, run events will not be published", "url", c.NATS.URL, "error", err)
		} else {
			p.closers = append(p.closers, func() error { publisher.Close(); return nil })
			notifier = publisher
		}
	}

	p.generator = core.NewGenerator(
		paths,
		core.NewCoordinateTransformer(),
		masks,
		scheduler,
		core.NewStyleDocumentConfigurer(c.Style.Entry),
		recorder,
		notifier,
	)
	return p, nil
}
