package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const namespace = "strassenraumkarte"

// Acquisition collects per-run acquisition metrics on its own registry, so a
// run can be exported to a node-exporter textfile when it ends.
type Acquisition struct {
	registry *prometheus.Registry

	categoriesTotal  *prometheus.CounterVec
	bytesWritten     *prometheus.CounterVec
	categoryDuration *prometheus.HistogramVec
	failuresTotal    *prometheus.CounterVec
}

func NewAcquisition() *Acquisition {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Acquisition{
		registry: reg,
		categoriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "categories_total",
			Help:      "Feature categories processed, by outcome",
		}, []string{"status"}),
		bytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "bytes_written_total",
			Help:      "Bytes of feature documents written",
		}, []string{"category"}),
		categoryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "duration_seconds",
			Help:      "Time spent acquiring one category",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"category"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "failures_total",
			Help:      "Failed categories, by stage",
		}, []string{"stage"}),
	}
}

// Observe records one finished category.
func (a *Acquisition) Observe(result model.AcquisitionResult) {
	a.categoryDuration.WithLabelValues(result.Category).Observe(result.Duration.Seconds())
	if result.OK() {
		a.categoriesTotal.WithLabelValues("ok").Inc()
		a.bytesWritten.WithLabelValues(result.Category).Add(float64(result.Bytes))
		return
	}
	a.categoriesTotal.WithLabelValues("failed").Inc()
	a.failuresTotal.WithLabelValues(string(result.Err.Stage)).Inc()
}

func (a *Acquisition) Registry() *prometheus.Registry { return a.registry }

// WriteTextfile writes the registry in text exposition format to path.
func (a *Acquisition) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
