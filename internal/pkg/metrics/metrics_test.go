package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

func TestAcquisition_Observe(t *testing.T) {
	m := NewAcquisition()

	m.Observe(model.AcquisitionResult{Category: "amenity", Bytes: 100, Duration: 2 * time.Second})
	m.Observe(model.AcquisitionResult{Category: "highway", Bytes: 50, Duration: time.Second})
	m.Observe(model.AcquisitionResult{
		Category: "buildings",
		Err:      &model.AcquisitionError{Category: "buildings", Stage: model.StageConvert, Err: errors.New("bad")},
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.categoriesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.categoriesTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.bytesWritten.WithLabelValues("amenity")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failuresTotal.WithLabelValues("convert")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.categoryDuration))
}

func TestAcquisition_WriteTextfile(t *testing.T) {
	m := NewAcquisition()
	m.Observe(model.AcquisitionResult{Category: "amenity", Bytes: 100, Duration: time.Second})

	path := filepath.Join(t.TempDir(), "strassenraumkarte.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `strassenraumkarte_acquisition_categories_total{status="ok"} 1`)
	assert.Contains(t, string(data), `strassenraumkarte_acquisition_bytes_written_total{category="amenity"} 100`)
}

func TestAcquisition_WriteTextfileError(t *testing.T) {
	err := NewAcquisition().WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
