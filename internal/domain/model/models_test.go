package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedResult(category string, stage Stage) AcquisitionResult {
	return AcquisitionResult{
		Category: category,
		Err:      &AcquisitionError{Category: category, Stage: stage, Err: errors.New("boom")},
	}
}

func TestRunReport_Aggregates(t *testing.T) {
	report := &RunReport{
		Results: []AcquisitionResult{
			{Category: "amenity", Bytes: 100},
			failedResult("buildings", StageQuery),
			{Category: "highway", Bytes: 50},
			failedResult("input", StageConvert),
		},
	}

	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "buildings", failed[0].Category)
	assert.Equal(t, "input", failed[1].Category)
	assert.Equal(t, int64(150), report.BytesWritten())

	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category buildings: query: boom")
	assert.Contains(t, err.Error(), "category input: convert: boom")
}

func TestRunReport_ErrNilWhenAllSucceed(t *testing.T) {
	report := &RunReport{Results: []AcquisitionResult{{Category: "amenity"}}}
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Failed())
}

func TestAcquisitionResult_Failure(t *testing.T) {
	assert.NoError(t, AcquisitionResult{Category: "amenity"}.Failure())

	res := failedResult("amenity", StagePrepare)
	var aErr *AcquisitionError
	require.True(t, errors.As(res.Failure(), &aErr))
	assert.Equal(t, StagePrepare, aErr.Stage)
}

func TestNewGeneratedEvent(t *testing.T) {
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &RunReport{
		RunID:      "run-1",
		Location:   "neukoelln",
		CRS:        CRS{Code: 25833},
		OutputRoot: "output/neukoelln",
		FinishedAt: finished,
		Results:    []AcquisitionResult{{Category: "amenity"}, failedResult("routes", StageQuery)},
	}

	event := NewGeneratedEvent(report, "layer/map_extent.geojson")

	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "EPSG:25833", event.CRS)
	assert.Equal(t, "layer/map_extent.geojson", event.AreaOfInterest)
	assert.Equal(t, []string{"routes"}, event.FailedCategories)
	assert.Equal(t, finished, event.FinishedAt)
	assert.Nil(t, event.TileJob)
}

func TestNewGeneratedEvent_NoFailuresIsEmptyList(t *testing.T) {
	event := NewGeneratedEvent(&RunReport{}, "")
	assert.NotNil(t, event.FailedCategories)
	assert.Empty(t, event.FailedCategories)
}
