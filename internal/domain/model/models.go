package model

import (
	"errors"
	"time"
)

// FeatureCategory is one independently acquired subset of map data.
// Name is unique within a run and determines the output file name.
type FeatureCategory struct {
	Name           string
	Query          string
	DestinationDir string
}

type AcquisitionResult struct {
	Category string
	Path     string
	Bytes    int64
	Duration time.Duration
	Err      *AcquisitionError
}

func (r AcquisitionResult) OK() bool { return r.Err == nil }

// Failure returns the acquisition error as an error value, or nil.
func (r AcquisitionResult) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

type RunReport struct {
	RunID      string
	Location   string
	CRS        CRS
	OutputRoot string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []AcquisitionResult
	TileJob    *TileJob
}

func (r *RunReport) Failed() []AcquisitionResult {
	var failed []AcquisitionResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins every failed category so none is reported silently.
func (r *RunReport) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

func (r *RunReport) BytesWritten() int64 {
	var total int64
	for _, res := range r.Results {
		total += res.Bytes
	}
	return total
}

// Location is one named entry of the run configuration.
type Location struct {
	Name           string
	BBox           BoundingBox
	CRS            CRS
	ExcludeLayers  []string
	SkipCategories []string
	Tiles          TileSettings
}

type TileSettings struct {
	StartZoom   int
	EndZoom     int
	Step        int
	ImageFormat string
}

// TileJob is the configuration handed to the external tile-pyramid generator.
type TileJob struct {
	OutputPath     string      `json:"output_path"`
	StartZoom      int         `json:"start_zoom"`
	EndZoom        int         `json:"end_zoom"`
	ZoomStep       int         `json:"zoom_step"`
	ImageFormat    string      `json:"image_format"`
	AreaOfInterest string      `json:"area_of_interest"`
	TileCounts     []ZoomTiles `json:"tile_counts"`
}

type ZoomTiles struct {
	Zoom  int    `json:"zoom"`
	Tiles uint64 `json:"tiles"`
}

// GeneratedEvent announces a finished run to downstream stages.
type GeneratedEvent struct {
	RunID            string    `json:"run_id"`
	Location         string    `json:"location"`
	CRS              string    `json:"crs"`
	OutputRoot       string    `json:"output_root"`
	AreaOfInterest   string    `json:"area_of_interest"`
	TileJob          *TileJob  `json:"tile_job,omitempty"`
	FailedCategories []string  `json:"failed_categories"`
	FinishedAt       time.Time `json:"finished_at"`
}

// NewGeneratedEvent summarizes report. areaOfInterest is the map extent file.
func NewGeneratedEvent(report *RunReport, areaOfInterest string) GeneratedEvent {
	failed := make([]string, 0)
	for _, res := range report.Failed() {
		failed = append(failed, res.Category)
	}
	return GeneratedEvent{
		RunID:            report.RunID,
		Location:         report.Location,
		CRS:              report.CRS.String(),
		OutputRoot:       report.OutputRoot,
		AreaOfInterest:   areaOfInterest,
		TileJob:          report.TileJob,
		FailedCategories: failed,
		FinishedAt:       report.FinishedAt,
	}
}
