package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
	ErrUnsupportedCRS     = errors.New("unsupported CRS")
	ErrUndefinedTransform = errors.New("transform undefined at coordinates")
	ErrUnknownLocation    = errors.New("unknown location")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrMissingTemplate    = errors.New("template not found")
	ErrMalformedTokens    = errors.New("malformed substitution tokens")
	ErrInvalidTileJob     = errors.New("invalid tile job")

	// ErrQueryStatus is returned when the geodata service answers with a non-2xx status.
	ErrQueryStatus = errors.New("geodata service returned non-success status")
)

// ValidationError reports malformed run input. It is fatal and raised before any I/O.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ProjectionError reports an unknown CRS or a transform undefined at the input.
type ProjectionError struct {
	From CRS
	To   CRS
	Err  error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing template or malformed token set.
type ConfigurationError struct {
	Subject string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Stage names the part of a category acquisition that failed.
type Stage string

const (
	StagePrepare Stage = "prepare"
	StageQuery   Stage = "query"
	StageConvert Stage = "convert"
)

// AcquisitionError is a per-category failure. It never aborts sibling categories.
type AcquisitionError struct {
	Category string
	Stage    Stage
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("category %s: %s: %v", e.Category, e.Stage, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
