package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BoundingBox is an axis-aligned area of interest in geographic coordinates,
// ordered (minLon, minLat, maxLon, maxLat).
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// NewBoundingBox builds a box from the four-element config form and validates it.
func NewBoundingBox(values []float64) (BoundingBox, error) {
	if len(values) != 4 {
		return BoundingBox{}, &ValidationError{
			Field: "bbox",
			Err:   fmt.Errorf("%w: must have 4 components, got %d", ErrInvalidBoundingBox, len(values)),
		}
	}
	box := BoundingBox{MinLon: values[0], MinLat: values[1], MaxLon: values[2], MaxLat: values[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

func (b BoundingBox) Validate() error {
	for i, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: fmt.Sprintf("bbox[%d]", i), Err: fmt.Errorf("%w: not a finite number", ErrInvalidBoundingBox)}
		}
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return &ValidationError{Field: "bbox", Err: fmt.Errorf("%w: longitude out of range [-180, 180]", ErrInvalidBoundingBox)}
	}
	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return &ValidationError{Field: "bbox", Err: fmt.Errorf("%w: latitude out of range [-90, 90]", ErrInvalidBoundingBox)}
	}
	if b.MinLon >= b.MaxLon {
		return &ValidationError{Field: "bbox", Err: fmt.Errorf("%w: min_lon must be < max_lon", ErrInvalidBoundingBox)}
	}
	if b.MinLat >= b.MaxLat {
		return &ValidationError{Field: "bbox", Err: fmt.Errorf("%w: min_lat must be < max_lat", ErrInvalidBoundingBox)}
	}
	return nil
}

// Overpass returns the box as "south,west,north,east", the order Overpass QL expects.
func (b BoundingBox) Overpass() string {
	return strings.Join([]string{
		FormatFloat(b.MinLat),
		FormatFloat(b.MinLon),
		FormatFloat(b.MaxLat),
		FormatFloat(b.MaxLon),
	}, ",")
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)",
		FormatFloat(b.MinLon), FormatFloat(b.MinLat), FormatFloat(b.MaxLon), FormatFloat(b.MaxLat))
}

// FormatFloat prints the shortest decimal representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ProjectedBoundingBox is a BoundingBox reprojected into a target CRS.
// (X0, Y0) is the transformed (minLon, minLat) corner and (X1, Y1) the
// transformed (maxLon, maxLat) corner.
type ProjectedBoundingBox struct {
	CRS CRS
	X0  float64
	Y0  float64
	X1  float64
	Y1  float64
}

// Corners returns [X0, Y0, X1, Y1].
func (p ProjectedBoundingBox) Corners() [4]float64 {
	return [4]float64{p.X0, p.Y0, p.X1, p.Y1}
}

// CRS identifies a coordinate reference system by EPSG code.
type CRS struct {
	Code int
}

// ParseCRS accepts "EPSG:<code>" (case-insensitive) or a bare numeric code.
func ParseCRS(s string) (CRS, error) {
	raw := strings.TrimSpace(s)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		if !strings.EqualFold(raw[:i], "EPSG") {
			return CRS{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
		}
		raw = raw[i+1:]
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code <= 0 {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
	}
	return CRS{Code: code}, nil
}

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", c.Code)
}

// URN is the OGC name used in GeoJSON "crs" members.
func (c CRS) URN() string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", c.Code)
}

var WGS84 = CRS{Code: 4326}
