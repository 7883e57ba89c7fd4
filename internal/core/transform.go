package core

import (
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// CoordinateTransformer reprojects bounding boxes between CRSs. It has no state.
type CoordinateTransformer struct{}

func NewCoordinateTransformer() *CoordinateTransformer {
	return &CoordinateTransformer{}
}

// Transform projects the (MinLon, MinLat) and (MaxLon, MaxLat) corners
// independently. The box fields are read as plain x/y pairs in the source CRS,
// so a projected box can be transformed back.
func (t *CoordinateTransformer) Transform(box model.BoundingBox, from, to model.CRS) (model.ProjectedBoundingBox, error) {
	x0, y0, err := t.TransformPoint(box.MinLon, box.MinLat, from, to)
	if err != nil {
		return model.ProjectedBoundingBox{}, err
	}
	x1, y1, err := t.TransformPoint(box.MaxLon, box.MaxLat, from, to)
	if err != nil {
		return model.ProjectedBoundingBox{}, err
	}
	return model.ProjectedBoundingBox{CRS: to, X0: x0, Y0: y0, X1: x1, Y1: y1}, nil
}

func (t *CoordinateTransformer) TransformPoint(x, y float64, from, to model.CRS) (float64, float64, error) {
	src, err := lookupProjection(from)
	if err != nil {
		return 0, 0, &model.ProjectionError{From: from, To: to, Err: err}
	}
	dst, err := lookupProjection(to)
	if err != nil {
		return 0, 0, &model.ProjectionError{From: from, To: to, Err: err}
	}
	if from == to {
		return x, y, nil
	}

	lon, lat, err := src.inverse(x, y)
	if err != nil {
		return 0, 0, &model.ProjectionError{From: from, To: to, Err: err}
	}
	px, py, err := dst.forward(lon, lat)
	if err != nil {
		return 0, 0, &model.ProjectionError{From: from, To: to, Err: err}
	}
	return px, py, nil
}

// Supports reports whether c can be used as a source or target.
func (t *CoordinateTransformer) Supports(c model.CRS) bool {
	_, err := lookupProjection(c)
	return err == nil
}
