package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// DefaultFogMargin is how far the fog's outer ring extends past the area, in CRS units.
const DefaultFogMargin = 10000

// Paths of the mask files relative to the layer root, without extension.
const (
	MapExtentPath = "map_extent/map_extent"
	MapFogPath    = "fog/map_fog_square"
)

type featureCollection struct {
	Type     string             `json:"type"`
	Name     string             `json:"name"`
	CRS      namedCRS           `json:"crs"`
	Features []*geojson.Feature `json:"features"`
}

type namedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func newNamedCRS(c model.CRS) namedCRS {
	n := namedCRS{Type: "name"}
	n.Properties.Name = c.URN()
	return n
}

// BuildAreaPolygon returns the working area as a single closed ring wound
// clockwise from the top-left corner: (x0,y1) (x1,y1) (x1,y0) (x0,y0) (x0,y1).
func BuildAreaPolygon(p model.ProjectedBoundingBox) orb.Polygon {
	return orb.Polygon{rectangle(p.X0, p.Y0, p.X1, p.Y1)}
}

// BuildFogPolygon returns a donut whose outer ring is the area grown by margin
// and whose inner ring is exactly the area ring.
func BuildFogPolygon(p model.ProjectedBoundingBox, margin float64) orb.Polygon {
	outer := rectangle(p.X0-margin, p.Y0-margin, p.X1+margin, p.Y1+margin)
	return orb.Polygon{outer, BuildAreaPolygon(p)[0]}
}

func rectangle(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{
		{x0, y1},
		{x1, y1},
		{x1, y0},
		{x0, y0},
		{x0, y1},
	}
}

// MaskFiles are the absolute paths written by MaskGeometryBuilder.
type MaskFiles struct {
	Extent string
	Fog    string
}

// MaskGeometryBuilder writes the map extent and fog geometry files under the
// layer root.
type MaskGeometryBuilder struct {
	root   string
	ext    string
	margin float64
}

func NewMaskGeometryBuilder(root, ext string, margin float64) *MaskGeometryBuilder {
	if margin <= 0 {
		margin = DefaultFogMargin
	}
	return &MaskGeometryBuilder{root: root, ext: ext, margin: margin}
}

func (b *MaskGeometryBuilder) Files() MaskFiles {
	return MaskFiles{
		Extent: filepath.Join(b.root, MapExtentPath+"."+b.ext),
		Fog:    filepath.Join(b.root, MapFogPath+"."+b.ext),
	}
}

// Build writes both mask files. Re-running with the same input rewrites them
// byte for byte.
func (b *MaskGeometryBuilder) Build(p model.ProjectedBoundingBox) (MaskFiles, error) {
	files := b.Files()

	if err := writeMask(files.Extent, "map_extent", p.CRS, BuildAreaPolygon(p)); err != nil {
		return MaskFiles{}, err
	}
	slog.Info("wrote map extent", "path", files.Extent)

	if err := writeMask(files.Fog, "map_fog_square", p.CRS, BuildFogPolygon(p, b.margin)); err != nil {
		return MaskFiles{}, err
	}
	slog.Info("wrote map fog", "path", files.Fog, "margin", b.margin)

	return files, nil
}

func writeMask(path, name string, crs model.CRS, polygon orb.Polygon) error {
	data, err := encodeMask(name, crs, polygon)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func encodeMask(name string, crs model.CRS, polygon orb.Polygon) ([]byte, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Name:     name,
		CRS:      newNamedCRS(crs),
		Features: []*geojson.Feature{geojson.NewFeature(orb.MultiPolygon{polygon})},
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return data, nil
}
