package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const (
	TileJobFile = "tile_job.json"
	TilesDir    = "tiles"
	MaxZoom     = 24
)

var imageFormats = map[string]bool{"jpg": true, "png": true, "webp": true}

// DefaultTileSettings matches what the tile writer was historically run with.
func DefaultTileSettings() model.TileSettings {
	return model.TileSettings{StartZoom: 15, EndZoom: 21, Step: 32, ImageFormat: "jpg"}
}

func ValidateTileSettings(s model.TileSettings) error {
	switch {
	case s.StartZoom < 0 || s.EndZoom > MaxZoom || s.StartZoom > s.EndZoom:
		return &model.ValidationError{Field: "tiles", Err: fmt.Errorf("%w: zoom range %d..%d", model.ErrInvalidTileJob, s.StartZoom, s.EndZoom)}
	case s.Step <= 0:
		return &model.ValidationError{Field: "tiles.step", Err: fmt.Errorf("%w: step must be positive", model.ErrInvalidTileJob)}
	case !imageFormats[s.ImageFormat]:
		return &model.ValidationError{Field: "tiles.image_format", Err: fmt.Errorf("%w: unsupported format %q", model.ErrInvalidTileJob, s.ImageFormat)}
	}
	return nil
}

// CountTiles returns how many web map tiles cover bbox at zoom z.
func CountTiles(bbox model.BoundingBox, z int) uint64 {
	zoom := maptile.Zoom(z)
	topLeft := clampTile(maptile.At(orb.Point{bbox.MinLon, bbox.MaxLat}, zoom))
	bottomRight := clampTile(maptile.At(orb.Point{bbox.MaxLon, bbox.MinLat}, zoom))
	cols := uint64(bottomRight.X-topLeft.X) + 1
	rows := uint64(bottomRight.Y-topLeft.Y) + 1
	return cols * rows
}

// clampTile pulls a tile computed on the antimeridian (lon 180) back into the
// last column.
func clampTile(t maptile.Tile) maptile.Tile {
	last := uint32(1)<<uint32(t.Z) - 1
	t.X = min(t.X, last)
	t.Y = min(t.Y, last)
	return t
}

// PlanTileJob creates the tile output directory and writes the job descriptor
// the tile-pyramid generator consumes.
func PlanTileJob(outputDir, areaOfInterest string, settings model.TileSettings, bbox model.BoundingBox) (*model.TileJob, error) {
	if err := ValidateTileSettings(settings); err != nil {
		return nil, err
	}

	tilesPath := filepath.Join(outputDir, TilesDir)
	if err := os.MkdirAll(tilesPath, DirPerm); err != nil {
		return nil, fmt.Errorf("create tiles directory: %w", err)
	}

	job := &model.TileJob{
		OutputPath:     tilesPath,
		StartZoom:      settings.StartZoom,
		EndZoom:        settings.EndZoom,
		ZoomStep:       settings.Step,
		ImageFormat:    settings.ImageFormat,
		AreaOfInterest: areaOfInterest,
	}
	for z := settings.StartZoom; z <= settings.EndZoom; z++ {
		job.TileCounts = append(job.TileCounts, model.ZoomTiles{Zoom: z, Tiles: CountTiles(bbox, z)})
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tile job: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(outputDir, TileJobFile), append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write tile job: %w", err)
	}
	return job, nil
}
