package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const ViewerPage = "index.html"

// RenderViewer fills the viewer template. ${bbox[0..3]} follow the template's
// south, west, north, east convention.
func RenderViewer(template []byte, location string, bbox model.BoundingBox) []byte {
	r := strings.NewReplacer(
		"${location}", location,
		"${bbox[0]}", model.FormatFloat(bbox.MinLat),
		"${bbox[1]}", model.FormatFloat(bbox.MinLon),
		"${bbox[2]}", model.FormatFloat(bbox.MaxLat),
		"${bbox[3]}", model.FormatFloat(bbox.MaxLon),
	)
	return []byte(r.Replace(string(template)))
}

// WriteViewer renders templatePath into <outputDir>/index.html.
func WriteViewer(templatePath, outputDir, location string, bbox model.BoundingBox) (string, error) {
	tpl, err := os.ReadFile(templatePath)
	if err != nil {
		return "", &model.ConfigurationError{Subject: templatePath, Err: fmt.Errorf("%w: %w", model.ErrMissingTemplate, err)}
	}
	out := filepath.Join(outputDir, ViewerPage)
	if err := writeFileAtomic(out, RenderViewer(tpl, location, bbox)); err != nil {
		return "", fmt.Errorf("write viewer: %w", err)
	}
	return out, nil
}
