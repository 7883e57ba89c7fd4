package core

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const DefaultStyleEntry = "strassenraumkarte.qgs"

// Tokens the packaged style project is known to contain. The document schema
// belongs to the styling engine; only these literal strings are touched.
const (
	TokenScaleFactor   = "@scale_factor"
	TokenProjectFolder = "@project_folder"
	TokenSourceCRSCode = "25833"
	TokenManholeIcon   = "symbols/man_made/manhole.svg"
	manholeIconPNG     = "symbols/man_made/manhole.png"

	checkedMarker   = ` checked="Qt::Checked" name="%s"`
	uncheckedMarker = ` checked="Qt::Unchecked" name="%s"`
)

// Substitution replaces every occurrence of Token with Value.
type Substitution struct {
	Token string
	Value string
}

// StyleSubstitutions returns the ordered substitution list for a run.
func StyleSubstitutions(scaleFactor float64, target model.CRS, projectDir string) []Substitution {
	return []Substitution{
		{Token: TokenScaleFactor, Value: model.FormatFloat(scaleFactor)},
		{Token: TokenProjectFolder, Value: "'" + projectDir + "'"},
		{Token: TokenSourceCRSCode, Value: strconv.Itoa(target.Code)},
		{Token: TokenManholeIcon, Value: manholeIconPNG},
	}
}

// StyleDocumentConfigurer resolves the style project stored inside a .qgz
// archive into a plain document next to the archive.
type StyleDocumentConfigurer struct {
	entry string
}

func NewStyleDocumentConfigurer(entry string) *StyleDocumentConfigurer {
	if entry == "" {
		entry = DefaultStyleEntry
	}
	return &StyleDocumentConfigurer{entry: entry}
}

func (c *StyleDocumentConfigurer) OutputPath(archivePath string) string {
	return filepath.Join(filepath.Dir(archivePath), c.entry)
}

// Configure reads the template entry, applies subs in order, then switches
// every excluded layer from checked to unchecked.
func (c *StyleDocumentConfigurer) Configure(archivePath string, subs []Substitution, excludedLayers []string) ([]byte, error) {
	if err := validateTokens(subs, excludedLayers); err != nil {
		return nil, err
	}

	doc, err := c.readEntry(archivePath)
	if err != nil {
		return nil, err
	}

	for _, sub := range subs {
		doc = strings.ReplaceAll(doc, sub.Token, sub.Value)
	}
	for _, layer := range excludedLayers {
		checked := fmt.Sprintf(checkedMarker, layer)
		if !strings.Contains(doc, checked) {
			slog.Warn("excluded layer not found in style document", "layer", layer)
			continue
		}
		doc = strings.ReplaceAll(doc, checked, fmt.Sprintf(uncheckedMarker, layer))
	}

	return []byte(doc), nil
}

// ConfigureFile runs Configure and writes the result beside the archive.
func (c *StyleDocumentConfigurer) ConfigureFile(archivePath string, subs []Substitution, excludedLayers []string) (string, error) {
	doc, err := c.Configure(archivePath, subs, excludedLayers)
	if err != nil {
		return "", err
	}
	out := c.OutputPath(archivePath)
	if err := writeFileAtomic(out, doc); err != nil {
		return "", fmt.Errorf("write style document: %w", err)
	}
	return out, nil
}

func (c *StyleDocumentConfigurer) readEntry(archivePath string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", &model.ConfigurationError{Subject: archivePath, Err: fmt.Errorf("%w: %w", model.ErrMissingTemplate, err)}
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != c.entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", c.entry, archivePath, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read %s in %s: %w", c.entry, archivePath, err)
		}
		return string(data), nil
	}

	return "", &model.ConfigurationError{
		Subject: archivePath,
		Err:     fmt.Errorf("%w: entry %q", model.ErrMissingTemplate, c.entry),
	}
}

func validateTokens(subs []Substitution, excludedLayers []string) error {
	for i, sub := range subs {
		if sub.Token == "" {
			return &model.ConfigurationError{
				Subject: "substitutions",
				Err:     fmt.Errorf("%w: token %d is empty", model.ErrMalformedTokens, i),
			}
		}
	}
	for _, layer := range excludedLayers {
		if layer == "" || strings.ContainsRune(layer, '"') {
			return &model.ConfigurationError{
				Subject: "exclude_layers",
				Err:     fmt.Errorf("%w: layer name %q", model.ErrMalformedTokens, layer),
			}
		}
	}
	return nil
}
