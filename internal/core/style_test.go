package core

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const styleTemplate = `<qgis projectname="srk" version="3.28">
  <layer-tree-layer checked="Qt::Checked" name="trees" id="trees_1"/>
  <layer-tree-layer checked="Qt::Checked" name="cars" id="cars_1"/>
  <expr>@scale_factor * 2</expr>
  <path>@project_folder || '/layer'</path>
  <srs><authid>EPSG:25833</authid></srs>
  <svg>symbols/man_made/manhole.svg</svg>
</qgis>
`

func writeStyleArchive(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "strassenraumkarte.qgz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestStyleSubstitutions(t *testing.T) {
	subs := StyleSubstitutions(1.5, model.CRS{Code: 25832}, "/srv/mapstyle")

	assert.Equal(t, []Substitution{
		{Token: "@scale_factor", Value: "1.5"},
		{Token: "@project_folder", Value: "'/srv/mapstyle'"},
		{Token: "25833", Value: "25832"},
		{Token: "symbols/man_made/manhole.svg", Value: "symbols/man_made/manhole.png"},
	}, subs)
}

func TestStyleDocumentConfigurer_ConfigureFile(t *testing.T) {
	dir := t.TempDir()
	archive := writeStyleArchive(t, dir, map[string]string{
		"strassenraumkarte.qgs": styleTemplate,
		"strassenraumkarte.qgd": "aux",
	})
	c := NewStyleDocumentConfigurer("")

	out, err := c.ConfigureFile(archive, StyleSubstitutions(1.5, model.CRS{Code: 25832}, "/srv/mapstyle"), []string{"trees"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "strassenraumkarte.qgs"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, `checked="Qt::Unchecked" name="trees"`)
	assert.Contains(t, doc, `checked="Qt::Checked" name="cars"`)
	assert.Contains(t, doc, `<expr>1.5 * 2</expr>`)
	assert.Contains(t, doc, `<path>'/srv/mapstyle' || '/layer'</path>`)
	assert.Contains(t, doc, `<authid>EPSG:25832</authid>`)
	assert.Contains(t, doc, `symbols/man_made/manhole.png`)
	assert.NotContains(t, doc, "25833")
	assert.NotContains(t, doc, "@scale_factor")
}

func TestStyleDocumentConfigurer_OnlyExactLayerNamesAreExcluded(t *testing.T) {
	archive := writeStyleArchive(t, t.TempDir(), map[string]string{
		DefaultStyleEntry: `<l checked="Qt::Checked" name="trees_old"/><l checked="Qt::Checked" name="trees"/>`,
	})

	doc, err := NewStyleDocumentConfigurer("").Configure(archive, nil, []string{"trees"})
	require.NoError(t, err)
	assert.Equal(t, `<l checked="Qt::Checked" name="trees_old"/><l checked="Qt::Unchecked" name="trees"/>`, string(doc))
}

func TestStyleDocumentConfigurer_UnknownLayerIsNotAnError(t *testing.T) {
	archive := writeStyleArchive(t, t.TempDir(), map[string]string{DefaultStyleEntry: styleTemplate})

	doc, err := NewStyleDocumentConfigurer("").Configure(archive, nil, []string{"forests"})
	require.NoError(t, err)
	assert.Equal(t, styleTemplate, string(doc))
}

func TestStyleDocumentConfigurer_MissingEntry(t *testing.T) {
	archive := writeStyleArchive(t, t.TempDir(), map[string]string{"other.qgs": styleTemplate})

	_, err := NewStyleDocumentConfigurer("").Configure(archive, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingTemplate)

	var cErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cErr)
}

func TestStyleDocumentConfigurer_MissingArchive(t *testing.T) {
	_, err := NewStyleDocumentConfigurer("").Configure(filepath.Join(t.TempDir(), "none.qgz"), nil, nil)
	assert.ErrorIs(t, err, model.ErrMissingTemplate)
}

func TestStyleDocumentConfigurer_MalformedTokens(t *testing.T) {
	archive := writeStyleArchive(t, t.TempDir(), map[string]string{DefaultStyleEntry: styleTemplate})
	c := NewStyleDocumentConfigurer("")

	_, err := c.Configure(archive, []Substitution{{Token: "", Value: "x"}}, nil)
	assert.ErrorIs(t, err, model.ErrMalformedTokens)

	_, err = c.Configure(archive, nil, []string{`trees" name="cars`})
	assert.ErrorIs(t, err, model.ErrMalformedTokens)
}
