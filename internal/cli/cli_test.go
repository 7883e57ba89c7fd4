package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overpassBody = `{"elements":[{"type":"node","id":1,"lat":52.48,"lon":13.41,"tags":{"amenity":"bench"}}]}`

// execute runs the root command with args and resets flag state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		configPath, logLevel, logFormat = "", "", ""
		skipInput, skipOutput, skipTiles = false, false, false
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

type workspace struct {
	root       string
	configPath string
}

func newWorkspace(t *testing.T, overpassURL string) *workspace {
	t.Helper()
	root := t.TempDir()
	mapstyle := filepath.Join(root, "mapstyle")
	require.NoError(t, os.MkdirAll(mapstyle, 0o755))

	f, err := os.Create(filepath.Join(mapstyle, "strassenraumkarte.qgz"))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("strassenraumkarte.qgs")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<qgis><l checked="Qt::Checked" name="trees"/><srs>EPSG:25833</srs></qgis>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	tpl := filepath.Join(root, "index.html.tpl")
	require.NoError(t, os.WriteFile(tpl, []byte("<title>${location}</title>"), 0o644))

	cfg := fmt.Sprintf(`
overpass:
  url: %s
  rate: 1000
  burst: 100
acquisition:
  workers: 4
  converter: builtin
paths:
  mapstyle_dir: %s
  street_parking_dir: %s
  output_dir: %s
  viewer_template: %s
metrics:
  textfile: %s
recorder:
  driver: sqlite
  dsn: %s
tiles:
  end_zoom: 16
locations:
  neukoelln:
    bbox: [13.40, 52.47, 13.45, 52.49]
    crs: EPSG:25833
    exclude_layers: [trees]
  mitte:
    bbox: [13.37, 52.50, 13.42, 52.53]
    crs: EPSG:3857
`, overpassURL, mapstyle, filepath.Join(root, "sp"), filepath.Join(root, "output"), tpl,
		filepath.Join(root, "metrics.prom"), filepath.Join(root, "ledger.db"))

	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &workspace{root: root, configPath: path}
}

func overpassServer(t *testing.T, failing string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing != "" && strings.Contains(r.FormValue("data"), failing) {
			http.Error(w, "runtime error: Query timed out", http.StatusGatewayTimeout)
			return
		}
		_, _ = io.WriteString(w, overpassBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "strassenraumkarte", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-format"))
}

func TestCategoriesCmd(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	out, err := execute(t, "--config", ws.configPath, "categories")
	require.NoError(t, err)

	assert.Contains(t, out, "amenity")
	assert.Contains(t, out, "layer")
	assert.Contains(t, out, "input")
	assert.Contains(t, out, "street_parking")
}

func TestLocationsCmd(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	out, err := execute(t, "--config", ws.configPath, "locations")
	require.NoError(t, err)

	assert.Contains(t, out, "* mitte")
	assert.Contains(t, out, "* neukoelln")
	assert.Less(t, strings.Index(out, "mitte"), strings.Index(out, "neukoelln"), "sorted")
	assert.Contains(t, out, "crs=EPSG:25833")
}

func TestGenerateCmd_RequiresLocation(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	_, err := execute(t, "--config", ws.configPath, "generate")
	assert.Error(t, err)
}

func TestGenerateCmd_UnknownLocation(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	_, err := execute(t, "--config", ws.configPath, "generate", "kreuzberg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown location")
	assert.Contains(t, err.Error(), "mitte, neukoelln")
}

func TestGenerateCmd_FullRun(t *testing.T) {
	srv := overpassServer(t, "")
	ws := newWorkspace(t, srv.URL)

	out, err := execute(t, "--config", ws.configPath, "--log-level", "error", "generate", "neukoelln")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "CATEGORY")
	assert.NotContains(t, out, "FAILED")

	layers := filepath.Join(ws.root, "mapstyle", "layer", "geojson")
	data, err := os.ReadFile(filepath.Join(layers, "amenity", "amenity.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"node/1"`)

	assert.FileExists(t, filepath.Join(layers, "map_extent", "map_extent.geojson"))
	assert.FileExists(t, filepath.Join(ws.root, "sp", "data", "input.geojson"))
	assert.FileExists(t, filepath.Join(ws.root, "mapstyle", "strassenraumkarte.qgs"))
	assert.FileExists(t, filepath.Join(ws.root, "output", "neukoelln", "index.html"))
	assert.FileExists(t, filepath.Join(ws.root, "output", "neukoelln", "tile_job.json"))
	assert.FileExists(t, filepath.Join(ws.root, "ledger.db"))

	metrics, err := os.ReadFile(filepath.Join(ws.root, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `strassenraumkarte_acquisition_categories_total{status="ok"} 21`)
}

func TestGenerateCmd_FailingCategoryFailsCommand(t *testing.T) {
	srv := overpassServer(t, `nwr["railway"];`)
	ws := newWorkspace(t, srv.URL)

	out, err := execute(t, "--config", ws.configPath, "--log-level", "error", "generate", "neukoelln", "--skip-output", "--skip-tiles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 21 categories failed")

	assert.Contains(t, out, "FAILED railway (query)")
	assert.Contains(t, out, "504")
	assert.NoFileExists(t, filepath.Join(ws.root, "mapstyle", "strassenraumkarte.qgs"))
	assert.NoFileExists(t, filepath.Join(ws.root, "output", "neukoelln", "tile_job.json"))
}

func TestGenerateCmd_SkipInput(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	out, err := execute(t, "--config", ws.configPath, "--log-level", "error", "generate", "mitte", "--skip-input")
	require.NoError(t, err, out)

	assert.NotContains(t, out, "CATEGORY")
	assert.NoDirExists(t, filepath.Join(ws.root, "mapstyle", "layer", "geojson", "amenity"))
	assert.FileExists(t, filepath.Join(ws.root, "output", "mitte", "tile_job.json"))
}
