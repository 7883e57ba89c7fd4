package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/core"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const EnvPrefix = "STRASSENRAUMKARTE"

// Config holds all run configuration. It is built once and passed down.
type Config struct {
	Overpass    OverpassConfig            `mapstructure:"overpass"`
	Acquisition AcquisitionConfig         `mapstructure:"acquisition"`
	Paths       PathsConfig               `mapstructure:"paths"`
	Style       StyleConfig               `mapstructure:"style"`
	Tiles       TilesConfig               `mapstructure:"tiles"`
	Log         LogConfig                 `mapstructure:"log"`
	Metrics     MetricsConfig             `mapstructure:"metrics"`
	Recorder    RecorderConfig            `mapstructure:"recorder"`
	NATS        NATSConfig                `mapstructure:"nats"`
	Locations   map[string]LocationConfig `mapstructure:"locations"`
}

type OverpassConfig struct {
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	QueryTimeout int           `mapstructure:"query_timeout"`
	Rate         float64       `mapstructure:"rate"`
	Burst        int           `mapstructure:"burst"`
}

type AcquisitionConfig struct {
	Workers       int     `mapstructure:"workers"`
	Converter     string  `mapstructure:"converter"`
	ConverterPath string  `mapstructure:"converter_path"`
	Extension     string  `mapstructure:"extension"`
	FogMargin     float64 `mapstructure:"fog_margin"`
}

type PathsConfig struct {
	MapstyleDir      string `mapstructure:"mapstyle_dir"`
	StreetParkingDir string `mapstructure:"street_parking_dir"`
	OutputDir        string `mapstructure:"output_dir"`
	ViewerTemplate   string `mapstructure:"viewer_template"`
}

type StyleConfig struct {
	Archive string `mapstructure:"archive"`
	Entry   string `mapstructure:"entry"`
}

type TilesConfig struct {
	StartZoom   int    `mapstructure:"start_zoom"`
	EndZoom     int    `mapstructure:"end_zoom"`
	Step        int    `mapstructure:"step"`
	ImageFormat string `mapstructure:"image_format"`
}

func (t TilesConfig) Settings() model.TileSettings {
	return model.TileSettings{StartZoom: t.StartZoom, EndZoom: t.EndZoom, Step: t.Step, ImageFormat: t.ImageFormat}
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type RecorderConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// LocationConfig is one entry under locations. Zero tile fields fall back to
// the global tiles section.
type LocationConfig struct {
	BBox           []float64   `mapstructure:"bbox"`
	CRS            string      `mapstructure:"crs"`
	ExcludeLayers  []string    `mapstructure:"exclude_layers"`
	SkipCategories []string    `mapstructure:"skip_categories"`
	Tiles          TilesConfig `mapstructure:"tiles"`

	// Older config.json files spell it excludeLayers; viper lowercases keys.
	// Those files also store bbox as [south, west, north, east], which has to
	// be reordered. Location rejects such boxes for UTM targets.
	LegacyExcludeLayers []string `mapstructure:"excludelayers"`
}

// Load reads configuration from defaults, an optional file and environment
// variables, in increasing precedence. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout", 10*time.Minute)
	v.SetDefault("overpass.query_timeout", 0)
	v.SetDefault("overpass.rate", 1.0)
	v.SetDefault("overpass.burst", 1)
	v.SetDefault("acquisition.workers", core.DefaultWorkers)
	v.SetDefault("acquisition.converter", "osmtogeojson")
	v.SetDefault("acquisition.converter_path", "osmtogeojson")
	v.SetDefault("acquisition.extension", "geojson")
	v.SetDefault("acquisition.fog_margin", core.DefaultFogMargin)
	v.SetDefault("paths.mapstyle_dir", "strassenraumkarte-neukoelln/mapstyle")
	v.SetDefault("paths.street_parking_dir", "street_parking.py")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.viewer_template", "index.html.tpl")
	v.SetDefault("style.archive", "strassenraumkarte.qgz")
	v.SetDefault("style.entry", core.DefaultStyleEntry)
	tiles := core.DefaultTileSettings()
	v.SetDefault("tiles.start_zoom", tiles.StartZoom)
	v.SetDefault("tiles.end_zoom", tiles.EndZoom)
	v.SetDefault("tiles.step", tiles.Step)
	v.SetDefault("tiles.image_format", tiles.ImageFormat)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("recorder.driver", "")
	v.SetDefault("recorder.dsn", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "strassenraumkarte.generated")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &model.ConfigurationError{Subject: path, Err: err}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &model.ConfigurationError{Subject: "config", Err: err}
			}
		}
	}

	// STRASSENRAUMKARTE_OVERPASS_URL → overpass.url
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section and reports all problems together.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.Overpass.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("overpass.url must be an absolute URL, got %q", c.Overpass.URL))
	}
	if c.Overpass.Timeout <= 0 {
		errs = append(errs, "overpass.timeout must be positive")
	}
	if c.Overpass.QueryTimeout < 0 {
		errs = append(errs, "overpass.query_timeout must not be negative")
	}
	if c.Overpass.Rate <= 0 {
		errs = append(errs, "overpass.rate must be positive")
	}
	if c.Overpass.Burst < 1 {
		errs = append(errs, "overpass.burst must be at least 1")
	}

	if c.Acquisition.Workers < 1 || c.Acquisition.Workers > core.MaxWorkers {
		errs = append(errs, fmt.Sprintf("acquisition.workers must be 1-%d, got %d", core.MaxWorkers, c.Acquisition.Workers))
	}
	switch c.Acquisition.Converter {
	case "osmtogeojson", "builtin":
	default:
		errs = append(errs, fmt.Sprintf("acquisition.converter must be osmtogeojson or builtin, got %q", c.Acquisition.Converter))
	}
	if c.Acquisition.Converter == "osmtogeojson" && c.Acquisition.ConverterPath == "" {
		errs = append(errs, "acquisition.converter_path is required")
	}
	if c.Acquisition.Extension == "" || strings.ContainsAny(c.Acquisition.Extension, `./\`) {
		errs = append(errs, fmt.Sprintf("acquisition.extension must be a plain extension, got %q", c.Acquisition.Extension))
	}
	if c.Acquisition.FogMargin <= 0 {
		errs = append(errs, "acquisition.fog_margin must be positive")
	}

	if c.Paths.MapstyleDir == "" {
		errs = append(errs, "paths.mapstyle_dir is required")
	}
	if c.Paths.StreetParkingDir == "" {
		errs = append(errs, "paths.street_parking_dir is required")
	}
	if c.Paths.OutputDir == "" {
		errs = append(errs, "paths.output_dir is required")
	}
	if c.Paths.ViewerTemplate == "" {
		errs = append(errs, "paths.viewer_template is required")
	}
	if c.Style.Archive == "" {
		errs = append(errs, "style.archive is required")
	}
	if c.Style.Entry == "" {
		errs = append(errs, "style.entry is required")
	}
	if err := core.ValidateTileSettings(c.Tiles.Settings()); err != nil {
		errs = append(errs, err.Error())
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	switch c.Recorder.Driver {
	case "":
	case "postgres", "sqlite":
		if c.Recorder.DSN == "" {
			errs = append(errs, "recorder.dsn is required when recorder.driver is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("recorder.driver must be postgres or sqlite, got %q", c.Recorder.Driver))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, "nats.subject is required when nats.url is set")
	}

	for _, name := range c.LocationNames() {
		if _, err := c.Location(name); err != nil {
			errs = append(errs, fmt.Sprintf("locations.%s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return &model.ConfigurationError{
			Subject: "config",
			Err:     fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - ")),
		}
	}
	return nil
}

// LocationNames returns the configured location names, sorted.
func (c *Config) LocationNames() []string {
	names := make([]string, 0, len(c.Locations))
	for name := range c.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location resolves a configured location into the run model. The lookup
// ignores case since viper lowercases map keys; the returned name keeps the
// caller's spelling.
func (c *Config) Location(name string) (model.Location, error) {
	lc, ok := c.Locations[strings.ToLower(name)]
	if !ok {
		known := strings.Join(c.LocationNames(), ", ")
		if known == "" {
			known = "none configured"
		}
		return model.Location{}, &model.ValidationError{
			Field: "location",
			Err:   fmt.Errorf("%w: %q (known: %s)", model.ErrUnknownLocation, name, known),
		}
	}

	bbox, err := model.NewBoundingBox(lc.BBox)
	if err != nil {
		return model.Location{}, err
	}
	crs, err := model.ParseCRS(lc.CRS)
	if err != nil {
		return model.Location{}, err
	}
	if !core.NewCoordinateTransformer().Supports(crs) {
		return model.Location{}, &model.ValidationError{
			Field: "crs",
			Err:   fmt.Errorf("%w: %s", model.ErrUnsupportedCRS, crs),
		}
	}
	if core.LooksLatLonOrdered(bbox, crs) {
		return model.Location{}, &model.ValidationError{
			Field: "bbox",
			Err: fmt.Errorf("%w: %s is far outside %s; expected [min_lon, min_lat, max_lon, max_lat], got what looks like [south, west, north, east]",
				model.ErrInvalidBoundingBox, bbox, crs),
		}
	}

	tiles := c.Tiles.Settings()
	if lc.Tiles.StartZoom != 0 {
		tiles.StartZoom = lc.Tiles.StartZoom
	}
	if lc.Tiles.EndZoom != 0 {
		tiles.EndZoom = lc.Tiles.EndZoom
	}
	if lc.Tiles.Step != 0 {
		tiles.Step = lc.Tiles.Step
	}
	if lc.Tiles.ImageFormat != "" {
		tiles.ImageFormat = lc.Tiles.ImageFormat
	}
	if err := core.ValidateTileSettings(tiles); err != nil {
		return model.Location{}, err
	}

	exclude := append(append([]string(nil), lc.ExcludeLayers...), lc.LegacyExcludeLayers...)
	if _, err := core.Categories(core.CatalogRoots{}, lc.SkipCategories); err != nil {
		return model.Location{}, err
	}

	return model.Location{
		Name:           name,
		BBox:           bbox,
		CRS:            crs,
		ExcludeLayers:  exclude,
		SkipCategories: lc.SkipCategories,
		Tiles:          tiles,
	}, nil
}
