package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/pkg/config"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/pkg/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "strassenraumkarte",
	Short: "Generate street-space map datasets from OpenStreetMap",
	Long: `Builds everything a street-space map rendering needs for one configured
location: area masks, per-category OSM feature documents, the configured style
document, the viewer page and the tile job descriptor.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.{json,yaml})")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if logFormat != "" {
		loaded.Log.Format = logFormat
	}
	logging.Setup(loaded.Log.Level, loaded.Log.Format, cmd.ErrOrStderr())
	cfg = loaded
	return nil
}

// Execute runs the command line. Cancelling ctx aborts a running generation.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
