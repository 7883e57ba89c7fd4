package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/core"
	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

var (
	skipInput  bool
	skipOutput bool
	skipTiles  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate LOCATION",
	Short: "Generate the map dataset for a location",
	Long: `Runs the generation pipeline for one configured location.

The input stage writes the area masks and acquires every feature category,
the output stage writes the configured style document and the tiles stage
writes the viewer page and the tile job descriptor. The command fails when
any category could not be acquired.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&skipInput, "skip-input", false, "skip masks and feature acquisition")
	generateCmd.Flags().BoolVar(&skipOutput, "skip-output", false, "skip the style document")
	generateCmd.Flags().BoolVar(&skipTiles, "skip-tiles", false, "skip the viewer page and tile job")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	loc, err := cfg.Location(args[0])
	if err != nil {
		return err
	}

	p, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("failed to release resources", "error", err)
		}
	}()

	stages := core.Stages{Input: !skipInput, Output: !skipOutput, Tiles: !skipTiles}
	report, runErr := p.generator.Generate(cmd.Context(), loc, stages)

	if cfg.Metrics.Textfile != "" {
		if err := p.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Error("failed to write metrics", "error", err)
		}
	}

	if report == nil {
		return runErr
	}
	printReport(cmd, report)

	// Failed categories are listed above; later stage errors are logged.
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d categories failed", len(failed), len(report.Results))
	}
	return runErr
}

func printReport(cmd *cobra.Command, report *model.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s for %s (%s)\n", report.RunID, report.Location, report.CRS)

	if len(report.Results) > 0 {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tSTATUS\tBYTES\tDURATION")
		for _, res := range report.Results {
			status := "ok"
			if !res.OK() {
				status = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", res.Category, status, res.Bytes, res.Duration.Round(time.Millisecond))
		}
		w.Flush()
	}

	for _, res := range report.Failed() {
		fmt.Fprintf(out, "FAILED %s (%s): %v\n", res.Category, res.Err.Stage, res.Err.Err)
	}
	if report.TileJob != nil {
		fmt.Fprintf(out, "Tile job: %s\n", report.TileJob.OutputPath)
	}
	fmt.Fprintf(out, "Output: %s\n", report.OutputRoot)
}
