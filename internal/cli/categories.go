package cli

import (
	"github.com/spf13/cobra"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/core"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the feature categories a run acquires",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, _ []string) error {
	for _, entry := range core.Catalog {
		cmd.Printf("%-16s %s\n", entry.Name, entry.Destination)
	}
	return nil
}
