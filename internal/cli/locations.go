package cli

import (
	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List configured locations",
	Args:  cobra.NoArgs,
	RunE:  runLocations,
}

func init() {
	rootCmd.AddCommand(locationsCmd)
}

func runLocations(cmd *cobra.Command, _ []string) error {
	names := cfg.LocationNames()
	if len(names) == 0 {
		cmd.Println("No locations defined, add some under \"locations\" in the config file.")
		return nil
	}

	cmd.Println("Configured locations:")
	for _, name := range names {
		loc, err := cfg.Location(name)
		if err != nil {
			return err
		}
		cmd.Printf("  * %s  bbox=%s  crs=%s\n", loc.Name, loc.BBox, loc.CRS)
	}
	return nil
}
