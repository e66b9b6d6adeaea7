// Package cmd wires the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Deven-0012/Cloud-281/cmd/file"
	"github.com/Deven-0012/Cloud-281/cmd/realtime"
	"github.com/Deven-0012/Cloud-281/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "carwatch",
		Short: "Vehicle audio surveillance pipeline",
		Long:  "Consumes audio captures uploaded by in-vehicle devices, classifies the sounds, and raises alerts per tenant-configured rules.",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	rootCmd.AddCommand(
		realtime.Command(settings),
		file.Command(settings),
	)

	return rootCmd
}
