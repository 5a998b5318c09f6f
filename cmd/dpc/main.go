// Package main implements the dpc CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/CarbonSmasher/dpc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "dpc",
	Short: "Datapack compiler backend",
	Long:  "dpc lowers a generic imperative IR into Minecraft datapack function files.",
}

func main() {
	rootCmd.Version = version.Version
	rootCmd.AddCommand(buildCmd)

	rootCmd.PersistentFlags().String("project", "dpc.toml", "project file path")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
