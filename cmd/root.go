package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dataverse",
	Short: "Memory-bounded mesh pipeline for the industrial asset dashboard",
	Long: "Dataverse turns large shopfloor meshes into reduced-polygon models that fit a " +
		"strict memory budget, serving them to the dashboard's 3D views on demand.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dataverse.toml", "path to the TOML configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(preprocessCmd)
}
