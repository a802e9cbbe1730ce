// Command crusades runs the crusades API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvvdotnet/crusades/internal/config"
	"github.com/vvvdotnet/crusades/internal/logging"
)

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crusades",
	Short: "Fitness and meal crusade tracker",
	Long: `crusades serves the crusade tracking API.

Configuration comes from the environment, an optional .env file in the
working directory and an optional YAML file holding the crusade catalog.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New("crusades", cfg.Log.Level, cfg.Log.Format)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
