// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the immunization-etl CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/immunization-etl/internal/secrets"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// pipelineCfg holds stage settings unmarshaled from the config file. Flags
// override it; it overrides compiled-in defaults.
var pipelineCfg types.PipelineConfig

// rootCmd is the base command for the immunization-etl CLI.
var rootCmd = &cobra.Command{
	Use:   "immunization-etl",
	Short: "ETL pipeline for school-based immunization coverage data",
	Long: `immunization-etl moves the Nova Scotia school-based immunization coverage
dataset through a local ETL pipeline: acquire downloads the published CSV,
inspect profiles it, transform cleans it, and load stores it in a queryable
SQLite table.

Each stage is a subcommand and communicates with the next through the data/
directory, so stages can be run separately or all at once with run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./immunization-etl.yaml or ~/.config/immunization-etl/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for pipeline data")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("immunization-etl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "immunization-etl"))
		}
	}

	viper.SetEnvPrefix("IMMUNIZATION_ETL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// The config file uses the same yaml keys the types package declares.
	err := viper.Unmarshal(&pipelineCfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.Squash = true
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: invalid config file:", err)
	}
}

// dataDir resolves the data directory from flag, config, or default.
func dataDir(cmd *cobra.Command) string {
	if cmd.Flags().Changed("data-dir") {
		dir, _ := cmd.Flags().GetString("data-dir")
		return dir
	}
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	dir, _ := cmd.Flags().GetString("data-dir")
	return dir
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
