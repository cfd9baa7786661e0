// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/immunization-etl/internal/store"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load cleaned CSVs into the SQLite coverage table",
	Long: `Load reads cleaned CSVs from data/clean/, loads them into the SQLite
database at data/index/immunization.db, and refreshes the YAML and JSON
export files. Each load is verified by reading the stored row count back.
Unchanged files are skipped on subsequent runs.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func storeConfig(cmd *cobra.Command) types.StoreConfig {
	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults == 0 {
		maxResults = pipelineCfg.Store.MaxResults
	}
	return types.StoreConfig{
		DataDir:    dataDir(cmd),
		MaxResults: maxResults,
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	s, err := store.New(storeConfig(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Load(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d dataset(s) failed loading", summary.Failed)
	}
	return nil
}
