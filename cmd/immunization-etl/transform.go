// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/immunization-etl/internal/transform"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

var transformCmd = &cobra.Command{
	Use:   "transform [slugs...]",
	Short: "Clean raw dataset files into typed CSVs",
	Long: `Transform reads raw CSVs from data/raw/ and writes cleaned CSVs plus a
report to data/clean/. Cleaning renames headers to snake_case, parses
separator-formatted counts, rescales coverage fractions to percentages,
splits 95% confidence interval ranges into typed bounds, and derives a
dose-independent vaccine_group column.

Without arguments it transforms every file in data/raw/.`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().Int("max-failures", 0, "tolerated rejected rows before the file is treated as bad (default 50)")

	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	maxFailures, _ := cmd.Flags().GetInt("max-failures")
	if maxFailures == 0 {
		maxFailures = pipelineCfg.Transform.MaxFailures
	}
	cfg := types.TransformConfig{
		DataDir:     dataDir(cmd),
		MaxFailures: maxFailures,
	}

	slugs := args
	if len(slugs) == 0 {
		dir := filepath.Join(cfg.DataDir, "raw")
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".csv") {
				slugs = append(slugs, strings.TrimSuffix(entry.Name(), ".csv"))
			}
		}
		if len(slugs) == 0 {
			return fmt.Errorf("no raw files in %s: run acquire first", dir)
		}
	}

	var failed int
	for _, slug := range slugs {
		if _, err := transform.Run(cfg, slug, os.Stdout); err != nil {
			fmt.Fprintf(os.Stdout, "failed %s: %v\n", slug, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d dataset(s) failed transformation", failed)
	}
	return nil
}
