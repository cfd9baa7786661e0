// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [slugs...]",
	Short: "Profile raw dataset files before transformation",
	Long: `Inspect reads raw CSVs from data/raw/ and reports what a transform author
needs to know: column types, row counts, distinct years, zones, and vaccine
labels, whether each year reports the same zones and vaccines, duplicate
(year, zone, vaccine) combinations, and summary statistics for numeric
columns.

Without arguments it inspects every file in data/raw/.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Bool("json", false, "output the profile as JSON")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(dataDir(cmd), "raw")

	slugs := args
	if len(slugs) == 0 {
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

	jsonOutput, _ := cmd.Flags().GetBool("json")

	for _, slug := range slugs {
		table, err := dataset.ReadFile(filepath.Join(dir, slug+".csv"))
		if err != nil {
			return err
		}
		profile := inspect.Build(table, slug)

		if jsonOutput {
			if err := inspect.RenderJSON(os.Stdout, profile); err != nil {
				return err
			}
			continue
		}
		inspect.Render(os.Stdout, profile)
	}
	return nil
}
