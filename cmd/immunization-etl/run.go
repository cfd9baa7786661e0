// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/immunization-etl/internal/acquire"
	"github.com/pdiddy/immunization-etl/internal/store"
	"github.com/pdiddy/immunization-etl/internal/transform"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [identifiers...]",
	Short: "Run the full pipeline: acquire, transform, load",
	Long: `Run executes the three pipeline stages in sequence. Datasets are
downloaded into data/raw/, cleaned into data/clean/, and loaded into the
SQLite database with refreshed export files. A stage failure stops the
pipeline.

Without arguments it runs against the default dataset, ns-school-immunization.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	runCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	runCmd.Flags().Bool("progress", true, "show a download progress bar")
	runCmd.Flags().Int("max-failures", 0, "tolerated rejected rows before a file is treated as bad (default 50)")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"ns-school-immunization"}
	}

	cfg, err := acquisitionConfig(cmd)
	if err != nil {
		return err
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	result := acquire.AcquireBatch(cmd.Context(), client, args, cfg, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d dataset(s) failed acquisition", result.Failed)
	}

	maxFailures, _ := cmd.Flags().GetInt("max-failures")
	if maxFailures == 0 {
		maxFailures = pipelineCfg.Transform.MaxFailures
	}
	tcfg := types.TransformConfig{
		DataDir:     cfg.DataDir,
		MaxFailures: maxFailures,
	}
	for _, ds := range result.Datasets {
		if _, err := transform.Run(tcfg, ds.Slug, os.Stdout); err != nil {
			return fmt.Errorf("transforming %s: %w", ds.Slug, err)
		}
	}

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
