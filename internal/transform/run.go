// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

const (
	rawDir      = "raw"
	cleanDir    = "clean"
	metadataDir = "metadata"
)

// Run transforms one acquired dataset: reads data/raw/<slug>.csv, writes the
// cleaned CSV and a report YAML under data/clean/, and records the clean
// path in the dataset metadata when present. Per-row problems land in the
// report; Run fails only when the raw file is unreadable or structurally
// wrong.
func Run(cfg types.TransformConfig, slug string, w io.Writer) (types.TransformReport, error) {
	rawPath := filepath.Join(cfg.DataDir, rawDir, slug+".csv")
	cleanPath := filepath.Join(cfg.DataDir, cleanDir, slug+".csv")
	reportPath := filepath.Join(cfg.DataDir, cleanDir, slug+"-report.yaml")

	table, err := dataset.ReadFile(rawPath)
	if err != nil {
		return types.TransformReport{}, err
	}

	records, report, err := Apply(table, cfg, slug)
	if err != nil {
		return report, err
	}

	if err := os.MkdirAll(filepath.Join(cfg.DataDir, cleanDir), 0o755); err != nil {
		return report, fmt.Errorf("creating clean directory: %w", err)
	}
	if err := WriteClean(cleanPath, records); err != nil {
		return report, fmt.Errorf("writing %s: %w", cleanPath, err)
	}
	if err := writeReport(report, reportPath); err != nil {
		return report, fmt.Errorf("writing report: %w", err)
	}
	markCleaned(cfg.DataDir, slug, cleanPath)

	fmt.Fprintf(w, "transformed %s: %d rows in, %d rows out", slug, report.RowsIn, report.RowsOut)
	if report.HasFailures() {
		fmt.Fprintf(w, ", %d rejected", len(report.Failures))
	}
	if report.CIMalformed > 0 {
		fmt.Fprintf(w, ", %d malformed CI ranges", report.CIMalformed)
	}
	fmt.Fprintln(w)
	return report, nil
}

func writeReport(report types.TransformReport, path string) error {
	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// markCleaned records the clean path in the dataset metadata YAML. Missing
// or unparseable metadata is not an error: the raw file may have been placed
// by hand rather than acquired.
func markCleaned(dataDir, slug, cleanPath string) {
	metaPath := filepath.Join(dataDir, metadataDir, slug+".yaml")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return
	}
	var ds types.Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return
	}
	ds.CleanPath = cleanPath
	if out, err := yaml.Marshal(&ds); err == nil {
		os.WriteFile(metaPath, out, 0o644)
	}
}
