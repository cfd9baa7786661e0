// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/immunization-etl/pkg/types"
)

const sampleRawCSV = `Year,Zone,Vaccine,# Immunized,# Eligible,% Coverage,95% CI
2016-17,Zone 1 - Western,HPV,"1,234","1,500",0.8227,80.3-84.1
2016-17,Zone 1 - Western,HBV - Dose 1,900,"1,000",0.9,88.1-91.7
2017-18,Zone 2 - Northern,MEN-C-ACYW,450,500,0.9,87.2-92.4
`

func setupRaw(t *testing.T, slug, content string) types.TransformConfig {
	t.Helper()
	dataDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dataDir, rawDir), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dataDir, rawDir, slug+".csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return types.TransformConfig{DataDir: dataDir}
}

func TestRunWritesCleanFileAndReport(t *testing.T) {
	cfg := setupRaw(t, "ns-school-immunization", sampleRawCSV)

	var buf strings.Builder
	report, err := Run(cfg, "ns-school-immunization", &buf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RowsOut != 3 {
		t.Errorf("RowsOut = %d, want 3", report.RowsOut)
	}
	if !strings.Contains(buf.String(), "3 rows in, 3 rows out") {
		t.Errorf("status output = %q", buf.String())
	}

	records, err := ReadClean(filepath.Join(cfg.DataDir, cleanDir, "ns-school-immunization.csv"))
	if err != nil {
		t.Fatalf("ReadClean: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d clean records, want 3", len(records))
	}
	if records[2].VaccineGroup != "MEN-C" {
		t.Errorf("VaccineGroup = %q, want MEN-C", records[2].VaccineGroup)
	}
	if records[0].PctCoverage == nil || *records[0].PctCoverage != 82.3 {
		t.Errorf("PctCoverage = %v, want 82.3", records[0].PctCoverage)
	}

	reportPath := filepath.Join(cfg.DataDir, cleanDir, "ns-school-immunization-report.yaml")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var onDisk types.TransformReport
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if onDisk.RowsOut != 3 || onDisk.Slug != "ns-school-immunization" {
		t.Errorf("report on disk = %+v", onDisk)
	}
}

func TestRunUpdatesDatasetMetadata(t *testing.T) {
	cfg := setupRaw(t, "ns", sampleRawCSV)

	metaDir := filepath.Join(cfg.DataDir, metadataDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ds := types.Dataset{Slug: "ns", SourceURL: "https://example.org/ns.csv"}
	data, err := yaml.Marshal(&ds)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "ns.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	if _, err := Run(cfg, "ns", &buf); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(metaDir, "ns.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var updated types.Dataset
	if err := yaml.Unmarshal(out, &updated); err != nil {
		t.Fatal(err)
	}
	wantClean := filepath.Join(cfg.DataDir, cleanDir, "ns.csv")
	if updated.CleanPath != wantClean {
		t.Errorf("CleanPath = %q, want %q", updated.CleanPath, wantClean)
	}
	if updated.SourceURL != "https://example.org/ns.csv" {
		t.Errorf("SourceURL lost on rewrite: %q", updated.SourceURL)
	}
}

func TestRunToleratesRaggedRawRows(t *testing.T) {
	raw := "Year,Zone,Vaccine,# Immunized,# Eligible,% Coverage,95% CI\n" +
		"2016-17,Zone 1 - Western,HPV,100,120,0.833,80-84\n" +
		"2016-17,Zone 2 - Northern,HBV\n" +
		"2017-18,Zone 1 - Western,Tdap,99,120,0.825,78-87\n"
	cfg := setupRaw(t, "ragged", raw)

	var buf strings.Builder
	report, err := Run(cfg, "ragged", &buf)
	if err != nil {
		t.Fatalf("Run should survive a ragged row: %v", err)
	}
	if report.RowsIn != 3 || report.RowsOut != 2 {
		t.Errorf("rows = %d in, %d out; want 3 in, 2 out", report.RowsIn, report.RowsOut)
	}
	if len(report.Failures) != 1 || report.Failures[0].Row != 2 {
		t.Errorf("failures = %+v", report.Failures)
	}
	if !strings.Contains(buf.String(), "1 rejected") {
		t.Errorf("status output = %q", buf.String())
	}
}

func TestRunMissingRawFile(t *testing.T) {
	cfg := types.TransformConfig{DataDir: t.TempDir()}

	_, err := Run(cfg, "absent", &strings.Builder{})
	if err == nil {
		t.Fatal("expected error for missing raw file")
	}
}

func TestCleanRoundTripPreservesNulls(t *testing.T) {
	n := 100
	f := 82.3
	records := []types.CoverageRecord{
		{
			SchoolYear: "2016-17", Zone: "Zone 1", Vaccine: "HPV", VaccineGroup: "HPV",
			NoImmunized: &n, PctCoverage: &f,
		},
		{
			SchoolYear: "2017-18", Zone: "Zone 2", Vaccine: "Tdap", VaccineGroup: "Tdap",
		},
	}

	path := filepath.Join(t.TempDir(), "clean.csv")
	if err := WriteClean(path, records); err != nil {
		t.Fatalf("WriteClean: %v", err)
	}

	got, err := ReadClean(path)
	if err != nil {
		t.Fatalf("ReadClean: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].NoImmunized == nil || *got[0].NoImmunized != 100 {
		t.Errorf("NoImmunized = %v, want 100", got[0].NoImmunized)
	}
	if got[0].NoEligible != nil {
		t.Errorf("NoEligible should round-trip as null, got %v", *got[0].NoEligible)
	}
	if got[1].NoImmunized != nil || got[1].PctCoverage != nil {
		t.Errorf("all-null record should stay null: %+v", got[1])
	}
}

func TestReadCleanRejectsWrongHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadClean(path)
	if err == nil {
		t.Fatal("expected error for wrong header")
	}
	if !strings.Contains(err.Error(), "columns") {
		t.Errorf("error = %v", err)
	}
}

func TestReadCleanRejectsShortRow(t *testing.T) {
	content := strings.Join(CleanHeader, ",") + "\n2016-17,Zone 1,HPV,HPV\n"
	path := filepath.Join(t.TempDir(), "short.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadClean(path)
	if err == nil {
		t.Fatal("expected error for short row")
	}
	if !strings.Contains(err.Error(), "row 1: 4 columns, want 9") {
		t.Errorf("error = %v", err)
	}
}
