// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/immunization-etl/internal/transform"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	dataDir := t.TempDir()

	for _, dir := range []string{
		filepath.Join(dataDir, cleanDir),
		filepath.Join(dataDir, metadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	s, err := New(types.StoreConfig{DataDir: dataDir, MaxResults: 50})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	return s, dataDir
}

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

func sampleRecords() []types.CoverageRecord {
	return []types.CoverageRecord{
		{
			SchoolYear: "2016-17", Zone: "Zone 1 - Western", Vaccine: "HPV", VaccineGroup: "HPV",
			NoImmunized: intp(1200), NoEligible: intp(1500), PctCoverage: floatp(80.0),
			Lower95PctCI: floatp(78.1), Upper95PctCI: floatp(82.0),
		},
		{
			SchoolYear: "2016-17", Zone: "Zone 2 - Northern", Vaccine: "HBV", VaccineGroup: "HBV",
			NoImmunized: intp(900), NoEligible: intp(1000), PctCoverage: floatp(90.0),
		},
		{
			SchoolYear: "2017-18", Zone: "Zone 1 - Western", Vaccine: "HBV - Dose 1", VaccineGroup: "HBV",
			NoImmunized: intp(450), NoEligible: intp(500), PctCoverage: floatp(90.0),
		},
		{
			SchoolYear: "2017-18", Zone: "Zone 1 - Western", Vaccine: "HBV - Dose 2", VaccineGroup: "HBV",
			NoImmunized: intp(400), NoEligible: intp(500), PctCoverage: floatp(80.0),
		},
	}
}

func writeClean(t *testing.T, dataDir, slug string, records []types.CoverageRecord) {
	t.Helper()
	path := filepath.Join(dataDir, cleanDir, slug+".csv")
	if err := transform.WriteClean(path, records); err != nil {
		t.Fatal(err)
	}
}

func writeMeta(t *testing.T, dataDir string, d types.Dataset) {
	t.Helper()
	data, err := yaml.Marshal(&d)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dataDir, metadataDir, d.Slug+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func loadHelper(t *testing.T, s *Store, dataDir, slug string) {
	t.Helper()
	writeClean(t, dataDir, slug, sampleRecords())
	var buf strings.Builder
	if _, err := s.Load(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestNewCreatesSchema(t *testing.T) {
	s, _ := testSetup(t)

	tables := []string{"coverage", "datasets", "load_status"}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewCreatesDBFile(t *testing.T) {
	dataDir := t.TempDir()

	s, err := New(types.StoreConfig{DataDir: dataDir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	dbPath := filepath.Join(dataDir, indexDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
}

// --- load tests ---

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		datasets   int
		wantLoaded int
	}{
		{"single dataset", 1, 1},
		{"multiple datasets", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dataDir := testSetup(t)

			for i := 0; i < tt.datasets; i++ {
				writeClean(t, dataDir, fmt.Sprintf("dataset-%d", i), sampleRecords())
			}

			var buf strings.Builder
			summary, err := s.Load(context.Background(), &buf)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if summary.Loaded != tt.wantLoaded {
				t.Errorf("Loaded = %d, want %d", summary.Loaded, tt.wantLoaded)
			}
			if summary.Failed != 0 {
				t.Errorf("Failed = %d, want 0; output: %s", summary.Failed, buf.String())
			}
		})
	}
}

func TestLoadStoresAllFields(t *testing.T) {
	s, dataDir := testSetup(t)
	loadHelper(t, s, dataDir, "ns")

	results, err := s.Retrieve(context.Background(), QueryOptions{SchoolYear: "2016-17", Zone: "Zone 1 - Western"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.Dataset != "ns" {
		t.Errorf("Dataset = %q, want ns", r.Dataset)
	}
	if r.Vaccine != "HPV" || r.VaccineGroup != "HPV" {
		t.Errorf("Vaccine/group = %q/%q", r.Vaccine, r.VaccineGroup)
	}
	if r.NoImmunized == nil || *r.NoImmunized != 1200 {
		t.Errorf("NoImmunized = %v, want 1200", r.NoImmunized)
	}
	if r.PctCoverage == nil || *r.PctCoverage != 80.0 {
		t.Errorf("PctCoverage = %v, want 80.0", r.PctCoverage)
	}
	if r.Lower95PctCI == nil || *r.Lower95PctCI != 78.1 {
		t.Errorf("Lower95PctCI = %v, want 78.1", r.Lower95PctCI)
	}
}

func TestLoadPreservesNulls(t *testing.T) {
	s, dataDir := testSetup(t)
	writeClean(t, dataDir, "sparse", []types.CoverageRecord{
		{SchoolYear: "2016-17", Zone: "Zone 1", Vaccine: "Tdap", VaccineGroup: "Tdap"},
	})

	var buf strings.Builder
	if _, err := s.Load(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	results, err := s.Retrieve(context.Background(), QueryOptions{Vaccine: "Tdap"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.NoImmunized != nil || r.NoEligible != nil || r.PctCoverage != nil {
		t.Errorf("null fields should stay null: %+v", r)
	}
}

func TestLoadPopulatesDatasetsTable(t *testing.T) {
	s, dataDir := testSetup(t)
	writeMeta(t, dataDir, types.Dataset{
		Slug:      "ns",
		SourceURL: "https://example.org/ns.csv",
		SHA256:    "abc123",
		FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	loadHelper(t, s, dataDir, "ns")

	var sourceURL, sha string
	err := s.db.QueryRow(`SELECT source_url, sha256 FROM datasets WHERE slug = 'ns'`).Scan(&sourceURL, &sha)
	if err != nil {
		t.Fatal(err)
	}
	if sourceURL != "https://example.org/ns.csv" || sha != "abc123" {
		t.Errorf("datasets row = %q / %q", sourceURL, sha)
	}
}

func TestLoadSkipsUnchangedFiles(t *testing.T) {
	s, dataDir := testSetup(t)
	writeClean(t, dataDir, "ns", sampleRecords())

	var buf strings.Builder
	if _, err := s.Load(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Load(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Loaded != 0 {
		t.Errorf("second load = %+v, want 1 skipped", summary)
	}
}

func TestLoadReplacesChangedFiles(t *testing.T) {
	s, dataDir := testSetup(t)
	writeClean(t, dataDir, "ns", sampleRecords())

	var buf strings.Builder
	if _, err := s.Load(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	// Rewrite with fewer rows and a future mod time so the change is seen.
	writeClean(t, dataDir, "ns", sampleRecords()[:2])
	path := filepath.Join(dataDir, cleanDir, "ns.csv")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Load(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 1 {
		t.Fatalf("Updated = %d, want 1; output: %s", summary.Updated, buf.String())
	}

	var count int
	if err := s.db.QueryRow(`SELECT count(*) FROM coverage WHERE dataset = 'ns'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("row count after update = %d, want 2", count)
	}
}

func TestLoadRollsBackDuplicateKeys(t *testing.T) {
	s, dataDir := testSetup(t)
	// Two rows with the same (school_year, zone, vaccine): the upsert
	// collapses them, so the stored count cannot match the file.
	writeClean(t, dataDir, "dup", []types.CoverageRecord{
		{SchoolYear: "2016-17", Zone: "Zone 1", Vaccine: "HPV", VaccineGroup: "HPV", NoImmunized: intp(100)},
		{SchoolYear: "2016-17", Zone: "Zone 1", Vaccine: "HPV", VaccineGroup: "HPV", NoImmunized: intp(200)},
	})

	var buf strings.Builder
	summary, err := s.Load(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Loaded != 0 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if !strings.Contains(buf.String(), "1 rows stored, 2 expected") {
		t.Errorf("output = %q", buf.String())
	}

	// The failed load leaves nothing behind.
	results, err := s.Retrieve(context.Background(), QueryOptions{Dataset: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d rows after failed load, want 0", len(results))
	}

	// Without a load_status entry the file is retried, not skipped.
	buf.Reset()
	summary, err = s.Load(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 0 || summary.Failed != 1 {
		t.Errorf("second load = %+v, want 1 failed, 0 skipped", summary)
	}
}

func TestLoadContinuesAfterBadFile(t *testing.T) {
	s, dataDir := testSetup(t)
	writeClean(t, dataDir, "good", sampleRecords())

	badPath := filepath.Join(dataDir, cleanDir, "bad.csv")
	if err := os.WriteFile(badPath, []byte("not,a,clean,file\n1,2,3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := s.Load(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Loaded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 loaded, 1 failed", summary)
	}
}

func TestLoadWritesExports(t *testing.T) {
	s, dataDir := testSetup(t)
	loadHelper(t, s, dataDir, "ns")

	yamlPath := filepath.Join(dataDir, indexDir, "export.yaml")
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		t.Fatalf("export.yaml: %v", err)
	}
	var fromYAML []QueryResult
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatalf("parsing export.yaml: %v", err)
	}
	if len(fromYAML) != 4 {
		t.Errorf("export.yaml has %d entries, want 4", len(fromYAML))
	}

	jsonPath := filepath.Join(dataDir, indexDir, "export.json")
	data, err = os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("export.json: %v", err)
	}
	var fromJSON []QueryResult
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatalf("parsing export.json: %v", err)
	}
	if len(fromJSON) != 4 {
		t.Errorf("export.json has %d entries, want 4", len(fromJSON))
	}
}

// --- query tests ---

func TestRetrieveFilters(t *testing.T) {
	s, dataDir := testSetup(t)
	loadHelper(t, s, dataDir, "ns")

	tests := []struct {
		name string
		opts QueryOptions
		want int
	}{
		{"by school year", QueryOptions{SchoolYear: "2016-17"}, 2},
		{"by zone", QueryOptions{Zone: "Zone 1 - Western"}, 3},
		{"by vaccine", QueryOptions{Vaccine: "HBV - Dose 1"}, 1},
		{"by vaccine group", QueryOptions{VaccineGroup: "HBV"}, 3},
		{"by dataset", QueryOptions{Dataset: "ns"}, 4},
		{"combined", QueryOptions{VaccineGroup: "HBV", SchoolYear: "2017-18"}, 2},
		{"no match", QueryOptions{Zone: "Zone 9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Retrieve(context.Background(), tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d results, want %d", len(results), tt.want)
			}
		})
	}
}

func TestRetrieveRespectsMaxResults(t *testing.T) {
	s, dataDir := testSetup(t)
	loadHelper(t, s, dataDir, "ns")

	results, err := s.Retrieve(context.Background(), QueryOptions{Dataset: "ns", MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestAggregate(t *testing.T) {
	s, dataDir := testSetup(t)
	loadHelper(t, s, dataDir, "ns")

	rows, err := s.Aggregate(context.Background(), QueryOptions{VaccineGroup: "HBV"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d aggregate rows, want 2", len(rows))
	}

	// 2016-17: one HBV row, 900/1000.
	r := rows[0]
	if r.SchoolYear != "2016-17" || r.Rows != 1 || r.NoImmunized != 900 || r.NoEligible != 1000 {
		t.Errorf("2016-17 aggregate = %+v", r)
	}
	if r.PctCoverage == nil || *r.PctCoverage != 90.0 {
		t.Errorf("2016-17 PctCoverage = %v, want 90.0", r.PctCoverage)
	}

	// 2017-18: both HBV doses sum to 850/1000 = 85%.
	r = rows[1]
	if r.SchoolYear != "2017-18" || r.Rows != 2 || r.NoImmunized != 850 || r.NoEligible != 1000 {
		t.Errorf("2017-18 aggregate = %+v", r)
	}
	if r.PctCoverage == nil || *r.PctCoverage != 85.0 {
		t.Errorf("2017-18 PctCoverage = %v, want 85.0", r.PctCoverage)
	}
}

func TestAggregateWithoutCountsHasNullCoverage(t *testing.T) {
	s, dataDir := testSetup(t)
	writeClean(t, dataDir, "sparse", []types.CoverageRecord{
		{SchoolYear: "2016-17", Zone: "Zone 1", Vaccine: "Tdap", VaccineGroup: "Tdap"},
	})

	var buf strings.Builder
	if _, err := s.Load(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Aggregate(context.Background(), QueryOptions{VaccineGroup: "Tdap"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].PctCoverage != nil {
		t.Errorf("PctCoverage = %v, want nil", *rows[0].PctCoverage)
	}
}

func TestQueryOptionsIsEmpty(t *testing.T) {
	if !(QueryOptions{}).IsEmpty() {
		t.Error("zero options should be empty")
	}
	if (QueryOptions{Zone: "Zone 1"}).IsEmpty() {
		t.Error("options with a filter should not be empty")
	}
}
