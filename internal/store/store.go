// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists cleaned coverage records in a SQLite database and
// answers filtered and aggregated queries over them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/immunization-etl/internal/transform"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

const (
	cleanDir    = "clean"
	indexDir    = "index"
	metadataDir = "metadata"
	dbFile      = "immunization.db"
)

// Store manages the coverage SQLite database.
type Store struct {
	db         *sql.DB
	dataDir    string
	maxResults int
}

// New opens or creates the SQLite database at dataDir/index/immunization.db.
// It creates the schema if it does not exist.
func New(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	s := &Store{
		db:         db,
		dataDir:    cfg.DataDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			slug TEXT PRIMARY KEY,
			source_url TEXT,
			fetched_at TEXT,
			sha256 TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS coverage (
			dataset TEXT NOT NULL REFERENCES datasets(slug),
			school_year TEXT NOT NULL,
			zone TEXT NOT NULL,
			vaccine TEXT NOT NULL,
			vaccine_group TEXT NOT NULL,
			no_immunized INTEGER,
			no_eligible INTEGER,
			pct_coverage REAL,
			lower_95_pct_ci REAL,
			upper_95_pct_ci REAL,
			PRIMARY KEY (dataset, school_year, zone, vaccine)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_coverage_group ON coverage(vaccine_group)`,
		`CREATE INDEX IF NOT EXISTS idx_coverage_year ON coverage(school_year)`,
		`CREATE TABLE IF NOT EXISTS load_status (
			dataset TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// LoadSummary holds counts from a load run.
type LoadSummary struct {
	Loaded  int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of clean files processed.
func (s LoadSummary) Total() int {
	return s.Loaded + s.Updated + s.Skipped + s.Failed
}

// Load reads cleaned CSV files from dataDir/clean/ and populates the
// database. It detects new, changed, and unchanged files for incremental
// updates, and verifies each load by reading the row count back.
func (s *Store) Load(ctx context.Context, w io.Writer) (LoadSummary, error) {
	cleanPath := filepath.Join(s.dataDir, cleanDir)

	entries, err := os.ReadDir(cleanPath)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("reading clean directory %s: %w", cleanPath, err)
	}

	var summary LoadSummary

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		slug := strings.TrimSuffix(name, ".csv")
		filePath := filepath.Join(cleanPath, name)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", slug, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		// Unchanged files skip on subsequent runs.
		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM load_status WHERE dataset = ?`, slug,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", slug)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		records, err := transform.ReadClean(filePath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", slug, err)
			summary.Failed++
			continue
		}

		meta := loadDatasetMetadata(filepath.Join(s.dataDir, metadataDir), slug)

		if err := s.loadDataset(ctx, slug, records, meta, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", slug, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d rows)\n", slug, len(records))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "loaded  %s (%d rows)\n", slug, len(records))
			summary.Loaded++
		}
	}

	fmt.Fprintf(w, "\nloaded: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Loaded, summary.Updated, summary.Skipped, summary.Failed)

	// Refresh the export files after successful loads.
	if summary.Loaded > 0 || summary.Updated > 0 {
		if err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
		if err := s.ExportJSON(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.json write failed: %v\n", err)
		}
	}

	return summary, nil
}

func (s *Store) loadDataset(ctx context.Context, slug string, records []types.CoverageRecord, meta *types.Dataset, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM coverage WHERE dataset = ?`, slug); err != nil {
			return fmt.Errorf("deleting old rows: %w", err)
		}
	}

	if meta != nil {
		fetchedAt := ""
		if !meta.FetchedAt.IsZero() {
			fetchedAt = meta.FetchedAt.Format(time.RFC3339)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (slug, source_url, fetched_at, sha256)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(slug) DO UPDATE SET
				source_url=excluded.source_url, fetched_at=excluded.fetched_at,
				sha256=excluded.sha256`,
			slug, meta.SourceURL, fetchedAt, meta.SHA256,
		)
		if err != nil {
			return fmt.Errorf("upserting dataset: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO datasets (slug) VALUES (?)`, slug,
		); err != nil {
			return fmt.Errorf("inserting dataset stub: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO coverage
			(dataset, school_year, zone, vaccine, vaccine_group,
			 no_immunized, no_eligible, pct_coverage, lower_95_pct_ci, upper_95_pct_ci)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			slug, rec.SchoolYear, rec.Zone, rec.Vaccine, rec.VaccineGroup,
			nullInt(rec.NoImmunized), nullInt(rec.NoEligible),
			nullFloat(rec.PctCoverage), nullFloat(rec.Lower95PctCI), nullFloat(rec.Upper95PctCI),
		)
		if err != nil {
			return fmt.Errorf("inserting row %s: %w", rec.Key(), err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO load_status (dataset, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(dataset) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		slug, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating load status: %w", err)
	}

	// Read the table back before committing: a count mismatch (duplicate
	// natural keys collapsed by the upsert, for instance) rolls the whole
	// load back, so a failed dataset leaves no rows and no status entry.
	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM coverage WHERE dataset = ?`, slug,
	).Scan(&stored); err != nil {
		return fmt.Errorf("verification query: %w", err)
	}
	if stored != len(records) {
		return fmt.Errorf("verification: %d rows stored, %d expected", stored, len(records))
	}

	return tx.Commit()
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// loadDatasetMetadata reads a Dataset record from metaDir/[slug].yaml.
// Returns nil if the file does not exist or cannot be parsed.
func loadDatasetMetadata(metaDir, slug string) *types.Dataset {
	data, err := os.ReadFile(filepath.Join(metaDir, slug+".yaml"))
	if err != nil {
		return nil
	}
	var d types.Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil
	}
	return &d
}
