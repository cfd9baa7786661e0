// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"fmt"
	"strconv"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

// CleanHeader is the column order of cleaned CSV files.
var CleanHeader = []string{
	"school_year",
	"zone",
	"vaccine",
	"vaccine_group",
	"no_immunized",
	"no_eligible",
	"pct_coverage",
	"lower_95_pct_ci",
	"upper_95_pct_ci",
}

// WriteClean writes records as a cleaned CSV at path. Null numeric fields
// become empty cells.
func WriteClean(path string, records []types.CoverageRecord) error {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.SchoolYear,
			rec.Zone,
			rec.Vaccine,
			rec.VaccineGroup,
			formatCount(rec.NoImmunized),
			formatCount(rec.NoEligible),
			formatDecimal(rec.PctCoverage),
			formatDecimal(rec.Lower95PctCI),
			formatDecimal(rec.Upper95PctCI),
		}
	}
	return dataset.WriteFile(path, CleanHeader, rows)
}

// ReadClean reads a cleaned CSV back into records. The load stage uses this
// so a clean file produced by an earlier run can be loaded without
// re-running the transform.
func ReadClean(path string) ([]types.CoverageRecord, error) {
	table, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(table.Header) != len(CleanHeader) {
		return nil, fmt.Errorf("%s: %d columns, cleaned files have %d", path, len(table.Header), len(CleanHeader))
	}
	for i, want := range CleanHeader {
		if table.Header[i] != want {
			return nil, fmt.Errorf("%s: column %d is %q, want %q", path, i, table.Header[i], want)
		}
	}

	records := make([]types.CoverageRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		if len(row) != len(CleanHeader) {
			return nil, fmt.Errorf("%s row %d: %d columns, want %d", path, i+1, len(row), len(CleanHeader))
		}
		rec := types.CoverageRecord{
			SchoolYear:   row[0],
			Zone:         row[1],
			Vaccine:      row[2],
			VaccineGroup: row[3],
		}
		var err error
		if rec.NoImmunized, err = parseCount(row[4]); err != nil {
			return nil, fmt.Errorf("%s row %d: no_immunized: %w", path, i+1, err)
		}
		if rec.NoEligible, err = parseCount(row[5]); err != nil {
			return nil, fmt.Errorf("%s row %d: no_eligible: %w", path, i+1, err)
		}
		if rec.PctCoverage, err = parseDecimal(row[6]); err != nil {
			return nil, fmt.Errorf("%s row %d: pct_coverage: %w", path, i+1, err)
		}
		if rec.Lower95PctCI, err = parseDecimal(row[7]); err != nil {
			return nil, fmt.Errorf("%s row %d: lower_95_pct_ci: %w", path, i+1, err)
		}
		if rec.Upper95PctCI, err = parseDecimal(row[8]); err != nil {
			return nil, fmt.Errorf("%s row %d: upper_95_pct_ci: %w", path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatCount(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatDecimal(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 1, 64)
}

func parseCount(cell string) (*int, error) {
	if cell == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", cell, err)
	}
	return &n, nil
}

func parseDecimal(cell string) (*float64, error) {
	if cell == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", cell, err)
	}
	return &f, nil
}
