// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform cleans a raw immunization coverage table into typed
// records: normalized headers, parsed counts, rescaled coverage, split
// confidence intervals, and derived vaccine groups.
package transform

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

// Cleaned column names the transform depends on.
const (
	colSchoolYear  = "school_year"
	colZone        = "zone"
	colVaccine     = "vaccine"
	colNoImmunized = "no_immunized"
	colNoEligible  = "no_eligible"
	colPctCoverage = "pct_coverage"
	colCI          = "95_pct_ci"
)

const defaultMaxFailures = 50

// Apply cleans a raw table into CoverageRecords and a report. Individual bad
// rows become report failures, not errors; Apply returns an error only when
// the table is structurally unusable (missing key columns) or the failure
// count exceeds cfg.MaxFailures.
func Apply(table *types.RawTable, cfg types.TransformConfig, slug string) ([]types.CoverageRecord, types.TransformReport, error) {
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}

	renamed, mapping := RenameHeader(table.Header)

	report := types.TransformReport{
		Slug:           slug,
		RowsIn:         len(table.Rows),
		RenamedColumns: mapping,
		VaccineGroups:  make(map[string]int),
	}

	idx := make(map[string]int, len(renamed))
	for i, name := range renamed {
		idx[name] = i
	}
	for _, required := range []string{colSchoolYear, colZone, colVaccine} {
		if _, ok := idx[required]; !ok {
			return nil, report, fmt.Errorf("missing required column %q (raw header: %v)", required, table.Header)
		}
	}

	var records []types.CoverageRecord
	for i, row := range table.Rows {
		rowNum := i + 1

		if len(row) != len(table.Header) {
			report.Failures = append(report.Failures, types.RowFailure{
				Row:    rowNum,
				Reason: fmt.Sprintf("%d columns, header has %d", len(row), len(table.Header)),
			})
			continue
		}

		rec, failure := cleanRow(row, idx, &report)
		if failure != "" {
			report.Failures = append(report.Failures, types.RowFailure{Row: rowNum, Reason: failure})
			continue
		}
		report.VaccineGroups[rec.VaccineGroup]++
		records = append(records, rec)
	}

	report.RowsOut = len(records)
	report.FinishedAt = time.Now().UTC()

	if len(report.Failures) > maxFailures {
		return nil, report, fmt.Errorf("%d rows failed cleaning (limit %d): file looks structurally wrong", len(report.Failures), maxFailures)
	}
	return records, report, nil
}

// cleanRow builds one CoverageRecord. A non-empty failure return rejects the
// row with that reason.
func cleanRow(row []string, idx map[string]int, report *types.TransformReport) (types.CoverageRecord, string) {
	cell := func(name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := types.CoverageRecord{
		SchoolYear: cell(colSchoolYear),
		Zone:       cell(colZone),
		Vaccine:    cell(colVaccine),
	}
	if rec.SchoolYear == "" || rec.Zone == "" || rec.Vaccine == "" {
		return rec, "blank school_year, zone, or vaccine"
	}
	rec.VaccineGroup = VaccineGroup(rec.Vaccine)

	// Count columns: strip thousands separators, keep blanks null.
	for _, c := range []struct {
		name string
		dst  **int
	}{
		{colNoImmunized, &rec.NoImmunized},
		{colNoEligible, &rec.NoEligible},
	} {
		raw := cell(c.name)
		if raw == "" {
			report.BlankCells++
			continue
		}
		n, ok := dataset.ParseCount(raw)
		if !ok {
			return rec, fmt.Sprintf("%s: cannot parse count %q", c.name, raw)
		}
		*c.dst = &n
		report.CountCellsParsed++
	}

	// Coverage arrives as a fraction (0.924); rescale to a percentage with
	// one decimal so it is comparable with the confidence interval bounds.
	if raw := cell(colPctCoverage); raw != "" {
		f, ok := dataset.ParseDecimal(raw)
		if !ok {
			return rec, fmt.Sprintf("%s: cannot parse %q", colPctCoverage, raw)
		}
		pct := roundOneDecimal(f * 100)
		rec.PctCoverage = &pct
		report.CoverageCellsRescaled++
	} else {
		report.BlankCells++
	}

	// The 95% CI column holds a textual range ("85.3-91.2"); split it into
	// typed bounds. Malformed ranges null the bounds rather than reject the
	// row: the counts are still usable.
	if raw := cell(colCI); raw != "" {
		lower, upper, ok := SplitCI(raw)
		if ok {
			rec.Lower95PctCI = &lower
			rec.Upper95PctCI = &upper
			report.CISplit++
		} else {
			report.CIMalformed++
		}
	} else {
		report.BlankCells++
	}

	return rec, ""
}

// SplitCI parses a confidence interval range "lower-upper" into bounds.
func SplitCI(raw string) (lower, upper float64, ok bool) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lower, lok := dataset.ParseDecimal(strings.TrimSpace(parts[0]))
	upper, uok := dataset.ParseDecimal(strings.TrimSpace(parts[1]))
	if !lok || !uok {
		return 0, 0, false
	}
	return roundOneDecimal(lower), roundOneDecimal(upper), true
}

// VaccineGroup derives the dose-independent vaccine family from a published
// vaccine label. Labels mostly group by the prefix before " - " ("HBV -
// Dose 2" is HBV); MEN-C variants carry a dash of their own ("MEN-C-ACYW")
// and collapse to "MEN-C".
func VaccineGroup(vaccine string) string {
	group := strings.TrimSpace(strings.SplitN(vaccine, " - ", 2)[0])
	if strings.HasPrefix(group, "MEN-C") {
		return "MEN-C"
	}
	return group
}

func roundOneDecimal(f float64) float64 {
	return math.Round(f*10) / 10
}
