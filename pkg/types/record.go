// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RawTable is a parsed CSV file: one header row plus data rows. Rows
// usually match the header width, but ragged source files are preserved
// as-is, so consumers must not assume it.
type RawTable struct {
	// Header holds the column names in file order.
	Header []string

	// Rows holds the data rows in file order.
	Rows [][]string
}

// ColumnIndex returns the position of name in the header, or -1 when absent.
func (t *RawTable) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order. The ok return
// is false when the column does not exist. Rows too short to reach the
// column contribute an empty value.
func (t *RawTable) Column(name string) (values []string, ok bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values = make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, true
}

// CoverageRecord is one cleaned observation: immunization coverage for a
// vaccine, in a health zone, over a school year. Numeric fields are pointers
// because the source data carries blank cells that must stay null rather
// than collapse to zero.
type CoverageRecord struct {
	// SchoolYear is the reporting period as it appears in the source (e.g. "2017-18").
	SchoolYear string `json:"school_year" yaml:"school_year"`

	// Zone is the Nova Scotia health management zone (e.g. "Zone 1 - Western").
	Zone string `json:"zone" yaml:"zone"`

	// Vaccine is the vaccine label as published, dose qualifiers included
	// (e.g. "HBV - Dose 2").
	Vaccine string `json:"vaccine" yaml:"vaccine"`

	// VaccineGroup is the derived dose-independent vaccine family
	// (e.g. "HBV", "MEN-C"). Derived during transformation.
	VaccineGroup string `json:"vaccine_group" yaml:"vaccine_group"`

	// NoImmunized is the count of immunized students.
	NoImmunized *int `json:"no_immunized" yaml:"no_immunized"`

	// NoEligible is the count of eligible students.
	NoEligible *int `json:"no_eligible" yaml:"no_eligible"`

	// PctCoverage is the coverage percentage on a 0-100 scale, one decimal.
	PctCoverage *float64 `json:"pct_coverage" yaml:"pct_coverage"`

	// Lower95PctCI is the lower bound of the 95% confidence interval.
	Lower95PctCI *float64 `json:"lower_95_pct_ci" yaml:"lower_95_pct_ci"`

	// Upper95PctCI is the upper bound of the 95% confidence interval.
	Upper95PctCI *float64 `json:"upper_95_pct_ci" yaml:"upper_95_pct_ci"`
}

// Key returns the natural key of the record. Each (school year, zone,
// vaccine) combination appears at most once in a well-formed dataset.
func (r CoverageRecord) Key() string {
	return r.SchoolYear + "|" + r.Zone + "|" + r.Vaccine
}
