// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RowFailure records one data row the transform could not clean.
type RowFailure struct {
	// Row is the 1-based data row number in the raw file, header excluded.
	Row int `json:"row" yaml:"row"`

	// Reason describes why the row was rejected.
	Reason string `json:"reason" yaml:"reason"`
}

// TransformReport summarizes one transform run. It is written next to the
// cleaned CSV so a load can be audited without re-running the transform.
type TransformReport struct {
	// Slug identifies the dataset the report belongs to.
	Slug string `json:"slug" yaml:"slug"`

	// FinishedAt records when the transform completed.
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// RowsIn is the data row count of the raw file.
	RowsIn int `json:"rows_in" yaml:"rows_in"`

	// RowsOut is the data row count of the cleaned file.
	RowsOut int `json:"rows_out" yaml:"rows_out"`

	// RenamedColumns maps raw header names to their cleaned names.
	RenamedColumns map[string]string `json:"renamed_columns" yaml:"renamed_columns"`

	// CountCellsParsed is the number of count cells normalized from
	// separator-formatted text (e.g. "1,234") to integers.
	CountCellsParsed int `json:"count_cells_parsed" yaml:"count_cells_parsed"`

	// CoverageCellsRescaled is the number of coverage cells rescaled from
	// fractions to percentages.
	CoverageCellsRescaled int `json:"coverage_cells_rescaled" yaml:"coverage_cells_rescaled"`

	// CISplit is the number of confidence interval cells split into bounds.
	CISplit int `json:"ci_split" yaml:"ci_split"`

	// CIMalformed is the number of confidence interval cells that could not
	// be split and were nulled.
	CIMalformed int `json:"ci_malformed" yaml:"ci_malformed"`

	// BlankCells is the number of blank numeric cells carried through as null.
	BlankCells int `json:"blank_cells" yaml:"blank_cells"`

	// VaccineGroups maps each derived vaccine group to the number of rows
	// assigned to it.
	VaccineGroups map[string]int `json:"vaccine_groups" yaml:"vaccine_groups"`

	// Failures lists rejected rows with reasons. Rejected rows are excluded
	// from the cleaned file but do not fail the run.
	Failures []RowFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// HasFailures reports whether any rows were rejected.
func (r TransformReport) HasFailures() bool {
	return len(r.Failures) > 0
}
