// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/immunization-etl/pkg/types"
)

// QueryOptions holds filters for coverage queries.
type QueryOptions struct {
	// Dataset filters by dataset slug.
	Dataset string

	// SchoolYear filters by reporting period (e.g. "2017-18").
	SchoolYear string

	// Zone filters by health zone.
	Zone string

	// Vaccine filters by the published vaccine label.
	Vaccine string

	// VaccineGroup filters by the derived dose-independent group.
	VaccineGroup string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Dataset == "" && q.SchoolYear == "" && q.Zone == "" &&
		q.Vaccine == "" && q.VaccineGroup == ""
}

// QueryResult is a CoverageRecord with its dataset slug.
type QueryResult struct {
	types.CoverageRecord `yaml:",inline"`
	Dataset              string `json:"dataset" yaml:"dataset"`
}

// Retrieve queries coverage rows with the given filters, sorted by school
// year, zone, and vaccine.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT dataset, school_year, zone, vaccine, vaccine_group,
			no_immunized, no_eligible, pct_coverage, lower_95_pct_ci, upper_95_pct_ci
		FROM coverage
		WHERE 1=1`)
	appendFilters(&qb, &args, opts)
	qb.WriteString(` ORDER BY school_year, zone, vaccine LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying coverage: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr         QueryResult
			noImm      sql.NullInt64
			noElig     sql.NullInt64
			pct, lo, hi sql.NullFloat64
		)
		if err := rows.Scan(
			&qr.Dataset, &qr.SchoolYear, &qr.Zone, &qr.Vaccine, &qr.VaccineGroup,
			&noImm, &noElig, &pct, &lo, &hi,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		qr.NoImmunized = intPtr(noImm)
		qr.NoEligible = intPtr(noElig)
		qr.PctCoverage = floatPtr(pct)
		qr.Lower95PctCI = floatPtr(lo)
		qr.Upper95PctCI = floatPtr(hi)
		results = append(results, qr)
	}
	return results, rows.Err()
}

// AggregateRow is coverage summed over one vaccine group and school year.
// Comparing groups rather than raw labels keeps year-over-year comparisons
// meaningful when a vaccine is published whole one year and split into doses
// the next.
type AggregateRow struct {
	VaccineGroup string `json:"vaccine_group" yaml:"vaccine_group"`
	SchoolYear   string `json:"school_year" yaml:"school_year"`

	// Rows is the number of coverage rows aggregated.
	Rows int `json:"rows" yaml:"rows"`

	// NoImmunized and NoEligible are sums over rows with non-null counts.
	NoImmunized int `json:"no_immunized" yaml:"no_immunized"`
	NoEligible  int `json:"no_eligible" yaml:"no_eligible"`

	// PctCoverage is the eligible-weighted coverage:
	// sum(immunized) / sum(eligible) * 100. Null when no eligible counts.
	PctCoverage *float64 `json:"pct_coverage" yaml:"pct_coverage"`
}

// Aggregate sums coverage by (vaccine_group, school_year) under the same
// filters as Retrieve.
func (s *Store) Aggregate(ctx context.Context, opts QueryOptions) ([]AggregateRow, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT vaccine_group, school_year, count(*),
			coalesce(sum(no_immunized), 0), coalesce(sum(no_eligible), 0)
		FROM coverage
		WHERE 1=1`)
	appendFilters(&qb, &args, opts)
	qb.WriteString(` GROUP BY vaccine_group, school_year ORDER BY vaccine_group, school_year`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying aggregates: %w", err)
	}
	defer rows.Close()

	var results []AggregateRow
	for rows.Next() {
		var ar AggregateRow
		if err := rows.Scan(&ar.VaccineGroup, &ar.SchoolYear, &ar.Rows, &ar.NoImmunized, &ar.NoEligible); err != nil {
			return nil, fmt.Errorf("scanning aggregate: %w", err)
		}
		if ar.NoEligible > 0 {
			pct := float64(ar.NoImmunized) / float64(ar.NoEligible) * 100
			ar.PctCoverage = &pct
		}
		results = append(results, ar)
	}
	return results, rows.Err()
}

func appendFilters(qb *strings.Builder, args *[]any, opts QueryOptions) {
	if opts.Dataset != "" {
		qb.WriteString(` AND dataset = ?`)
		*args = append(*args, opts.Dataset)
	}
	if opts.SchoolYear != "" {
		qb.WriteString(` AND school_year = ?`)
		*args = append(*args, opts.SchoolYear)
	}
	if opts.Zone != "" {
		qb.WriteString(` AND zone = ?`)
		*args = append(*args, opts.Zone)
	}
	if opts.Vaccine != "" {
		qb.WriteString(` AND vaccine = ?`)
		*args = append(*args, opts.Vaccine)
	}
	if opts.VaccineGroup != "" {
		qb.WriteString(` AND vaccine_group = ?`)
		*args = append(*args, opts.VaccineGroup)
	}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
