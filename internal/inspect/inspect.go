// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inspect profiles a raw dataset before transformation: schema,
// distinct key values, duplicate detection, and numeric summaries. The
// profile answers what the columns hold, whether the natural key is unique,
// and whether every zone and vaccine shows up in every year.
package inspect

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

// Key columns of the published dataset, raw header spelling.
const (
	colYear    = "Year"
	colZone    = "Zone"
	colVaccine = "Vaccine"
)

// ColumnProfile describes one column of the raw table.
type ColumnProfile struct {
	Name     string             `json:"name"`
	Type     dataset.ColumnType `json:"type"`
	Blank    int                `json:"blank"`
	Distinct int                `json:"distinct"`

	// Stats is set for numeric columns only.
	Stats *NumericStats `json:"stats,omitempty"`
}

// NumericStats summarizes a numeric column.
type NumericStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// YearCoverage counts distinct zones and vaccines reported for one year.
type YearCoverage struct {
	Year     string `json:"year"`
	Zones    int    `json:"zones"`
	Vaccines int    `json:"vaccines"`
	Rows     int    `json:"rows"`
}

// Duplicate is a (year, zone, vaccine) combination appearing more than once.
type Duplicate struct {
	Year    string `json:"year"`
	Zone    string `json:"zone"`
	Vaccine string `json:"vaccine"`
	Count   int    `json:"count"`
}

// Profile is the full investigation result for one raw file.
type Profile struct {
	Slug       string          `json:"slug"`
	Rows       int             `json:"rows"`
	Columns    []ColumnProfile `json:"columns"`
	Years      []string        `json:"years"`
	Zones      []string        `json:"zones"`
	Vaccines   []string        `json:"vaccines"`
	ByYear     []YearCoverage  `json:"by_year"`
	Duplicates []Duplicate     `json:"duplicates,omitempty"`
}

// Build profiles a raw table.
func Build(table *types.RawTable, slug string) *Profile {
	p := &Profile{
		Slug: slug,
		Rows: len(table.Rows),
	}

	for _, name := range table.Header {
		values, _ := table.Column(name)
		p.Columns = append(p.Columns, profileColumn(name, values))
	}

	p.Years = distinctSorted(table, colYear)
	p.Zones = distinctSorted(table, colZone)
	p.Vaccines = distinctSorted(table, colVaccine)
	p.ByYear = byYear(table)
	p.Duplicates = duplicates(table)
	return p
}

func profileColumn(name string, values []string) ColumnProfile {
	cp := ColumnProfile{
		Name: name,
		Type: dataset.InferType(values),
	}

	distinct := make(map[string]struct{})
	var numeric []float64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			cp.Blank++
			continue
		}
		distinct[v] = struct{}{}

		switch cp.Type {
		case dataset.TypeInteger:
			if n, ok := dataset.ParseCount(v); ok {
				numeric = append(numeric, float64(n))
			}
		case dataset.TypeDecimal, dataset.TypePercentage:
			if f, ok := dataset.ParseDecimal(strings.TrimSuffix(v, "%")); ok {
				numeric = append(numeric, f)
			}
		}
	}
	cp.Distinct = len(distinct)

	if len(numeric) > 0 {
		cp.Stats = summarize(numeric)
	}
	return cp
}

// summarize computes descriptive statistics over a copy of values.
func summarize(values []float64) *NumericStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	return &NumericStats{
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Q25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

func distinctSorted(table *types.RawTable, column string) []string {
	values, ok := table.Column(column)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// byYear counts rows and distinct zones/vaccines per year. An uneven vaccine
// count across years usually means inconsistent vaccine labels (the same
// vaccine published whole one year and split into doses the next), which is
// exactly what the derived vaccine_group column compensates for.
func byYear(table *types.RawTable) []YearCoverage {
	yearIdx := table.ColumnIndex(colYear)
	zoneIdx := table.ColumnIndex(colZone)
	vaccineIdx := table.ColumnIndex(colVaccine)
	if yearIdx < 0 || zoneIdx < 0 || vaccineIdx < 0 {
		return nil
	}

	type sets struct {
		zones    map[string]struct{}
		vaccines map[string]struct{}
		rows     int
	}
	perYear := make(map[string]*sets)
	for _, row := range table.Rows {
		if yearIdx >= len(row) || zoneIdx >= len(row) || vaccineIdx >= len(row) {
			continue
		}
		year := strings.TrimSpace(row[yearIdx])
		if year == "" {
			continue
		}
		s := perYear[year]
		if s == nil {
			s = &sets{zones: make(map[string]struct{}), vaccines: make(map[string]struct{})}
			perYear[year] = s
		}
		s.zones[strings.TrimSpace(row[zoneIdx])] = struct{}{}
		s.vaccines[strings.TrimSpace(row[vaccineIdx])] = struct{}{}
		s.rows++
	}

	years := make([]string, 0, len(perYear))
	for y := range perYear {
		years = append(years, y)
	}
	sort.Strings(years)

	out := make([]YearCoverage, len(years))
	for i, y := range years {
		s := perYear[y]
		out[i] = YearCoverage{Year: y, Zones: len(s.zones), Vaccines: len(s.vaccines), Rows: s.rows}
	}
	return out
}

// duplicates finds (year, zone, vaccine) combinations with more than one row.
func duplicates(table *types.RawTable) []Duplicate {
	yearIdx := table.ColumnIndex(colYear)
	zoneIdx := table.ColumnIndex(colZone)
	vaccineIdx := table.ColumnIndex(colVaccine)
	if yearIdx < 0 || zoneIdx < 0 || vaccineIdx < 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, row := range table.Rows {
		if yearIdx >= len(row) || zoneIdx >= len(row) || vaccineIdx >= len(row) {
			continue
		}
		key := fmt.Sprintf("%s\x00%s\x00%s",
			strings.TrimSpace(row[yearIdx]),
			strings.TrimSpace(row[zoneIdx]),
			strings.TrimSpace(row[vaccineIdx]))
		counts[key]++
	}

	var dups []Duplicate
	for key, n := range counts {
		if n <= 1 {
			continue
		}
		parts := strings.SplitN(key, "\x00", 3)
		dups = append(dups, Duplicate{Year: parts[0], Zone: parts[1], Vaccine: parts[2], Count: n})
	}
	sort.Slice(dups, func(i, j int) bool {
		if dups[i].Count != dups[j].Count {
			return dups[i].Count > dups[j].Count
		}
		return dups[i].Year < dups[j].Year
	})
	return dups
}
