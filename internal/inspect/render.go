// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inspect

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderJSON writes the profile as indented JSON.
func RenderJSON(w io.Writer, p *Profile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// Render writes the profile as text tables.
func Render(w io.Writer, p *Profile) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n\n", p.Slug, p.Rows, len(p.Columns))

	renderSchema(w, p)
	renderByYear(w, p)
	renderDuplicates(w, p)
}

func renderSchema(w io.Writer, p *Profile) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"column", "type", "distinct", "blank", "mean", "median", "min", "max"})

	for _, c := range p.Columns {
		row := table.Row{c.Name, c.Type, c.Distinct, c.Blank, "", "", "", ""}
		if c.Stats != nil {
			row[4] = fmt.Sprintf("%.1f", c.Stats.Mean)
			row[5] = fmt.Sprintf("%.1f", c.Stats.Median)
			row[6] = fmt.Sprintf("%.1f", c.Stats.Min)
			row[7] = fmt.Sprintf("%.1f", c.Stats.Max)
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintln(w)
}

func renderByYear(w io.Writer, p *Profile) {
	if len(p.ByYear) == 0 {
		fmt.Fprintln(w, "no Year/Zone/Vaccine columns: per-year breakdown unavailable")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"year", "rows", "zones", "vaccines"})
	for _, y := range p.ByYear {
		t.AppendRow(table.Row{y.Year, y.Rows, y.Zones, y.Vaccines})
	}
	t.Render()
	fmt.Fprintf(w, "%d years, %d zones, %d vaccine labels\n\n", len(p.Years), len(p.Zones), len(p.Vaccines))
}

func renderDuplicates(w io.Writer, p *Profile) {
	if len(p.Duplicates) == 0 {
		fmt.Fprintln(w, "no duplicate (year, zone, vaccine) combinations")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"year", "zone", "vaccine", "rows"})
	for _, d := range p.Duplicates {
		t.AppendRow(table.Row{d.Year, d.Zone, d.Vaccine, d.Count})
	}
	t.Render()
	fmt.Fprintf(w, "%d duplicate combinations\n", len(p.Duplicates))
}
