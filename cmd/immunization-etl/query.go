// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/immunization-etl/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the coverage table with filters and aggregates",
	Long: `Query filters the loaded coverage table by school year, zone, vaccine
label, or vaccine group. With --by-group it aggregates instead: counts are
summed over each (vaccine_group, school_year) and coverage is recomputed
weighted by eligible students, which keeps year-over-year comparisons
meaningful across inconsistent vaccine labels.

With --export it rewrites the data/index/ export files using the same
filters.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("dataset", "", "filter by dataset slug")
	queryCmd.Flags().String("year", "", "filter by school year (e.g. 2017-18)")
	queryCmd.Flags().String("zone", "", "filter by health zone")
	queryCmd.Flags().String("vaccine", "", "filter by published vaccine label")
	queryCmd.Flags().String("group", "", "filter by derived vaccine group")
	queryCmd.Flags().Int("max-results", 0, "maximum number of results (default 50)")
	queryCmd.Flags().Bool("by-group", false, "aggregate by vaccine group and school year")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	queryCmd.Flags().Bool("export", false, "rewrite the export files instead of printing")

	rootCmd.AddCommand(queryCmd)
}

func queryOptsFromFlags(cmd *cobra.Command) store.QueryOptions {
	dataset, _ := cmd.Flags().GetString("dataset")
	year, _ := cmd.Flags().GetString("year")
	zone, _ := cmd.Flags().GetString("zone")
	vaccine, _ := cmd.Flags().GetString("vaccine")
	group, _ := cmd.Flags().GetString("group")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return store.QueryOptions{
		Dataset:      dataset,
		SchoolYear:   year,
		Zone:         zone,
		Vaccine:      vaccine,
		VaccineGroup: group,
		MaxResults:   maxResults,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := store.New(storeConfig(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	opts := queryOptsFromFlags(cmd)

	if export, _ := cmd.Flags().GetBool("export"); export {
		if err := s.ExportYAML(cmd.Context(), opts); err != nil {
			return err
		}
		if err := s.ExportJSON(cmd.Context(), opts); err != nil {
			return err
		}
		fmt.Println("export files written")
		return nil
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if byGroup, _ := cmd.Flags().GetBool("by-group"); byGroup {
		rows, err := s.Aggregate(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(rows)
		}
		renderAggregates(rows)
		return nil
	}

	if opts.IsEmpty() {
		fmt.Fprintln(os.Stderr, "no filters given; listing up to --max-results rows")
	}
	results, err := s.Retrieve(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(results)
	}
	renderResults(results)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResults(results []store.QueryResult) {
	if len(results) == 0 {
		fmt.Println("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"year", "zone", "vaccine", "group", "immunized", "eligible", "coverage", "95% ci"})

	for _, r := range results {
		ci := ""
		if r.Lower95PctCI != nil && r.Upper95PctCI != nil {
			ci = fmt.Sprintf("%.1f-%.1f", *r.Lower95PctCI, *r.Upper95PctCI)
		}
		t.AppendRow(table.Row{
			r.SchoolYear, r.Zone, r.Vaccine, r.VaccineGroup,
			fmtCount(r.NoImmunized), fmtCount(r.NoEligible), fmtPct(r.PctCoverage), ci,
		})
	}
	t.Render()
	fmt.Printf("(%d rows)\n", len(results))
}

func renderAggregates(rows []store.AggregateRow) {
	if len(rows) == 0 {
		fmt.Println("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"group", "year", "rows", "immunized", "eligible", "coverage"})

	for _, r := range rows {
		t.AppendRow(table.Row{
			r.VaccineGroup, r.SchoolYear, r.Rows,
			r.NoImmunized, r.NoEligible, fmtPct(r.PctCoverage),
		})
	}
	t.Render()
	fmt.Printf("(%d rows)\n", len(rows))
}

func fmtCount(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}

func fmtPct(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *f)
}
