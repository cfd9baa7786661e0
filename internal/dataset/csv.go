// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads raw CSV files into tables shared by the inspect and
// transform stages.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/immunization-etl/pkg/types"
)

// ReadFile parses the CSV at path into a RawTable. The first row is the
// header; data rows keep whatever width the file gives them, so callers
// decide row-level policy for ragged rows.
func ReadFile(path string) (*types.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	table, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return table, nil
}

// Read parses CSV data from r into a RawTable.
func Read(r io.Reader) (*types.RawTable, error) {
	cr := csv.NewReader(r)
	// Ragged rows are kept, not rejected: a width mismatch is a data
	// problem for the row, and row-level policy belongs to the caller.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	table := &types.RawTable{Header: header}
	for rowNum := 1; ; rowNum++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Header) == 0 {
		return nil, fmt.Errorf("header row is empty")
	}
	return table, nil
}

// WriteFile writes header and rows as CSV to path via a temp file renamed on
// success, so a crashed run never leaves a truncated clean file behind.
func WriteFile(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cw := csv.NewWriter(tmp)
	writeErr := cw.Write(header)
	for _, row := range rows {
		if writeErr != nil {
			break
		}
		writeErr = cw.Write(row)
	}
	cw.Flush()
	if writeErr == nil {
		writeErr = cw.Error()
	}
	closeErr := tmp.Close()

	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing CSV: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
