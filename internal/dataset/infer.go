// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"strconv"
	"strings"
)

// ColumnType is an inferred column type from value sampling.
type ColumnType string

const (
	TypeInteger    ColumnType = "integer"
	TypeDecimal    ColumnType = "decimal"
	TypePercentage ColumnType = "percentage"
	TypeText       ColumnType = "text"
)

// InferType classifies a column from its values. Blank cells are ignored;
// a column of only blanks is text. Integer covers thousands-separated counts
// ("1,234"), percentage covers fractions with a trailing "%" or values on a
// 0-1 scale, decimal covers everything else numeric.
func InferType(values []string) ColumnType {
	var (
		nonBlank  int
		integers  int
		decimals  int
		percents  int
		fractions int
	)

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonBlank++

		if strings.HasSuffix(v, "%") {
			if _, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
				percents++
			}
			continue
		}

		if _, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64); err == nil {
			integers++
			continue
		}

		if f, err := strconv.ParseFloat(v, 64); err == nil {
			decimals++
			if f >= 0 && f <= 1 {
				fractions++
			}
		}
	}

	if nonBlank == 0 {
		return TypeText
	}
	switch {
	case percents == nonBlank:
		return TypePercentage
	case integers == nonBlank:
		return TypeInteger
	case integers+decimals == nonBlank && fractions == decimals && decimals > 0:
		// All decimals sit in [0, 1]: a coverage fraction, not free decimals.
		return TypePercentage
	case integers+decimals == nonBlank:
		return TypeDecimal
	default:
		return TypeText
	}
}

// ParseCount parses a count cell, tolerating thousands separators.
// Blank cells return ok=false.
func ParseCount(v string) (n int, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseDecimal parses a decimal cell. Blank cells return ok=false.
func ParseDecimal(v string) (f float64, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
