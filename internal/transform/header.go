// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"strings"
	"unicode"
)

// ToSnakeCase normalizes a raw column name for the cleaned file. Spaces
// become underscores and letters are lowered. The source headers use "#" for
// counts and "%" for percentages; those expand to "no" and "pct", with a
// separating underscore when the symbol is glued to a word ("95% CI" becomes
// "95_pct_ci", "# Immunized" becomes "no_immunized").
func ToSnakeCase(name string) string {
	runes := []rune(strings.TrimSpace(name))
	var b strings.Builder

	for i, r := range runes {
		switch r {
		case '#':
			if i > 0 && isWordRune(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteString("no")
		case '%':
			if i > 0 && isWordRune(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteString("pct")
		case ' ', '\t':
			b.WriteByte('_')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// RenameHeader maps every raw header through ToSnakeCase and returns the
// old-to-new mapping for the transform report. The source's "Year" column
// holds school years ("2016-17"), so it is renamed to school_year to keep
// the loaded table honest about its contents.
func RenameHeader(header []string) (renamed []string, mapping map[string]string) {
	renamed = make([]string, len(header))
	mapping = make(map[string]string, len(header))
	for i, h := range header {
		n := ToSnakeCase(h)
		if n == "year" {
			n = "school_year"
		}
		renamed[i] = n
		mapping[h] = n
	}
	return renamed, mapping
}
