// Package version orders dependency version strings.
//
// Ordering only looks at the numeric components of a version. Every maximal
// run of decimal digits is taken as one component, left to right; separators
// and qualifiers such as "-beta" or ".Final" are dropped. The shorter component
// list is padded with zeros before an element-wise comparison, so "1.0" and
// "1.0.0" are equal and so are "1.0-beta" and "1.0".
package version

import (
	"strings"
)

// Comparison results.
const (
	Less    = -1
	Equal   = 0
	Greater = 1
)

// Compare returns Less, Equal or Greater as a orders before, equal to or
// after b.
func Compare(a, b string) int {
	pa := Components(a)
	pb := Components(b)

	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if c := compareNumeric(x, y); c != Equal {
			return c
		}
	}
	return Equal
}

// Newer reports whether latest orders strictly after current.
func Newer(current, latest string) bool {
	return Compare(current, latest) == Less
}

// Components extracts the numeric components of v as decimal strings with
// leading zeros removed. A version with no digits yields nil.
func Components(v string) []string {
	var parts []string
	start := -1
	for i := 0; i < len(v); i++ {
		if isDigit(v[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			parts = append(parts, trimZeros(v[start:i]))
			start = -1
		}
	}
	if start >= 0 {
		parts = append(parts, trimZeros(v[start:]))
	}
	return parts
}

// compareNumeric compares two canonical decimal strings without converting
// them, so components wider than an int64 (date stamps, build numbers) still
// order correctly.
func compareNumeric(x, y string) int {
	if len(x) != len(y) {
		if len(x) < len(y) {
			return Less
		}
		return Greater
	}
	switch strings.Compare(x, y) {
	case -1:
		return Less
	case 1:
		return Greater
	}
	return Equal
}

func trimZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
