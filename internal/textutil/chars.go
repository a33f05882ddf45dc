package textutil

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Len counts user-perceived characters (grapheme clusters). Every
// "characters" limit in the pipeline is measured with it.
func Len(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Truncate returns the first n characters of s, never splitting a
// grapheme cluster.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	count := 0
	for g.Next() {
		if count == n {
			start, _ := g.Positions()
			return s[:start]
		}
		count++
	}
	return s
}

var folder = cases.Fold()

// FoldKey normalizes a term for case-insensitive comparison: NFC, case
// folded, surrounding space trimmed.
func FoldKey(s string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}
