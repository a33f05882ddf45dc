// Package textutil holds the text transformations applied to chapter prose
// before it is sent to a model.
package textutil

import "strings"

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// NormalizeQuotes replaces Western curly quotes with ASCII quotes. CJK
// corner brackets carry structure in East Asian text and are left alone.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}
