package segmenter

import (
	"regexp"

	"github.com/oukeidos/fictra/internal/language"
)

// word matches a run of letters, digits or underscores in any script.
const word = `[\p{L}\p{N}_]+`

// Rules holds the ordered patterns for one source language. The first
// matching pattern wins.
type Rules struct {
	Dialogue []*regexp.Regexp
	// Speaker patterns capture the speaker name in group 1.
	Speaker []*regexp.Regexp
}

var rules = map[string]Rules{
	"ko": {
		Dialogue: compile(
			`^["“].*["”]\s*$`,
			`^["“]`,
			`^「.*」`,
		),
		Speaker: compile(
			`["”]\s*(?:라고|이라고)\s+(`+word+`)`,
			`(`+word+`)[이가은는]\s+말했다`,
			`(`+word+`)\s*:\s*["“]`,
		),
	},
	"ja": {
		Dialogue: compile(
			`^「.*」`,
			`^『.*』`,
			`^["“].*["”]`,
		),
		Speaker: compile(
			`」と(`+word+`)`,
			`(`+word+`)は言った`,
		),
	},
	"zh": {
		Dialogue: compile(
			`^“.*”`,
			`^["「]`,
		),
		Speaker: compile(
			`”(`+word+`)说`,
			`(`+word+`)说\s*[:：]\s*“`,
		),
	},
	"en": {
		Dialogue: compile(
			`^["“].*["”]\s*$`,
			`^["“]`,
			`^'.*'\s*$`,
		),
		Speaker: compile(
			`(?i)["”]\s+said\s+(`+word+`)`,
			`(?i)(`+word+`)\s+said[,.]?\s*["“]`,
			`(`+word+`)\s*:\s*["“]`,
		),
	},
}

// thoughtMarkers apply to every language.
var thoughtMarkers = compile(
	`^‘.*’$`,
	`^\(.*\)$`,
	`^[〈【].*[〉】]$`,
)

// RulesFor returns the rules for a language, falling back to English.
func RulesFor(lang string) Rules {
	if r, ok := rules[language.Normalize(lang)]; ok {
		return r
	}
	return rules["en"]
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
