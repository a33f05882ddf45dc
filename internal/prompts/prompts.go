// Package prompts builds the model prompts for every pipeline stage. The
// builders are pure; callers own truncation of large inputs unless noted.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oukeidos/fictra/internal/language"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/textutil"
)

// MaxAnalysisChars bounds the text handed to the character, persona and
// relationship analysis prompts.
const MaxAnalysisChars = 8000

// Line is one segment as it appears inside a translation or review prompt.
type Line struct {
	ID      int
	Type    model.SegmentType
	Speaker string
	Text    string
}

// tag renders "[id|type]" or "[id|type [speaker: X]]".
func (l Line) tag() string {
	t := l.Type
	if t == "" {
		t = model.Narrative
	}
	if l.Speaker != "" {
		return fmt.Sprintf("[%d|%s [speaker: %s]]", l.ID, t, l.Speaker)
	}
	return fmt.Sprintf("[%d|%s]", l.ID, t)
}

func label(code string) string {
	return language.Name(code)
}

// glossaryLines renders "  source -> target" lines sorted by source term so
// prompts are reproducible.
func glossaryLines(glossary map[string]string) string {
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "  %s -> %s", k, glossary[k])
	}
	return b.String()
}

func section(b *strings.Builder, header, body string) {
	if body == "" {
		return
	}
	b.WriteString("\n")
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n")
	}
	b.WriteString(body)
	b.WriteString("\n")
}

func characterList(chars []model.DetectedCharacter) string {
	if len(chars) == 0 {
		return "(none detected)"
	}
	names := make([]string, len(chars))
	for i, c := range chars {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func truncate(s string) string {
	return textutil.Truncate(s, MaxAnalysisChars)
}
