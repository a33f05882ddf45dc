// Package segmenter splits chapter text into typed, offset-tracked
// segments.
package segmenter

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/textutil"
)

const (
	// MaxRefineChars is the largest source text sent for model refinement.
	MaxRefineChars = 10000
	// fallbackPrefixChars is the prefix searched when a model segment is
	// not found verbatim.
	fallbackPrefixChars = 50
)

// blankLine also treats Unicode spaces (U+3000, U+00A0) on an otherwise
// empty line as blank; RE2's \s is ASCII only.
var blankLine = regexp.MustCompile(`\n[\s\p{Z}]*\n`)

// Paragraph is a trimmed paragraph and the byte offset of its first
// non-space character in the source.
type Paragraph struct {
	Text  string
	Start int
}

// SplitParagraphs splits text on blank lines. Single newlines stay inside a
// paragraph.
func SplitParagraphs(text string) []Paragraph {
	var out []Paragraph
	add := func(part string, offset int) {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			return
		}
		leading := len(part) - len(strings.TrimLeftFunc(part, unicode.IsSpace))
		out = append(out, Paragraph{Text: trimmed, Start: offset + leading})
	}

	prev := 0
	for _, loc := range blankLine.FindAllStringIndex(text, -1) {
		add(text[prev:loc[0]], prev)
		prev = loc[1]
	}
	add(text[prev:], prev)
	return out
}

// Classify returns dialogue, thought or narrative for a trimmed paragraph.
func Classify(text string, r Rules) model.SegmentType {
	for _, re := range r.Dialogue {
		if re.MatchString(text) {
			return model.Dialogue
		}
	}
	for _, re := range thoughtMarkers {
		if re.MatchString(text) {
			return model.Thought
		}
	}
	return model.Narrative
}

// DetectSpeaker returns the first speaker name captured by patterns, or "".
func DetectSpeaker(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// RuleBased segments text one paragraph per segment.
func RuleBased(text, lang string) []model.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	r := RulesFor(lang)

	var segments []model.Segment
	prevEnd := -1
	for _, p := range SplitParagraphs(text) {
		seg := model.Segment{
			Order:       len(segments),
			Text:        p.Text,
			Type:        Classify(p.Text, r),
			SourceStart: p.Start,
			SourceEnd:   p.Start + len(p.Text),
		}
		if seg.Type == model.Dialogue {
			seg.Speaker = DetectSpeaker(p.Text, r.Speaker)
		}
		if prevEnd >= 0 {
			seg.HasPrecedingBreak = breakBetween(text, prevEnd, seg.SourceStart)
		}
		prevEnd = seg.SourceEnd
		segments = append(segments, seg)
	}
	return segments
}

// Segment runs rule-based segmentation and, for short texts with an
// available provider, replaces the result with the model's segmentation.
// Refinement failures are logged and never returned.
func Segment(ctx context.Context, text, lang string, p llm.Provider) []model.Segment {
	segments := RuleBased(text, lang)
	if !llm.Available(p) || len(segments) == 0 || textutil.Len(text) >= MaxRefineChars {
		return segments
	}

	var reply struct {
		Segments []Proposed `json:"segments"`
	}
	_, err := llm.GenerateJSON(ctx, p, llm.Request{
		Prompt:      prompts.Segmentation(text, lang),
		Temperature: 0.1,
		MaxTokens:   4096,
	}, &reply)
	if err != nil {
		logger.Warn("LLM segmentation failed, using rule-based", "error", err)
		return segments
	}
	if refined := Locate(reply.Segments, text); len(refined) > 0 {
		return refined
	}
	return segments
}

// Proposed is one segment as returned by the model.
type Proposed struct {
	Text    string            `json:"text"`
	Type    model.SegmentType `json:"type"`
	Speaker *string           `json:"speaker"`
}

// UnmarshalJSON tolerates a null or missing speaker and non-string types.
func (s *Proposed) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text    string          `json:"text"`
		Type    json.RawMessage `json:"type"`
		Speaker json.RawMessage `json:"speaker"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Text = raw.Text
	var t string
	if json.Unmarshal(raw.Type, &t) == nil {
		s.Type = model.SegmentType(t)
	}
	var speaker string
	if json.Unmarshal(raw.Speaker, &speaker) == nil && speaker != "" {
		s.Speaker = &speaker
	}
	return nil
}

// Locate maps model segments back onto text with a forward-only search.
// A segment not found verbatim is searched by its first 50 characters and
// otherwise placed at the search cursor.
func Locate(items []Proposed, text string) []model.Segment {
	var out []model.Segment
	cursor := 0
	prevEnd := -1
	for _, item := range items {
		segText := strings.TrimSpace(item.Text)
		if segText == "" {
			continue
		}

		idx := indexFrom(text, segText, cursor)
		if idx < 0 {
			idx = indexFrom(text, textutil.Truncate(segText, fallbackPrefixChars), cursor)
		}
		if idx < 0 {
			idx = cursor
		}
		end := min(idx+len(segText), len(text))
		cursor = end

		typ := item.Type
		if !typ.Valid() {
			typ = model.Narrative
		}
		seg := model.Segment{
			Order:       len(out),
			Text:        segText,
			Type:        typ,
			SourceStart: idx,
			SourceEnd:   end,
		}
		if item.Speaker != nil {
			seg.Speaker = strings.TrimSpace(*item.Speaker)
		}
		if prevEnd >= 0 {
			seg.HasPrecedingBreak = breakBetween(text, prevEnd, idx)
		}
		prevEnd = end
		out = append(out, seg)
	}
	return out
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

// breakBetween reports whether the gap [from, to) of text holds a blank
// line.
func breakBetween(text string, from, to int) bool {
	if from < 0 || to > len(text) || from >= to {
		return false
	}
	return blankLine.MatchString(text[from:to])
}

