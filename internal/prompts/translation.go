package prompts

import (
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/model"
)

// Translation describes one batch translation request.
type Translation struct {
	Lines          []Line
	SourceLang     string
	TargetLang     string
	Glossary       map[string]string
	PersonaContext string
	StyleContext   string
	UserGuide      string
	Feedback       []model.ReviewFeedback
	// CoT requests scene reasoning and unknown terms with the translations.
	CoT bool
}

const cotInstructions = `## Instructions
1. Write a brief SITUATION SUMMARY of the scene.
2. List CHARACTER EVENTS: what each character does or feels in this passage.
3. List UNKNOWN TERMS: proper nouns, skills, items, places, organizations or other special terminology that belongs in a glossary.
4. Give the TRANSLATION of every segment.

Rules:
- Preserve the literary tone and style of the original.
- Keep character voices consistent with the persona guide.
- Use glossary terms EXACTLY as specified.
- For dialogue, capture the speaker's personality and register.
- Do NOT add or remove content; translate faithfully.
- Preserve paragraph breaks inside segments.

Return ONLY valid JSON in this exact format:
{
  "situation_summary": "brief scene description",
  "character_events": [
    {"character": "name", "event": "what they do or feel"}
  ],
  "unknown_terms": [
    {"source_term": "original word", "translated_term": "translated word", "term_type": "name|place|item|skill|organization|general"}
  ],
  "translations": [
    {"segment_id": 1, "text": "translated text"}
  ]
}`

const directInstructions = `## Instructions
- Preserve the literary tone and style of the original.
- Keep character voices consistent with the persona guide.
- Use glossary terms EXACTLY as specified.
- For dialogue, capture the speaker's personality and register.
- Do NOT add or remove content; translate faithfully.
- Preserve paragraph breaks inside segments.

Return ONLY valid JSON in this exact format:
{
  "translations": [
    {"segment_id": 1, "text": "translated text"}
  ]
}`

// Build renders the prompt. Line text is used as given; the translator has
// already normalized quotes and applied the glossary.
func (t Translation) Build() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert literary translator from %s to %s.\n\n", label(t.SourceLang), label(t.TargetLang))
	if t.CoT {
		b.WriteString("Translate the numbered segments below, reasoning about the scene first.\n")
	} else {
		b.WriteString("Translate the numbered segments below directly.\n")
	}

	if len(t.Glossary) > 0 {
		section(&b, "## Glossary Reference (terms pre-applied in source text, verify correct usage)", glossaryLines(t.Glossary))
	}
	section(&b, "", t.PersonaContext)
	section(&b, "## Style Guidelines", t.StyleContext)
	section(&b, "## User Translation Guide", t.UserGuide)
	if len(t.Feedback) > 0 {
		items := make([]string, len(t.Feedback))
		for i, fb := range t.Feedback {
			items[i] = fmt.Sprintf("  - Segment %d: %s. Suggestion: %s", fb.SegmentID, fb.Issue, fb.Suggestion)
		}
		section(&b, "## Reviewer Feedback (address these issues in your translation)", strings.Join(items, "\n"))
	}

	b.WriteString("\n")
	if t.CoT {
		b.WriteString(cotInstructions)
	} else {
		b.WriteString(directInstructions)
	}

	b.WriteString("\n\nSEGMENTS TO TRANSLATE:\n---\n")
	for _, l := range t.Lines {
		b.WriteString(l.tag())
		b.WriteByte(' ')
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	b.WriteString("---\n\nReturn ONLY the JSON object.")
	return b.String()
}
