package prompts

import (
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/model"
)

// Persona asks for voice and personality updates for the characters seen
// in a translated chapter.
// Expected reply: {"persona_updates":[{"name","field","value","confidence","evidence"}]}.
func Persona(translated string, chars []model.DetectedCharacter, personas []model.Persona) string {
	var b strings.Builder
	b.WriteString("You are a literary character analyst. Study the translated text below and\n")
	b.WriteString("extract what it reveals about each character's voice and personality.\n\n")
	fmt.Fprintf(&b, "Characters detected in this chapter: %s\n", characterList(chars))

	if len(personas) > 0 {
		lines := make([]string, len(personas))
		for i, p := range personas {
			line := "  - " + p.Name
			if p.SpeechStyle != "" {
				line += " | style: " + p.SpeechStyle
			}
			if p.Personality != "" {
				line += " | personality: " + p.Personality
			}
			lines[i] = line
		}
		section(&b, "## Existing persona records", strings.Join(lines, "\n"))
	}

	b.WriteString(`
For each character who speaks in the text, report:
- personality observations, new or reinforced
- speech style notes: formality, vocabulary, quirks
- a suggested formality_level (1 = very casual ... 5 = very formal)
- any newly discovered aliases
- a confidence score between 0.0 and 1.0

Report only information the existing persona records do not already hold.

Return ONLY valid JSON:
{
  "persona_updates": [
    {
      "name": "character name",
      "field": "personality|speech_style|formality_level|aliases",
      "value": "the suggested update",
      "confidence": 0.8,
      "evidence": "short quote or reference from the text"
    }
  ]
}

TRANSLATED TEXT:
---
`)
	b.WriteString(truncate(translated))
	b.WriteString("\n---\n\nReturn ONLY the JSON object.")
	return b.String()
}

// Relationship asks for the relationships visible between the characters
// of a translated chapter. Descriptions are requested in the source
// language.
// Expected reply: {"relationship_updates":[{"character_1","character_2",
// "relationship_type","intimacy_level","description","confidence","evidence"}]}.
func Relationship(translated string, chars []model.DetectedCharacter, personas []model.Persona, rels []model.Relationship, sourceLang string) string {
	var b strings.Builder
	b.WriteString("You are a literary relationship analyst. Study the translated text below and\n")
	b.WriteString("identify the relationships between characters.\n\n")
	fmt.Fprintf(&b, "Characters detected in this chapter: %s\n", characterList(chars))

	if len(personas) > 0 {
		lines := make([]string, len(personas))
		for i, p := range personas {
			line := fmt.Sprintf("  - %s (id: %d)", p.Name, p.ID)
			if p.Personality != "" {
				line += " | " + truncateRunes(p.Personality, 60)
			}
			lines[i] = line
		}
		section(&b, "## Known characters", strings.Join(lines, "\n"))
	}
	if len(rels) > 0 {
		lines := make([]string, len(rels))
		for i, r := range rels {
			lines[i] = fmt.Sprintf("  - %s <-> %s: %s (intimacy: %d/10)",
				relName(r.PersonaName1, r.PersonaID1, personas),
				relName(r.PersonaName2, r.PersonaID2, personas),
				r.Type, r.IntimacyLevel)
		}
		section(&b, "## Existing relationships", strings.Join(lines, "\n"))
	}

	types := make([]string, len(model.RelationshipTypes))
	for i, t := range model.RelationshipTypes {
		types[i] = string(t)
	}

	fmt.Fprintf(&b, `
For each pair of characters who interact in the text, identify:
- the kind of relationship (type)
- intimacy level (1 = distant strangers, 10 = inseparable)
- a short description of their dynamic
- a confidence score between 0.0 and 1.0

Relationship types: %s

Report relationships VISIBLE in this passage. Update existing relationships when
new evidence changes the dynamic. Write descriptions in %s (the source language).

Return ONLY valid JSON:
{
  "relationship_updates": [
    {
      "character_1": "first character",
      "character_2": "second character",
      "relationship_type": "%s",
      "intimacy_level": 7,
      "description": "short description of the dynamic",
      "confidence": 0.8,
      "evidence": "short quote or reference from the text"
    }
  ]
}

TRANSLATED TEXT:
---
`, strings.Join(types, ", "), label(sourceLang), strings.Join(types, "|"))
	b.WriteString(truncate(translated))
	b.WriteString("\n---\n\nReturn ONLY the JSON object.")
	return b.String()
}

func relName(name string, id int64, personas []model.Persona) string {
	if name != "" {
		return name
	}
	for _, p := range personas {
		if p.ID == id {
			return p.Name
		}
	}
	return "Unknown"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
