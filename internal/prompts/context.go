package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oukeidos/fictra/internal/model"
)

var formalityLabels = map[int]string{
	1: "very casual",
	2: "casual",
	3: "neutral",
	4: "formal",
	5: "very formal",
}

// PersonaContext renders the character voice guide embedded in
// translation and review prompts. It is empty when there are no personas.
func PersonaContext(personas []model.Persona) string {
	if len(personas) == 0 {
		return ""
	}
	parts := []string{"## Character Voice Guide\n"}
	for _, p := range personas {
		var b strings.Builder
		b.WriteString("### " + p.Name)
		if len(p.Aliases) > 0 {
			fmt.Fprintf(&b, " (also: %s)", strings.Join(p.Aliases, ", "))
		}
		b.WriteByte('\n')
		if p.Personality != "" {
			fmt.Fprintf(&b, "- Personality: %s\n", p.Personality)
		}
		if p.SpeechStyle != "" {
			fmt.Fprintf(&b, "- Speech style: %s\n", p.SpeechStyle)
		}
		formality, ok := formalityLabels[p.FormalityLevel]
		if !ok {
			formality = "neutral"
		}
		fmt.Fprintf(&b, "- Formality: %s\n", formality)
		if p.AgeGroup != "" {
			fmt.Fprintf(&b, "- Age group: %s\n", p.AgeGroup)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

// RelationshipContext renders known relationships. Entries whose persona
// names cannot be resolved are skipped.
func RelationshipContext(rels []model.Relationship, personas []model.Persona) string {
	var lines []string
	for _, r := range rels {
		n1 := relName(r.PersonaName1, r.PersonaID1, personas)
		n2 := relName(r.PersonaName2, r.PersonaID2, personas)
		if n1 == "Unknown" || n2 == "Unknown" {
			continue
		}
		line := fmt.Sprintf("- %s ↔ %s: %s (intimacy: %d/10)", n1, n2, r.Type, r.IntimacyLevel)
		if r.Description != "" {
			line += " - " + r.Description
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Character Relationships\n\n" + strings.Join(lines, "\n")
}

// CombineContext joins the persona and relationship guides.
func CombineContext(personaCtx, relationshipCtx string) string {
	switch {
	case personaCtx == "":
		return relationshipCtx
	case relationshipCtx == "":
		return personaCtx
	}
	return personaCtx + "\n\n" + relationshipCtx
}

// StyleContext renders project style settings as "- key: value" lines in
// key order. Empty values are skipped.
func StyleContext(settings map[string]any) string {
	if len(settings) == 0 {
		return ""
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := settings[k]
		if v == nil || v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %v", k, v))
	}
	return strings.Join(lines, "\n")
}
