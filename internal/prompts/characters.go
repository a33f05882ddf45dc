package prompts

import (
	"fmt"
	"strings"
)

// Characters asks the model for every character appearing in text. Known
// names are listed so the model reuses them verbatim.
// Expected reply: {"characters":[{"name","aliases","role","speaking_lines",
// "personality_hints","speech_style_hints"}]}.
func Characters(text, sourceLang string, knownNames []string) string {
	lang := label(sourceLang)
	known := ""
	if len(knownNames) > 0 {
		known = "\nCharacters already known in this project: " + strings.Join(knownNames, ", ") +
			"\nWhen one of them appears, use EXACTLY the same name.\n"
	}
	return fmt.Sprintf(`You are a literary character analyst for %s fiction.

Identify every character who appears in the text segments below.
%s
For each character give:
- name: the name as it appears in the text
- aliases: other names, titles or nicknames for the same character
- role: protagonist | antagonist | supporting | minor | mentioned
- speaking_lines: approximate number of dialogue lines
- personality_hints: short personality notes drawn from context
- speech_style_hints: notable speech patterns or register

Write personality_hints and speech_style_hints in %s.

Return ONLY valid JSON:
{
  "characters": [
    {
      "name": "string",
      "aliases": ["string"],
      "role": "protagonist|antagonist|supporting|minor|mentioned",
      "speaking_lines": 0,
      "personality_hints": "string or null",
      "speech_style_hints": "string or null"
    }
  ]
}

TEXT:
---
%s
---

Return ONLY the JSON object.`, lang, known, lang, truncate(text))
}
