package prompts

import (
	"fmt"
	"strings"
)

// Pair is one source/translation pair under review.
type Pair struct {
	Line
	Translated string
}

// Review asks the model to pass or flag each pair.
// Expected reply: {"overall_passed","summary","segment_reviews":[{"segment_id",
// "verdict","issue","suggestion"}]}.
func Review(pairs []Pair, sourceLang, targetLang string, glossary map[string]string, personaContext string) string {
	tgt := label(targetLang)
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior reviewer of %s to %s literary translation.\n\n", label(sourceLang), tgt)
	b.WriteString("Review the source/translation pairs below for quality.\n")
	if len(glossary) > 0 {
		section(&b, "## Glossary to verify", glossaryLines(glossary))
	}
	section(&b, "", personaContext)

	fmt.Fprintf(&b, `
## Evaluation criteria
1. **Accuracy**: does the translation convey the meaning faithfully?
2. **Glossary adherence**: are glossary terms used correctly?
3. **Character voice**: does dialogue match the character's personality and register?
4. **Natural flow**: does the %s read naturally as prose?
5. **Consistency**: are names, terms and tone consistent across segments?

Give each segment a verdict of PASS or FLAG. Flag only genuine issues.

Return ONLY valid JSON:
{
  "overall_passed": true,
  "summary": "brief overall assessment",
  "segment_reviews": [
    {"segment_id": 1, "verdict": "pass|flag", "issue": "the problem or null", "suggestion": "how to fix it or null"}
  ]
}

TRANSLATION PAIRS:
---
`, tgt)
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s\n  SRC: %s\n  TGT: %s", p.tag(), p.Text, p.Translated)
	}
	b.WriteString("\n---\n\nReturn ONLY the JSON object.")
	return b.String()
}
