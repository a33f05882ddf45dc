package prompts

import "fmt"

// Segmentation asks the model to split a chapter into typed segments.
// Expected reply: {"segments":[{"text","type","speaker"}]}.
func Segmentation(text, sourceLang string) string {
	return fmt.Sprintf(`You are a literary text segmentation expert for %s fiction.

Split the text below into translation segments. Each segment has a type:
- "narrative": narration, description or exposition
- "dialogue": a character speaking, dialogue markers included
- "action": physical actions or movement
- "thought": internal thoughts or monologue

Name the speaker of dialogue segments when the text makes it clear.

Rules:
1. Paragraph boundaries are always segment boundaries.
2. Keep each dialogue line in its own segment where possible.
3. Never split a sentence across segments.
4. Keep related narration together; do not over-segment.
5. Every segment must be non-empty.
6. Copy segment text exactly as it appears in the source.

Return ONLY valid JSON in this format:
{
  "segments": [
    {"text": "segment text exactly as written", "type": "narrative|dialogue|action|thought", "speaker": "name or null"}
  ]
}

TEXT TO SEGMENT:
---
%s
---

Return ONLY the JSON object.`, label(sourceLang), text)
}
