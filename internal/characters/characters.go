// Package characters detects the characters of a chapter from speaker
// attributions and an optional model analysis.
package characters

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/segmenter"
	"github.com/oukeidos/fictra/internal/textutil"
)

// Extract returns the characters of a chapter ranked by speaking lines,
// enriched by the model when p is available, and linked to known personas.
// Model failures are logged; the pattern-based list is returned instead.
func Extract(ctx context.Context, segments []model.Segment, lang string, personas []model.Persona, p llm.Provider) []model.DetectedCharacter {
	detected := CountSpeakers(segments, lang)

	if llm.Available(p) && len(segments) > 0 {
		fromModel, err := analyze(ctx, segments, lang, personas, p)
		if err != nil {
			logger.Warn("LLM character extraction failed", "error", err)
		} else if len(fromModel) > 0 {
			detected = Merge(detected, fromModel)
		}
	}
	return LinkPersonas(detected, personas)
}

// CountSpeakers counts speakers from segment attributions, scanning
// dialogue text with the language's speaker patterns when a segment has
// none. Ties keep first-seen order.
func CountSpeakers(segments []model.Segment, lang string) []model.DetectedCharacter {
	patterns := segmenter.RulesFor(lang).Speaker
	counts := map[string]int{}
	var order []string
	for _, seg := range segments {
		name := seg.Speaker
		if name == "" {
			if seg.Type != model.Dialogue {
				continue
			}
			name = segmenter.DetectSpeaker(seg.Text, patterns)
		}
		if name == "" {
			continue
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	out := make([]model.DetectedCharacter, len(order))
	for i, name := range order {
		out[i] = model.DetectedCharacter{
			Name:          name,
			Aliases:       []string{},
			Role:          "supporting",
			SpeakingLines: counts[name],
			Source:        model.SourceRegex,
		}
	}
	return out
}

// Merge combines pattern and model results. Model entries win on a
// case-insensitive name match; the speaking-line count is the larger of
// the two. Pattern-only entries are appended.
func Merge(fromPatterns, fromModel []model.DetectedCharacter) []model.DetectedCharacter {
	index := map[string]int{}
	var out []model.DetectedCharacter
	for _, ch := range fromModel {
		ch.Name = strings.TrimSpace(ch.Name)
		if ch.Name == "" {
			continue
		}
		ch.Source = model.SourceLLM
		key := textutil.FoldKey(ch.Name)
		if i, ok := index[key]; ok {
			out[i] = ch
			continue
		}
		index[key] = len(out)
		out = append(out, ch)
	}
	for _, ch := range fromPatterns {
		key := textutil.FoldKey(ch.Name)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].SpeakingLines = max(out[i].SpeakingLines, ch.SpeakingLines)
			continue
		}
		index[key] = len(out)
		out = append(out, ch)
	}
	return out
}

// LinkPersonas attaches the persona id and canonical name of the first
// persona whose name or alias matches the character name, or failing
// that one of its aliases.
func LinkPersonas(chars []model.DetectedCharacter, personas []model.Persona) []model.DetectedCharacter {
	if len(personas) == 0 {
		return chars
	}
	lookup := map[string]model.Persona{}
	for _, p := range personas {
		lookup[textutil.FoldKey(p.Name)] = p
		for _, a := range p.Aliases {
			lookup[textutil.FoldKey(a)] = p
		}
	}

	for i := range chars {
		p, ok := lookup[textutil.FoldKey(chars[i].Name)]
		if !ok {
			for _, a := range chars[i].Aliases {
				if p, ok = lookup[textutil.FoldKey(a)]; ok {
					break
				}
			}
		}
		if ok {
			id := p.ID
			chars[i].PersonaID = &id
			chars[i].CanonicalName = p.Name
		}
	}
	return chars
}

type modelCharacter struct {
	Name             string   `json:"name"`
	Aliases          []string `json:"aliases"`
	Role             string   `json:"role"`
	SpeakingLines    int      `json:"speaking_lines"`
	PersonalityHints hints    `json:"personality_hints"`
	SpeechStyleHints hints    `json:"speech_style_hints"`
}

// hints accepts a string, a list of strings or null.
type hints []string

func (h *hints) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*h = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && strings.TrimSpace(s) != "" {
		*h = []string{s}
	}
	return nil
}

func analyze(ctx context.Context, segments []model.Segment, lang string, personas []model.Persona, p llm.Provider) ([]model.DetectedCharacter, error) {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	known := make([]string, len(personas))
	for i, ps := range personas {
		known[i] = ps.Name
	}

	var reply struct {
		Characters []modelCharacter `json:"characters"`
	}
	_, err := llm.GenerateJSON(ctx, p, llm.Request{
		Prompt:      prompts.Characters(strings.Join(texts, "\n"), lang, known),
		Temperature: 0.2,
		MaxTokens:   2048,
	}, &reply)
	if err != nil {
		return nil, err
	}

	out := make([]model.DetectedCharacter, 0, len(reply.Characters))
	for _, c := range reply.Characters {
		aliases := c.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		out = append(out, model.DetectedCharacter{
			Name:             c.Name,
			Aliases:          aliases,
			Role:             c.Role,
			SpeakingLines:    c.SpeakingLines,
			PersonalityHints: c.PersonalityHints,
			SpeechStyleHints: c.SpeechStyleHints,
			Source:           model.SourceLLM,
		})
	}
	return out, nil
}
