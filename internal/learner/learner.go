// Package learner derives persona and relationship suggestions from a
// translated chapter. Suggestions are advisory and always reviewed by a
// person before they touch stored profiles.
package learner

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
)

const (
	temperature = 0.3
	maxTokens   = 4096

	MinConfidence     = 0.3
	defaultConfidence = 0.5
)

// Input carries the translated chapter and the project's known personas.
type Input struct {
	Translated    []model.TranslatedSegment
	Characters    []model.DetectedCharacter
	Personas      []model.Persona
	Relationships []model.Relationship
	SourceLang    string
	TargetLang    string
}

// text joins the non-empty translations in segment order.
func (in Input) text() string {
	segs := append([]model.TranslatedSegment(nil), in.Translated...)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].SegmentID < segs[j].SegmentID })
	var parts []string
	for _, s := range segs {
		if s.TranslatedText != "" {
			parts = append(parts, s.TranslatedText)
		}
	}
	return strings.Join(parts, "\n")
}

// ready returns the analysis text, or "" when there is nothing to learn
// from.
func (in Input) ready(p llm.Provider) string {
	if len(in.Translated) == 0 || len(in.Characters) == 0 || !llm.Available(p) {
		return ""
	}
	text := in.text()
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

// Personas suggests field updates for the characters of the chapter. It
// returns nil on any failure.
func Personas(ctx context.Context, p llm.Provider, in Input) []model.PersonaSuggestion {
	text := in.ready(p)
	if text == "" {
		return nil
	}

	var reply struct {
		Updates []personaUpdate `json:"persona_updates"`
	}
	_, err := llm.GenerateJSON(ctx, p, llm.Request{
		Prompt:      prompts.Persona(text, in.Characters, in.Personas),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &reply)
	if err != nil {
		logger.Error("Persona learning failed", "error", err)
		return nil
	}

	var out []model.PersonaSuggestion
	for _, u := range reply.Updates {
		name := strings.TrimSpace(u.Name)
		field := strings.TrimSpace(u.Field)
		value := u.Value.String()
		conf := confidence(u.Confidence)
		if name == "" || field == "" || value == "" {
			continue
		}
		if !model.ValidPersonaField(field) || conf < MinConfidence {
			continue
		}
		out = append(out, model.PersonaSuggestion{
			Name:       name,
			PersonaID:  FindPersona(name, in.Personas),
			Field:      field,
			Value:      value,
			Confidence: conf,
			Evidence:   u.Evidence,
		})
	}
	return out
}

// Relationships suggests relationships between the chapter's characters.
// It returns nil on any failure.
func Relationships(ctx context.Context, p llm.Provider, in Input) []model.RelationshipSuggestion {
	text := in.ready(p)
	if text == "" {
		return nil
	}

	var reply struct {
		Updates []relationshipUpdate `json:"relationship_updates"`
	}
	_, err := llm.GenerateJSON(ctx, p, llm.Request{
		Prompt:      prompts.Relationship(text, in.Characters, in.Personas, in.Relationships, in.SourceLang),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &reply)
	if err != nil {
		logger.Error("Relationship learning failed", "error", err)
		return nil
	}

	var out []model.RelationshipSuggestion
	for _, u := range reply.Updates {
		c1 := strings.TrimSpace(u.Character1)
		c2 := strings.TrimSpace(u.Character2)
		typ := model.RelationshipType(strings.TrimSpace(u.Type))
		if c1 == "" || c2 == "" || typ == "" || !typ.Valid() {
			continue
		}
		conf := confidence(u.Confidence)
		if conf < MinConfidence {
			continue
		}
		intimacy := model.DefaultIntimacy
		if u.Intimacy.Valid {
			intimacy = u.Intimacy.Value
		}
		out = append(out, model.RelationshipSuggestion{
			Character1:  c1,
			Character2:  c2,
			PersonaID1:  FindPersona(c1, in.Personas),
			PersonaID2:  FindPersona(c2, in.Personas),
			Type:        typ,
			Intimacy:    model.ClampIntimacy(intimacy),
			Description: u.Description,
			Confidence:  conf,
			Evidence:    u.Evidence,
		})
	}
	return out
}

// FindPersona returns the id of the first persona whose name or alias
// matches name, ignoring case.
func FindPersona(name string, personas []model.Persona) *int64 {
	for _, p := range personas {
		if p.Matches(name) {
			id := p.ID
			return &id
		}
	}
	return nil
}

func confidence(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	return *c
}

type personaUpdate struct {
	Name       string   `json:"name"`
	Field      string   `json:"field"`
	Value      anyValue `json:"value"`
	Confidence *float64 `json:"confidence"`
	Evidence   string   `json:"evidence"`
}

type relationshipUpdate struct {
	Character1  string         `json:"character_1"`
	Character2  string         `json:"character_2"`
	Type        string         `json:"relationship_type"`
	Intimacy    llm.LenientInt `json:"intimacy_level"`
	Description string         `json:"description"`
	Confidence  *float64       `json:"confidence"`
	Evidence    string         `json:"evidence"`
}

// anyValue keeps a suggested value in its textual form: strings as is,
// numbers and booleans as literals, lists joined with ", ".
type anyValue struct {
	raw json.RawMessage
}

func (v *anyValue) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (v anyValue) String() string {
	if len(v.raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(v.raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []any
	if json.Unmarshal(v.raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if str := scalar(item); str != "" {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, ", ")
	}
	var x any
	if json.Unmarshal(v.raw, &x) == nil {
		return scalar(x)
	}
	return ""
}

func scalar(x any) string {
	switch t := x.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
