package model

type CharacterSource string

const (
	SourceRegex CharacterSource = "regex"
	SourceLLM   CharacterSource = "llm"
)

type DetectedCharacter struct {
	Name             string          `json:"name"`
	Aliases          []string        `json:"aliases"`
	Role             string          `json:"role"`
	SpeakingLines    int             `json:"speaking_lines"`
	PersonalityHints []string        `json:"personality_hints,omitempty"`
	SpeechStyleHints []string        `json:"speech_style_hints,omitempty"`
	Source           CharacterSource `json:"source"`
	PersonaID        *int64          `json:"persona_id,omitempty"`
	CanonicalName    string          `json:"canonical_name,omitempty"`
}

// Persona is a character's durable voice profile.
type Persona struct {
	ID                  int64    `json:"id"`
	ProjectID           int64    `json:"project_id"`
	Name                string   `json:"name"`
	Aliases             []string `json:"aliases"`
	Personality         string   `json:"personality,omitempty"`
	SpeechStyle         string   `json:"speech_style,omitempty"`
	FormalityLevel      int      `json:"formality_level"`
	AgeGroup            string   `json:"age_group,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	AutoDetected        bool     `json:"auto_detected"`
	DetectionConfidence *float64 `json:"detection_confidence,omitempty"`
	AppearanceCount     int      `json:"appearance_count"`
}

// Matches reports whether name equals the persona name or one of its
// aliases, ignoring case.
func (p Persona) Matches(name string) bool {
	if equalFold(p.Name, name) {
		return true
	}
	for _, a := range p.Aliases {
		if equalFold(a, name) {
			return true
		}
	}
	return false
}

// PersonaFields are the fields a learned suggestion may update.
var PersonaFields = []string{"personality", "speech_style", "formality_level", "aliases"}

func ValidPersonaField(field string) bool {
	for _, f := range PersonaFields {
		if f == field {
			return true
		}
	}
	return false
}

type PersonaSuggestion struct {
	Name       string  `json:"name"`
	PersonaID  *int64  `json:"persona_id"`
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}
