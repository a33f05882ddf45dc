package model

import "strings"

type RelationshipType string

const (
	Friend       RelationshipType = "friend"
	Rival        RelationshipType = "rival"
	Family       RelationshipType = "family"
	Romantic     RelationshipType = "romantic"
	Mentor       RelationshipType = "mentor"
	Subordinate  RelationshipType = "subordinate"
	Enemy        RelationshipType = "enemy"
	Ally         RelationshipType = "ally"
	Acquaintance RelationshipType = "acquaintance"
)

var RelationshipTypes = []RelationshipType{
	Friend, Rival, Family, Romantic, Mentor, Subordinate, Enemy, Ally, Acquaintance,
}

func (t RelationshipType) Valid() bool {
	for _, v := range RelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}

const (
	MinIntimacy     = 1
	MaxIntimacy     = 10
	DefaultIntimacy = 5
)

// ClampIntimacy forces n into [MinIntimacy, MaxIntimacy].
func ClampIntimacy(n int) int {
	return max(MinIntimacy, min(MaxIntimacy, n))
}

type Relationship struct {
	ID                  int64            `json:"id"`
	ProjectID           int64            `json:"project_id"`
	PersonaID1          int64            `json:"persona_id_1"`
	PersonaID2          int64            `json:"persona_id_2"`
	PersonaName1        string           `json:"persona_name_1,omitempty"`
	PersonaName2        string           `json:"persona_name_2,omitempty"`
	Type                RelationshipType `json:"relationship_type"`
	Description         string           `json:"description,omitempty"`
	IntimacyLevel       int              `json:"intimacy_level"`
	AutoDetected        bool             `json:"auto_detected"`
	DetectionConfidence *float64         `json:"detection_confidence,omitempty"`
}

type RelationshipSuggestion struct {
	Character1  string           `json:"character_1"`
	Character2  string           `json:"character_2"`
	PersonaID1  *int64           `json:"persona_id_1"`
	PersonaID2  *int64           `json:"persona_id_2"`
	Type        RelationshipType `json:"relationship_type"`
	Intimacy    int              `json:"intimacy_level"`
	Description string           `json:"description"`
	Confidence  float64          `json:"confidence"`
	Evidence    string           `json:"evidence"`
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
