package model

import "encoding/json"

type BatchTranslation struct {
	SegmentID int    `json:"segment_id"`
	Text      string `json:"text"`
}

type ReviewFeedback struct {
	SegmentID  int    `json:"segment_id"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// Batch is a group of segments translated in one model call together with
// the model's reasoning for it.
type Batch struct {
	Order            int                `json:"batch_order"`
	SegmentIDs       []int              `json:"segment_ids"`
	SituationSummary string             `json:"situation_summary,omitempty"`
	CharacterEvents  json.RawMessage    `json:"character_events,omitempty"`
	Translations     []BatchTranslation `json:"translations"`
	Feedback         []ReviewFeedback   `json:"review_feedback,omitempty"`
	ReviewIteration  int                `json:"review_iteration"`
	Failed           bool               `json:"failed,omitempty"`
}

type UnknownTerm struct {
	SourceTerm     string `json:"source_term"`
	TranslatedTerm string `json:"translated_term"`
	TermType       string `json:"term_type,omitempty"`
}
