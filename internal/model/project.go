package model

import (
	"encoding/json"
	"time"
)

const (
	DefaultPipelineType = "cot_batch"
	DefaultTermType     = "general"
)

type Project struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	SourceLanguage string         `json:"source_language"`
	TargetLanguage string         `json:"target_language"`
	Genre          string         `json:"genre,omitempty"`
	StyleSettings  map[string]any `json:"style_settings,omitempty"`
	PipelineType   string         `json:"pipeline_type"`
	LLMProvider    string         `json:"llm_provider"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ChapterCount   int            `json:"chapter_count"`
}

type Chapter struct {
	ID                int64     `json:"id"`
	ProjectID         int64     `json:"project_id"`
	Title             string    `json:"title"`
	Order             int       `json:"order"`
	SourceContent     string    `json:"source_content"`
	TranslatedContent string    `json:"translated_content,omitempty"`
	TranslationStale  bool      `json:"translation_stale"`
	WordCount         int       `json:"word_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	SegmentCount      int       `json:"segment_count"`
	TranslatedCount   int       `json:"translated_count"`
}

type GlossaryEntry struct {
	ID             int64  `json:"id"`
	ProjectID      int64  `json:"project_id"`
	SourceTerm     string `json:"source_term"`
	TranslatedTerm string `json:"translated_term"`
	TermType       string `json:"term_type"`
	Notes          string `json:"notes,omitempty"`
	Context        string `json:"context,omitempty"`
	AutoDetected   bool   `json:"auto_detected"`
}

// StoredSuggestion is a persona suggestion awaiting review.
type StoredSuggestion struct {
	ID             int64     `json:"id"`
	PersonaID      int64     `json:"persona_id"`
	FieldName      string    `json:"field_name"`
	SuggestedValue string    `json:"suggested_value"`
	Confidence     *float64  `json:"confidence"`
	SourceChapter  *int64    `json:"source_chapter_id,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// EditorSegment is one row of the chapter editor view.
type EditorSegment struct {
	ID              int64       `json:"id"`
	Order           int         `json:"order"`
	Type            SegmentType `json:"type"`
	Speaker         *string     `json:"speaker"`
	SourceText      string      `json:"source_text"`
	TranslatedText  *string     `json:"translated_text"`
	SourceStart     *int        `json:"source_start"`
	SourceEnd       *int        `json:"source_end"`
	TranslatedStart *int        `json:"translated_start"`
	TranslatedEnd   *int        `json:"translated_end"`
	BatchID         *int64      `json:"batch_id"`
	ManuallyEdited  bool        `json:"manually_edited"`
}

// StoredBatch is a persisted batch with its reasoning trace.
type StoredBatch struct {
	ID               int64           `json:"id"`
	SituationSummary string          `json:"situation_summary"`
	CharacterEvents  json.RawMessage `json:"character_events"`
	FullCoT          json.RawMessage `json:"full_cot_json"`
	SegmentIDs       []int           `json:"segment_ids"`
	ReviewFeedback   json.RawMessage `json:"review_feedback"`
	ReviewIteration  int             `json:"review_iteration"`
}

type Export struct {
	ID             int64     `json:"id"`
	ChapterID      int64     `json:"chapter_id"`
	TargetLanguage string    `json:"target_language"`
	Format         string    `json:"format"`
	Path           string    `json:"path"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
}
