package model

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

type RunConfig struct {
	LLMProvider    string `json:"llm_provider"`
	TargetLanguage string `json:"target_language"`
}

type RunStats struct {
	Segments                int     `json:"segments"`
	Batches                 int     `json:"batches"`
	TotalTokens             int     `json:"total_tokens"`
	PersonaSuggestions      int     `json:"persona_suggestions"`
	RelationshipSuggestions int     `json:"relationship_suggestions"`
	ReviewIterations        int     `json:"review_iterations"`
	ValidationAttempts      int     `json:"validation_attempts"`
	Model                   string  `json:"model,omitempty"`
	EstimatedCostUSD        float64 `json:"estimated_cost_usd"`
}

// PipelineRun is the audit record of one chapter translation.
type PipelineRun struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"run_uuid"`
	ChapterID      int64      `json:"chapter_id"`
	TargetLanguage string     `json:"target_language"`
	Status         RunStatus  `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Config         RunConfig  `json:"config"`
	Stats          *RunStats  `json:"stats,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// Outcome is everything a successful run writes back to storage in one
// transaction.
type Outcome struct {
	ChapterID          int64
	ProjectID          int64
	TargetLanguage     string
	ConnectedText      string
	Segments           []Segment
	Translated         []TranslatedSegment
	SegmentMap         []SegmentMapEntry
	Batches            []Batch
	PersonaSuggestions []PersonaSuggestion
	UnknownTerms       []UnknownTerm
}
