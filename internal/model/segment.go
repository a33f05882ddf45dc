// Package model holds the entities shared by the pipeline stages, the store
// and the RPC layer.
package model

type SegmentType string

const (
	Narrative SegmentType = "narrative"
	Dialogue  SegmentType = "dialogue"
	Action    SegmentType = "action"
	Thought   SegmentType = "thought"
)

func (t SegmentType) Valid() bool {
	switch t {
	case Narrative, Dialogue, Action, Thought:
		return true
	}
	return false
}

// Segment is one translatable unit of a chapter. Offsets are byte offsets
// into the chapter source text.
type Segment struct {
	Order             int         `json:"order"`
	Text              string      `json:"text"`
	Type              SegmentType `json:"type"`
	Speaker           string      `json:"speaker,omitempty"`
	SourceStart       int         `json:"source_start_offset"`
	SourceEnd         int         `json:"source_end_offset"`
	HasPrecedingBreak bool        `json:"has_preceding_break"`
}

// FailedTranslation marks every segment of a batch whose model call failed.
const FailedTranslation = "[TRANSLATION FAILED]"

type TranslatedSegment struct {
	SegmentID      int         `json:"segment_id"`
	SourceText     string      `json:"source_text"`
	TranslatedText string      `json:"translated_text"`
	Type           SegmentType `json:"type"`
	Speaker        string      `json:"speaker,omitempty"`
	// BatchOrder is the Batch.Order that produced this translation.
	BatchOrder int `json:"batch_id"`
}

// SegmentMapEntry links a segment's source span to its span in the
// assembled translation.
type SegmentMapEntry struct {
	SegmentID       int         `json:"segment_id"`
	SourceStart     int         `json:"source_start"`
	SourceEnd       int         `json:"source_end"`
	TranslatedStart int         `json:"translated_start"`
	TranslatedEnd   int         `json:"translated_end"`
	Type            SegmentType `json:"type"`
	Speaker         string      `json:"speaker,omitempty"`
	BatchID         int         `json:"batch_id"`
}
