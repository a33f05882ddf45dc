package pipeline

import "github.com/oukeidos/fictra/internal/model"

// State is the context threaded through every stage of a run. Stages never
// modify it in place; they return an Update that Merge applies.
type State struct {
	ChapterID    int64
	ProjectID    int64
	SourceText   string
	SourceLang   string
	TargetLang   string
	Provider     string
	CoT          bool
	StyleContext string

	Glossary       map[string]string
	PersonaContext string
	// TranslationContext is the persona voice guide plus known relationships.
	TranslationContext string
	Personas           []model.Persona
	Relationships      []model.Relationship

	Segments   []model.Segment
	Characters []model.DetectedCharacter

	ValidationPassed   bool
	ValidationErrors   []string
	ValidationAttempts int

	Batches      []model.Batch
	Translated   []model.TranslatedSegment
	UnknownTerms []model.UnknownTerm

	ReviewPassed    bool
	ReviewFeedback  []model.ReviewFeedback
	ReviewIteration int
	Flagged         []int

	PersonaSuggestions      []model.PersonaSuggestion
	RelationshipSuggestions []model.RelationshipSuggestion

	ConnectedText string
	SegmentMap    []model.SegmentMapEntry
}

// Update carries the fields a stage produced. Nil fields are left alone.
type Update struct {
	Glossary           *map[string]string
	PersonaContext     *string
	TranslationContext *string
	Personas           *[]model.Persona
	Relationships      *[]model.Relationship

	Segments   *[]model.Segment
	Characters *[]model.DetectedCharacter

	ValidationPassed   *bool
	ValidationErrors   *[]string
	ValidationAttempts *int

	Batches      *[]model.Batch
	Translated   *[]model.TranslatedSegment
	UnknownTerms *[]model.UnknownTerm

	ReviewPassed    *bool
	ReviewFeedback  *[]model.ReviewFeedback
	ReviewIteration *int
	Flagged         *[]int

	PersonaSuggestions      *[]model.PersonaSuggestion
	RelationshipSuggestions *[]model.RelationshipSuggestion

	ConnectedText *string
	SegmentMap    *[]model.SegmentMapEntry
}

// Merge returns old with every non-nil field of u applied.
func Merge(old State, u Update) State {
	s := old
	set(&s.Glossary, u.Glossary)
	set(&s.PersonaContext, u.PersonaContext)
	set(&s.TranslationContext, u.TranslationContext)
	set(&s.Personas, u.Personas)
	set(&s.Relationships, u.Relationships)
	set(&s.Segments, u.Segments)
	set(&s.Characters, u.Characters)
	set(&s.ValidationPassed, u.ValidationPassed)
	set(&s.ValidationErrors, u.ValidationErrors)
	set(&s.ValidationAttempts, u.ValidationAttempts)
	set(&s.Batches, u.Batches)
	set(&s.Translated, u.Translated)
	set(&s.UnknownTerms, u.UnknownTerms)
	set(&s.ReviewPassed, u.ReviewPassed)
	set(&s.ReviewFeedback, u.ReviewFeedback)
	set(&s.ReviewIteration, u.ReviewIteration)
	set(&s.Flagged, u.Flagged)
	set(&s.PersonaSuggestions, u.PersonaSuggestions)
	set(&s.RelationshipSuggestions, u.RelationshipSuggestions)
	set(&s.ConnectedText, u.ConnectedText)
	set(&s.SegmentMap, u.SegmentMap)
	return s
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func ptr[T any](v T) *T { return &v }
