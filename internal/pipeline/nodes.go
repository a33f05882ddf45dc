package pipeline

import (
	"context"
	"fmt"

	"github.com/oukeidos/fictra/internal/characters"
	"github.com/oukeidos/fictra/internal/learner"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/reviewer"
	"github.com/oukeidos/fictra/internal/segmenter"
	"github.com/oukeidos/fictra/internal/translator"
	"github.com/oukeidos/fictra/internal/validator"
)

// execution holds the collaborators of one run.
type execution struct {
	store    Store
	provider llm.Provider
	signal   *CancelSignal
	progress notifier
}

func (e *execution) step(ctx context.Context, n Node, s State) (Update, error) {
	switch n {
	case NodeLoadContext:
		return e.loadContext(ctx, s)
	case NodeSegment:
		return e.segment(ctx, s), nil
	case NodeExtractCharacters:
		return e.extractCharacters(ctx, s), nil
	case NodeValidate:
		return e.validate(s), nil
	case NodeTranslate:
		return e.translate(ctx, s)
	case NodeReview:
		return e.review(ctx, s)
	case NodeLearnPersonas:
		return e.learn(ctx, s), nil
	case NodeFinalize:
		return e.finalize(ctx, s)
	}
	return Update{}, fmt.Errorf("unknown pipeline node %q", n)
}

func (e *execution) loadContext(ctx context.Context, s State) (Update, error) {
	e.progress.notify(StageLoadContext, 0, "Loading project context...")

	glossary, err := e.store.GlossaryMap(ctx, s.ProjectID)
	if err != nil {
		return Update{}, fmt.Errorf("load glossary: %w", err)
	}
	personas, err := e.store.ListPersonas(ctx, s.ProjectID)
	if err != nil {
		return Update{}, fmt.Errorf("load personas: %w", err)
	}
	rels, err := e.store.ListRelationships(ctx, s.ProjectID)
	if err != nil {
		return Update{}, fmt.Errorf("load relationships: %w", err)
	}

	personaCtx := prompts.PersonaContext(personas)
	e.progress.notify(StageLoadContext, 1, "Loaded %d glossary terms, %d personas", len(glossary), len(personas))
	return Update{
		Glossary:           &glossary,
		PersonaContext:     &personaCtx,
		TranslationContext: ptr(prompts.CombineContext(personaCtx, prompts.RelationshipContext(rels, personas))),
		Personas:           &personas,
		Relationships:      &rels,
	}, nil
}

func (e *execution) segment(ctx context.Context, s State) Update {
	e.progress.notify(StageSegmentation, 0, "Segmenting text...")
	segs := segmenter.Segment(ctx, s.SourceText, s.SourceLang, e.provider)
	e.progress.notify(StageSegmentation, 1, "Segmented into %d segments", len(segs))
	return Update{Segments: &segs}
}

func (e *execution) extractCharacters(ctx context.Context, s State) Update {
	e.progress.notify(StageCharacterExtraction, 0, "Extracting characters...")
	chars := characters.Extract(ctx, s.Segments, s.SourceLang, s.Personas, e.provider)
	e.progress.notify(StageCharacterExtraction, 1, "Detected %d characters", len(chars))
	return Update{Characters: &chars}
}

func (e *execution) validate(s State) Update {
	e.progress.notify(StageValidation, 0, "Validating segments (attempt %d)...", s.ValidationAttempts+1)
	res := validator.Validate(s.Segments, s.SourceText, s.ValidationAttempts)
	status := "passed"
	if !res.Passed {
		status = "failed"
	}
	e.progress.notify(StageValidation, 1, "Validation %s (%d issues)", status, len(res.Errors))
	return Update{
		ValidationPassed:   &res.Passed,
		ValidationErrors:   &res.Errors,
		ValidationAttempts: &res.Attempts,
	}
}

func (e *execution) translate(ctx context.Context, s State) (Update, error) {
	in := translator.Input{
		Segments:        s.Segments,
		SourceLang:      s.SourceLang,
		TargetLang:      s.TargetLang,
		Glossary:        s.Glossary,
		PersonaContext:  s.TranslationContext,
		StyleContext:    s.StyleContext,
		CoT:             s.CoT,
		PreviousBatches: s.Batches,
		PreviousUnknown: s.UnknownTerms,
		ReviewIteration: s.ReviewIteration,
		Cancel:          e.signal,
		OnProgress: func(p translator.Progress) {
			e.progress.notify(StageTranslation, float64(p.Batch)/float64(p.Total), "Translating batch %d/%d...", p.Batch+1, p.Total)
		},
	}
	count := len(s.Segments)
	if !s.ReviewPassed && len(s.Flagged) > 0 {
		in.Previous = s.Translated
		in.Flagged = s.Flagged
		in.Feedback = s.ReviewFeedback
		count = len(s.Flagged)
	}
	e.progress.notify(StageTranslation, 0, "Translating %d segments...", count)

	out, err := translator.New(e.provider).Translate(ctx, in)
	if err != nil {
		return Update{}, err
	}
	e.progress.notify(StageTranslation, 1, "Translated %d segments in %d batches", len(out.Translated), len(out.Batches))
	return Update{
		Batches:      &out.Batches,
		Translated:   &out.Translated,
		UnknownTerms: &out.UnknownTerms,
	}, nil
}

func (e *execution) review(ctx context.Context, s State) (Update, error) {
	e.progress.notify(StageReview, 0, "Reviewing translations (iteration %d)...", s.ReviewIteration+1)
	res, err := reviewer.New(e.provider).Review(ctx, reviewer.Input{
		Translated:     s.Translated,
		SourceLang:     s.SourceLang,
		TargetLang:     s.TargetLang,
		Glossary:       s.Glossary,
		PersonaContext: s.PersonaContext,
		Iteration:      s.ReviewIteration,
		Cancel:         e.signal,
		OnProgress: func(p reviewer.Progress) {
			e.progress.notify(StageReview, float64(p.From-1)/float64(p.Total), "Reviewing segments %d-%d...", p.From, p.To)
		},
	})
	if err != nil {
		return Update{}, err
	}
	if res.Passed {
		e.progress.notify(StageReview, 1, "Review passed")
	} else {
		e.progress.notify(StageReview, 1, "Review flagged %d segments", len(res.Flagged))
	}
	return Update{
		ReviewPassed:    &res.Passed,
		ReviewFeedback:  &res.Feedback,
		ReviewIteration: &res.Iteration,
		Flagged:         &res.Flagged,
	}, nil
}

func (e *execution) learn(ctx context.Context, s State) Update {
	e.progress.notify(StagePersonaLearning, 0, "Analysing character voices...")
	in := learner.Input{
		Translated:    s.Translated,
		Characters:    s.Characters,
		Personas:      s.Personas,
		Relationships: s.Relationships,
		SourceLang:    s.SourceLang,
		TargetLang:    s.TargetLang,
	}
	personas := learner.Personas(ctx, e.provider, in)
	rels := learner.Relationships(ctx, e.provider, in)
	e.progress.notify(StagePersonaLearning, 1, "Found %d persona suggestions, %d relationship suggestions", len(personas), len(rels))
	return Update{PersonaSuggestions: &personas, RelationshipSuggestions: &rels}
}

func (e *execution) finalize(ctx context.Context, s State) (Update, error) {
	e.progress.notify(StageFinalize, 0, "Finalising translation...")
	text, entries := Assemble(s.Segments, s.Translated)

	failed := 0
	for _, ts := range s.Translated {
		if ts.TranslatedText == model.FailedTranslation {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("Finalizing with failed segments", "chapter", s.ChapterID, "failed", failed)
	}

	err := e.store.SaveOutcome(ctx, model.Outcome{
		ChapterID:          s.ChapterID,
		ProjectID:          s.ProjectID,
		TargetLanguage:     s.TargetLang,
		ConnectedText:      text,
		Segments:           s.Segments,
		Translated:         s.Translated,
		SegmentMap:         entries,
		Batches:            s.Batches,
		PersonaSuggestions: s.PersonaSuggestions,
		UnknownTerms:       s.UnknownTerms,
	})
	if err != nil {
		return Update{}, fmt.Errorf("save translation: %w", err)
	}
	e.progress.notify(StageFinalize, 1, "Translation saved to database")
	return Update{ConnectedText: &text, SegmentMap: &entries}, nil
}
