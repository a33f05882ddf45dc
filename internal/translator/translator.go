// Package translator turns segments into translations one batch per model
// call, with optional scene reasoning and targeted re-translation of
// flagged segments.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/chunker"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/textutil"
)

const (
	temperature       = 0.3
	maxTokens         = 8192
	retranslateTokens = 4096
)

// ErrNoProvider is returned when no credentials are configured for the
// run's provider.
var ErrNoProvider = apperrors.New(apperrors.KindAuth, "No API keys provided for translation", nil)

// Canceller reports whether the caller asked the run to stop.
type Canceller interface {
	Cancelled() bool
}

// Progress describes the batch about to be sent.
// Progress reports the batch about to be sent.
type Progress struct {
	Batch int
	Total int
}

// Input is one translation pass over a chapter.
type Input struct {
	Segments       []model.Segment
	SourceLang     string
	TargetLang     string
	Glossary       map[string]string
	PersonaContext string
	StyleContext   string
	CoT            bool

	// Re-translation: when Flagged and Previous are both non-empty only the
	// flagged segments are translated and spliced into Previous.
	Previous []model.TranslatedSegment
	Flagged  []int
	Feedback []model.ReviewFeedback

	PreviousBatches []model.Batch
	PreviousUnknown []model.UnknownTerm
	ReviewIteration int

	Cancel     Canceller
	OnProgress func(Progress)
}

// Output accumulates batches and unknown terms across review iterations.
type Output struct {
	// Batches holds every batch of the run so far, previous ones first.
	Batches      []model.Batch
	Translated   []model.TranslatedSegment
	UnknownTerms []model.UnknownTerm
}

type Translator struct {
	provider llm.Provider
	limits   chunker.Limits
}

func New(p llm.Provider) *Translator {
	return &Translator{provider: p, limits: chunker.DefaultLimits()}
}

// SetLimits overrides the batch budget.
func (t *Translator) SetLimits(l chunker.Limits) {
	t.limits = l
}

// Translate runs one translation pass. A failed model call marks its batch
// failed and continues; cancellation and context errors abort the pass.
func (t *Translator) Translate(ctx context.Context, in Input) (Output, error) {
	if cancelled(in.Cancel) {
		return Output{}, apperrors.ErrCancelled
	}
	if !llm.Available(t.provider) {
		return Output{}, ErrNoProvider
	}

	out := Output{
		Batches:      append([]model.Batch(nil), in.PreviousBatches...),
		UnknownTerms: append([]model.UnknownTerm(nil), in.PreviousUnknown...),
	}

	retranslating := len(in.Flagged) > 0 && len(in.Previous) > 0
	todo := in.Segments
	feedback := map[int]model.ReviewFeedback{}
	if retranslating {
		flagged := make(map[int]bool, len(in.Flagged))
		for _, id := range in.Flagged {
			flagged[id] = true
		}
		todo = nil
		for _, s := range in.Segments {
			if flagged[s.Order] {
				todo = append(todo, s)
			}
		}
		for _, fb := range in.Feedback {
			if flagged[fb.SegmentID] {
				feedback[fb.SegmentID] = fb
			}
		}
	}
	if len(todo) == 0 {
		out.Translated = append([]model.TranslatedSegment(nil), in.Previous...)
		return out, nil
	}

	nextOrder := 0
	if n := len(out.Batches); n > 0 {
		nextOrder = out.Batches[n-1].Order + 1
	}
	pattern := textutil.GlossaryPattern(in.Glossary)
	seen := map[string]bool{}
	for _, term := range out.UnknownTerms {
		seen[textutil.FoldKey(term.SourceTerm)] = true
	}

	groups := chunker.Batches(todo, t.limits)
	var fresh []model.TranslatedSegment
	for i, group := range groups {
		if cancelled(in.Cancel) {
			return Output{}, apperrors.ErrCancelled
		}
		if in.OnProgress != nil {
			in.OnProgress(Progress{Batch: i, Total: len(groups)})
		}

		batch, translated, terms, err := t.translateBatch(ctx, in, group, nextOrder+i, pattern, feedback)
		if err != nil {
			if ctx.Err() != nil {
				return Output{}, ctx.Err()
			}
			if apperrors.IsCancelled(err) {
				return Output{}, err
			}
			logger.Error("Batch translation failed", "batch", nextOrder+i, "error", err)
		}
		out.Batches = append(out.Batches, batch)
		fresh = append(fresh, translated...)
		for _, term := range terms {
			key := textutil.FoldKey(term.SourceTerm)
			if seen[key] {
				continue
			}
			seen[key] = true
			out.UnknownTerms = append(out.UnknownTerms, term)
		}
	}

	if retranslating {
		out.Translated = Splice(in.Previous, fresh)
	} else {
		out.Translated = fresh
	}
	return out, nil
}

// Splice replaces the entries of previous whose segment id appears in
// fresh, keeping their position. Fresh entries without a previous
// counterpart are appended.
func Splice(previous, fresh []model.TranslatedSegment) []model.TranslatedSegment {
	byID := make(map[int]model.TranslatedSegment, len(fresh))
	for _, ts := range fresh {
		byID[ts.SegmentID] = ts
	}
	out := make([]model.TranslatedSegment, 0, len(previous)+len(fresh))
	used := map[int]bool{}
	for _, ts := range previous {
		if repl, ok := byID[ts.SegmentID]; ok {
			out = append(out, repl)
			used[ts.SegmentID] = true
			continue
		}
		out = append(out, ts)
	}
	for _, ts := range fresh {
		if !used[ts.SegmentID] {
			out = append(out, ts)
		}
	}
	return out
}

// translateBatch always returns a usable batch record and translations;
// on error they carry the failure marker.
func (t *Translator) translateBatch(ctx context.Context, in Input, group []model.Segment, order int, pattern *regexp.Regexp, feedback map[int]model.ReviewFeedback) (model.Batch, []model.TranslatedSegment, []model.UnknownTerm, error) {
	lines := make([]prompts.Line, len(group))
	normalized := make([]string, len(group))
	ids := make([]int, len(group))
	var batchFeedback []model.ReviewFeedback
	for i, seg := range group {
		text := textutil.NormalizeQuotes(seg.Text)
		normalized[i] = text
		ids[i] = seg.Order
		lines[i] = prompts.Line{
			ID:      seg.Order,
			Type:    seg.Type,
			Speaker: seg.Speaker,
			Text:    textutil.ApplyGlossary(text, in.Glossary, pattern),
		}
		if fb, ok := feedback[seg.Order]; ok {
			batchFeedback = append(batchFeedback, fb)
		}
	}

	batch := model.Batch{
		Order:           order,
		SegmentIDs:      ids,
		Feedback:        batchFeedback,
		ReviewIteration: in.ReviewIteration,
	}

	prompt := prompts.Translation{
		Lines:          lines,
		SourceLang:     in.SourceLang,
		TargetLang:     in.TargetLang,
		Glossary:       textutil.FilterGlossary(in.Glossary, normalized),
		PersonaContext: in.PersonaContext,
		StyleContext:   in.StyleContext,
		Feedback:       batchFeedback,
		CoT:            in.CoT,
	}.Build()

	var reply batchReply
	_, err := llm.GenerateJSON(ctx, t.provider, llm.Request{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &reply)
	if err != nil {
		batch.Failed = true
		return batch, segmentsWith(group, order, func(model.Segment) string { return model.FailedTranslation }), nil, err
	}

	lookup := reply.lookup()
	matched := 0
	for _, seg := range group {
		if lookup[seg.Order] != "" {
			matched++
		}
	}
	if matched == 0 && len(reply.Translations) > 0 {
		logger.Warn("Segment id mismatch, using positional fallback",
			"batch", order, "expected", ids, "got", reply.ids())
		for i, seg := range group {
			if i >= len(reply.Translations) {
				break
			}
			lookup[seg.Order] = reply.Translations[i].Text
		}
	}

	translated := segmentsWith(group, order, func(s model.Segment) string { return lookup[s.Order] })
	empty := 0
	for _, ts := range translated {
		if ts.TranslatedText == "" {
			empty++
		}
	}
	if empty > 0 {
		logger.Warn("Batch has empty translations", "batch", order, "empty", empty, "segments", len(group))
	}

	for _, tr := range reply.Translations {
		if tr.SegmentID.Valid {
			batch.Translations = append(batch.Translations, model.BatchTranslation{SegmentID: tr.SegmentID.Value, Text: tr.Text})
		}
	}

	var terms []model.UnknownTerm
	if in.CoT {
		batch.SituationSummary = reply.SituationSummary
		if len(reply.CharacterEvents) > 0 && string(reply.CharacterEvents) != "null" {
			batch.CharacterEvents = reply.CharacterEvents
		}
		terms = FilterUnknownTerms(reply.UnknownTerms)
	}
	return batch, translated, terms, nil
}

// FilterUnknownTerms drops entries missing either term.
func FilterUnknownTerms(terms []model.UnknownTerm) []model.UnknownTerm {
	var out []model.UnknownTerm
	for _, term := range terms {
		term.SourceTerm = strings.TrimSpace(term.SourceTerm)
		term.TranslatedTerm = strings.TrimSpace(term.TranslatedTerm)
		if term.SourceTerm == "" || term.TranslatedTerm == "" {
			continue
		}
		out = append(out, term)
	}
	return out
}

func segmentsWith(group []model.Segment, order int, text func(model.Segment) string) []model.TranslatedSegment {
	out := make([]model.TranslatedSegment, len(group))
	for i, seg := range group {
		out[i] = model.TranslatedSegment{
			SegmentID:      seg.Order,
			SourceText:     seg.Text,
			TranslatedText: text(seg),
			Type:           seg.Type,
			Speaker:        seg.Speaker,
			BatchOrder:     order,
		}
	}
	return out
}

func cancelled(c Canceller) bool {
	return c != nil && c.Cancelled()
}

type batchReply struct {
	SituationSummary string              `json:"situation_summary"`
	CharacterEvents  json.RawMessage     `json:"character_events"`
	UnknownTerms     []model.UnknownTerm `json:"unknown_terms"`
	Translations     []replyTranslation  `json:"translations"`
}

type replyTranslation struct {
	SegmentID llm.LenientInt `json:"segment_id"`
	Text      string         `json:"text"`
}

func (r batchReply) lookup() map[int]string {
	m := make(map[int]string, len(r.Translations))
	for _, tr := range r.Translations {
		if tr.SegmentID.Valid {
			m[tr.SegmentID.Value] = tr.Text
		}
	}
	return m
}

func (r batchReply) ids() []string {
	out := make([]string, len(r.Translations))
	for i, tr := range r.Translations {
		out[i] = tr.SegmentID.String()
	}
	return out
}

// RetranslateInput is a user-guided re-translation of stored segments.
// Line ids are storage ids.
type RetranslateInput struct {
	Lines          []prompts.Line
	SourceLang     string
	TargetLang     string
	Glossary       map[string]string
	PersonaContext string
	UserGuide      string
}

// Retranslate translates lines in one model call guided by the user's
// instructions. Only translations for requested ids with non-empty text
// are returned.
func (t *Translator) Retranslate(ctx context.Context, in RetranslateInput) ([]model.BatchTranslation, error) {
	if len(in.Lines) == 0 {
		return nil, apperrors.Validation("No segment IDs provided")
	}
	if !llm.Available(t.provider) {
		return nil, ErrNoProvider
	}

	pattern := textutil.GlossaryPattern(in.Glossary)
	lines := make([]prompts.Line, len(in.Lines))
	normalized := make([]string, len(in.Lines))
	wanted := map[int]bool{}
	for i, l := range in.Lines {
		normalized[i] = textutil.NormalizeQuotes(l.Text)
		l.Text = textutil.ApplyGlossary(normalized[i], in.Glossary, pattern)
		lines[i] = l
		wanted[l.ID] = true
	}

	var reply batchReply
	_, err := llm.GenerateJSON(ctx, t.provider, llm.Request{
		Prompt: prompts.Translation{
			Lines:          lines,
			SourceLang:     in.SourceLang,
			TargetLang:     in.TargetLang,
			Glossary:       textutil.FilterGlossary(in.Glossary, normalized),
			PersonaContext: in.PersonaContext,
			UserGuide:      in.UserGuide,
			CoT:            true,
		}.Build(),
		Temperature: temperature,
		MaxTokens:   retranslateTokens,
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("retranslate: %w", err)
	}

	var out []model.BatchTranslation
	for _, tr := range reply.Translations {
		if !tr.SegmentID.Valid || !wanted[tr.SegmentID.Value] || strings.TrimSpace(tr.Text) == "" {
			continue
		}
		out = append(out, model.BatchTranslation{SegmentID: tr.SegmentID.Value, Text: tr.Text})
	}
	return out, nil
}
