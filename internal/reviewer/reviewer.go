// Package reviewer asks the model to judge translations and collects the
// segments it flags.
package reviewer

import (
	"context"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/chunker"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
)

const (
	temperature = 0.2
	maxTokens   = 4096
)

type Canceller interface {
	Cancelled() bool
}

// Progress describes the chunk about to be reviewed. From and To are
// 1-based pair positions.
type Progress struct {
	From, To, Total int
}

// Input is the translated chapter to review.
type Input struct {
	Translated     []model.TranslatedSegment
	SourceLang     string
	TargetLang     string
	Glossary       map[string]string
	PersonaContext string
	// Iteration is the number of reviews already run.
	Iteration int

	Cancel     Canceller
	OnProgress func(Progress)
}

type Result struct {
	Passed    bool
	Feedback  []model.ReviewFeedback
	Flagged   []int
	Iteration int
	Summaries []string
}

type Reviewer struct {
	provider  llm.Provider
	chunkSize int
}

func New(p llm.Provider) *Reviewer {
	return &Reviewer{provider: p, chunkSize: chunker.ReviewChunkSize}
}

// Review judges every translated segment. It passes when every chunk
// reported overall success or when nothing was flagged. Missing
// credentials and model failures auto-pass; cancellation is returned as an
// error.
func (r *Reviewer) Review(ctx context.Context, in Input) (Result, error) {
	res := Result{Passed: true, Iteration: in.Iteration + 1}
	if cancelled(in.Cancel) {
		return res, apperrors.ErrCancelled
	}
	if len(in.Translated) == 0 {
		return res, nil
	}
	if !llm.Available(r.provider) {
		logger.Warn("No API keys for review, auto-passing")
		return res, nil
	}

	pairs := make([]prompts.Pair, len(in.Translated))
	var empty []int
	for i, ts := range in.Translated {
		pairs[i] = prompts.Pair{
			Line:       prompts.Line{ID: ts.SegmentID, Type: ts.Type, Speaker: ts.Speaker, Text: ts.SourceText},
			Translated: ts.TranslatedText,
		}
		if ts.TranslatedText == "" {
			empty = append(empty, ts.SegmentID)
		}
	}
	if len(empty) > 0 {
		logger.Warn("Review input has empty translations", "count", len(empty), "segments", empty)
	}

	allPassed := true
	var reviews []segmentReview
	from := 0
	for _, chunk := range chunker.Split(pairs, r.chunkSize) {
		if cancelled(in.Cancel) {
			return res, apperrors.ErrCancelled
		}
		if in.OnProgress != nil {
			in.OnProgress(Progress{From: from + 1, To: from + len(chunk), Total: len(pairs)})
		}
		from += len(chunk)

		reply := reviewReply{OverallPassed: true}
		_, err := llm.GenerateJSON(ctx, r.provider, llm.Request{
			Prompt:      prompts.Review(chunk, in.SourceLang, in.TargetLang, in.Glossary, in.PersonaContext),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}, &reply)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Error("Review failed, auto-passing", "error", err)
			return Result{Passed: true, Iteration: res.Iteration}, nil
		}
		if !reply.OverallPassed {
			allPassed = false
		}
		if reply.Summary != "" {
			res.Summaries = append(res.Summaries, reply.Summary)
		}
		reviews = append(reviews, reply.SegmentReviews...)
	}

	for _, rv := range reviews {
		if rv.Verdict != "flag" || !rv.SegmentID.Valid {
			continue
		}
		res.Flagged = append(res.Flagged, rv.SegmentID.Value)
		res.Feedback = append(res.Feedback, model.ReviewFeedback{
			SegmentID:  rv.SegmentID.Value,
			Issue:      rv.Issue,
			Suggestion: rv.Suggestion,
		})
	}
	// A chunk may report failure without flagging anything; that passes.
	res.Passed = allPassed || len(res.Flagged) == 0
	return res, nil
}

func cancelled(c Canceller) bool {
	return c != nil && c.Cancelled()
}

type reviewReply struct {
	OverallPassed  bool            `json:"overall_passed"`
	Summary        string          `json:"summary"`
	SegmentReviews []segmentReview `json:"segment_reviews"`
}

type segmentReview struct {
	SegmentID  llm.LenientInt `json:"segment_id"`
	Verdict    string         `json:"verdict"`
	Issue      string         `json:"issue"`
	Suggestion string         `json:"suggestion"`
}
