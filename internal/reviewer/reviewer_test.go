package reviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
)

type flag struct{ atomic.Bool }

func (f *flag) Cancelled() bool { return f.Load() }

func translated(n int) []model.TranslatedSegment {
	out := make([]model.TranslatedSegment, n)
	for i := range out {
		out[i] = model.TranslatedSegment{SegmentID: i, SourceText: fmt.Sprintf("s%d", i), TranslatedText: fmt.Sprintf("t%d", i), Type: model.Narrative}
	}
	return out
}

func TestReview_Passes(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"overall_passed":true,"summary":"fine","segment_reviews":[{"segment_id":0,"verdict":"pass"}]}`}}}
	res, err := New(p).Review(context.Background(), Input{Translated: translated(2)})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !res.Passed || len(res.Flagged) != 0 || res.Iteration != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	req := p.Calls()[0]
	if req.Temperature != 0.2 || req.MaxTokens != 4096 {
		t.Errorf("unexpected request params: %+v", req)
	}
}

func TestReview_Flags(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"overall_passed":false,"segment_reviews":[
		{"segment_id":0,"verdict":"pass"},
		{"segment_id":"1","verdict":"flag","issue":"too literal","suggestion":"rephrase"},
		{"segment_id":null,"verdict":"flag","issue":"lost"}]}`}}}
	res, err := New(p).Review(context.Background(), Input{Translated: translated(2), Iteration: 1})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if res.Passed {
		t.Fatalf("expected review to fail")
	}
	if res.Iteration != 2 {
		t.Fatalf("expected iteration 2, got %d", res.Iteration)
	}
	if len(res.Flagged) != 1 || res.Flagged[0] != 1 {
		t.Fatalf("unexpected flagged: %v", res.Flagged)
	}
	if res.Feedback[0] != (model.ReviewFeedback{SegmentID: 1, Issue: "too literal", Suggestion: "rephrase"}) {
		t.Fatalf("unexpected feedback: %+v", res.Feedback)
	}
}

// A chunk that reports failure but flags nothing still passes.
func TestReview_OverallFalseWithoutFlagsPasses(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"overall_passed":false,"summary":"meh","segment_reviews":[{"segment_id":0,"verdict":"pass"}]}`}}}
	res, err := New(p).Review(context.Background(), Input{Translated: translated(1)})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !res.Passed {
		t.Fatalf("overall=false with zero flags must pass")
	}
}

// Flags with overall=true also pass; the retranslation loop only runs when
// some chunk reported failure.
func TestReview_OverallTrueWithFlagsPasses(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"overall_passed":true,"segment_reviews":[{"segment_id":0,"verdict":"flag","issue":"x"}]}`}}}
	res, err := New(p).Review(context.Background(), Input{Translated: translated(1)})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !res.Passed || len(res.Flagged) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReview_ChunksOf30(t *testing.T) {
	p := &llm.Scripted{Handler: func(call int, req llm.Request) llm.Reply {
		if call == 1 {
			return llm.Reply{Text: `{"overall_passed":false,"segment_reviews":[{"segment_id":45,"verdict":"flag","issue":"i","suggestion":"s"}]}`}
		}
		return llm.Reply{Text: `{"overall_passed":true,"segment_reviews":[]}`}
	}}
	var progress []Progress
	res, err := New(p).Review(context.Background(), Input{
		Translated: translated(65),
		OnProgress: func(pr Progress) { progress = append(progress, pr) },
	})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	calls := p.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(calls))
	}
	if strings.Count(calls[0].Prompt, "  SRC: ") != 30 || strings.Count(calls[2].Prompt, "  SRC: ") != 5 {
		t.Fatalf("chunks not sized 30/30/5")
	}
	if res.Passed || len(res.Flagged) != 1 || res.Flagged[0] != 45 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if progress[1] != (Progress{From: 31, To: 60, Total: 65}) {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestReview_AutoPass(t *testing.T) {
	t.Run("no translations", func(t *testing.T) {
		p := &llm.Scripted{}
		res, err := New(p).Review(context.Background(), Input{})
		if err != nil || !res.Passed || len(p.Calls()) != 0 {
			t.Fatalf("unexpected: %+v %v", res, err)
		}
	})
	t.Run("no provider", func(t *testing.T) {
		res, err := New(nil).Review(context.Background(), Input{Translated: translated(1)})
		if err != nil || !res.Passed || res.Iteration != 1 {
			t.Fatalf("unexpected: %+v %v", res, err)
		}
	})
	t.Run("model error", func(t *testing.T) {
		p := &llm.Scripted{Handler: func(call int, _ llm.Request) llm.Reply {
			if call == 0 {
				return llm.Reply{Text: `{"overall_passed":false,"segment_reviews":[{"segment_id":0,"verdict":"flag"}]}`}
			}
			return llm.Reply{Err: apperrors.Transient(errors.New("down"))}
		}}
		res, err := New(p).Review(context.Background(), Input{Translated: translated(40)})
		if err != nil || !res.Passed || len(res.Feedback) != 0 || len(res.Flagged) != 0 {
			t.Fatalf("expected auto-pass with empty feedback: %+v %v", res, err)
		}
	})
	t.Run("malformed", func(t *testing.T) {
		p := &llm.Scripted{Replies: []llm.Reply{{Text: "no"}}}
		res, err := New(p).Review(context.Background(), Input{Translated: translated(1)})
		if err != nil || !res.Passed {
			t.Fatalf("unexpected: %+v %v", res, err)
		}
	})
}

func TestReview_CancellationIsNotAutoPass(t *testing.T) {
	f := &flag{}
	f.Store(true)
	p := &llm.Scripted{}
	_, err := New(p).Review(context.Background(), Input{Translated: translated(1), Cancel: f})
	if !apperrors.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	f = &flag{}
	p = &llm.Scripted{Handler: func(int, llm.Request) llm.Reply {
		f.Store(true)
		return llm.Reply{Text: `{"overall_passed":true}`}
	}}
	_, err = New(p).Review(context.Background(), Input{Translated: translated(31), Cancel: f})
	if !apperrors.IsCancelled(err) {
		t.Fatalf("expected cancellation between chunks, got %v", err)
	}
	if len(p.Calls()) != 1 {
		t.Fatalf("expected 1 call, got %d", len(p.Calls()))
	}
}
