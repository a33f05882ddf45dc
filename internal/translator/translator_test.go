package translator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/chunker"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
)

type flag struct{ atomic.Bool }

func (f *flag) Cancelled() bool { return f.Load() }

var lineID = regexp.MustCompile(`(?m)^\[(\d+)\|`)

// echo replies with "<prefix><id>" for every segment line in the prompt.
func echo(prefix string) func(int, llm.Request) llm.Reply {
	return func(_ int, req llm.Request) llm.Reply {
		var parts []string
		for _, m := range lineID.FindAllStringSubmatch(req.Prompt, -1) {
			parts = append(parts, fmt.Sprintf(`{"segment_id":%s,"text":"%s%s"}`, m[1], prefix, m[1]))
		}
		return llm.Reply{Text: `{"situation_summary":"s","translations":[` + strings.Join(parts, ",") + `]}`}
	}
}

func segments(n int) []model.Segment {
	out := make([]model.Segment, n)
	for i := range out {
		out[i] = model.Segment{Order: i, Text: fmt.Sprintf("source %d", i), Type: model.Narrative}
	}
	return out
}

func TestTranslate_EndToEndReply(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"translations":[{"segment_id":0,"text":"Bonjour."},{"segment_id":1,"text":"\"Arrête!\" cria-t-elle."}]}`}}}
	segs := []model.Segment{
		{Order: 0, Text: "Hello.", Type: model.Narrative},
		{Order: 1, Text: "\"Stop!\" she shouted.", Type: model.Dialogue, HasPrecedingBreak: true},
	}
	out, err := New(p).Translate(context.Background(), Input{Segments: segs, SourceLang: "en", TargetLang: "fr", CoT: true})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.Translated) != 2 || out.Translated[1].TranslatedText != "\"Arrête!\" cria-t-elle." {
		t.Fatalf("unexpected translations: %+v", out.Translated)
	}
	if len(out.Batches) != 1 || out.Batches[0].Order != 0 || len(out.Batches[0].SegmentIDs) != 2 {
		t.Fatalf("unexpected batches: %+v", out.Batches)
	}
	req := p.Calls()[0]
	if req.Temperature != 0.3 || req.MaxTokens != 8192 {
		t.Errorf("unexpected request params: %+v", req)
	}
}

func TestTranslate_UnknownTermFiltering(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{
		"situation_summary":"A tense standoff.",
		"character_events":[{"character":"Mina","event":"draws"}],
		"unknown_terms":[{"source_term":"","translated_term":"X"},{"source_term":"Y","translated_term":""},{"source_term":"A","translated_term":"B"}],
		"translations":[{"segment_id":0,"text":"t0"}]}`}}}

	out, err := New(p).Translate(context.Background(), Input{Segments: segments(1), CoT: true})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.UnknownTerms) != 1 || out.UnknownTerms[0].SourceTerm != "A" || out.UnknownTerms[0].TranslatedTerm != "B" {
		t.Fatalf("expected only A->B, got %+v", out.UnknownTerms)
	}
	b := out.Batches[0]
	if b.SituationSummary != "A tense standoff." || len(b.CharacterEvents) == 0 {
		t.Fatalf("reasoning not recorded: %+v", b)
	}
}

func TestTranslate_DirectModeIgnoresReasoning(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"situation_summary":"x","unknown_terms":[{"source_term":"A","translated_term":"B"}],"translations":[{"segment_id":0,"text":"t0"}]}`}}}
	out, err := New(p).Translate(context.Background(), Input{Segments: segments(1)})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.UnknownTerms) != 0 || out.Batches[0].SituationSummary != "" {
		t.Fatalf("direct mode must not collect reasoning: %+v", out)
	}
}

func TestTranslate_FailedBatchIsIsolated(t *testing.T) {
	p := &llm.Scripted{Handler: func(call int, req llm.Request) llm.Reply {
		if call == 0 {
			return llm.Reply{Err: apperrors.BadRequest(errors.New("rejected"))}
		}
		return echo("T")(call, req)
	}}
	out, err := New(p).Translate(context.Background(), Input{Segments: segments(12)})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.Batches) != 2 || !out.Batches[0].Failed || out.Batches[1].Failed {
		t.Fatalf("unexpected batches: %+v", out.Batches)
	}
	for i, ts := range out.Translated {
		want := "T" + fmt.Sprint(i)
		if i < 10 {
			want = model.FailedTranslation
		}
		if ts.TranslatedText != want {
			t.Errorf("segment %d = %q, want %q", i, ts.TranslatedText, want)
		}
	}
	if out.Translated[11].BatchOrder != 1 {
		t.Errorf("segment 11 should belong to batch 1")
	}
}

func TestTranslate_PositionalFallback(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"translations":[{"segment_id":101,"text":"a"},{"segment_id":102,"text":"b"}]}`}}}
	out, err := New(p).Translate(context.Background(), Input{Segments: segments(2)})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out.Translated[0].TranslatedText != "a" || out.Translated[1].TranslatedText != "b" {
		t.Fatalf("positional fallback not applied: %+v", out.Translated)
	}
}

func TestTranslate_LenientSegmentIDs(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"translations":[{"segment_id":"1","text":"b"},{"segment_id":0.0,"text":"a"},{"segment_id":null,"text":"z"}]}`}}}
	out, err := New(p).Translate(context.Background(), Input{Segments: segments(2)})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out.Translated[0].TranslatedText != "a" || out.Translated[1].TranslatedText != "b" {
		t.Fatalf("ids not decoded leniently: %+v", out.Translated)
	}
	if len(out.Batches[0].Translations) != 2 {
		t.Fatalf("expected the null id dropped from the record, got %+v", out.Batches[0].Translations)
	}
}

func TestTranslate_RetranslationScoping(t *testing.T) {
	segs := segments(10)
	var previous []model.TranslatedSegment
	for _, s := range segs {
		previous = append(previous, model.TranslatedSegment{SegmentID: s.Order, SourceText: s.Text, TranslatedText: fmt.Sprintf("old %d", s.Order), BatchOrder: 0})
	}
	p := &llm.Scripted{Handler: echo("new ")}

	out, err := New(p).Translate(context.Background(), Input{
		Segments: segs,
		Previous: previous,
		Flagged:  []int{5},
		Feedback: []model.ReviewFeedback{
			{SegmentID: 5, Issue: "stiff", Suggestion: "loosen"},
			{SegmentID: 7, Issue: "ignored", Suggestion: "n/a"},
		},
		PreviousBatches: []model.Batch{{Order: 0}, {Order: 1}},
		PreviousUnknown: []model.UnknownTerm{{SourceTerm: "Seoul", TranslatedTerm: "Seoul"}},
		ReviewIteration: 1,
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.Translated) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(out.Translated))
	}
	for i, ts := range out.Translated {
		if ts.SegmentID != i {
			t.Fatalf("order changed at %d: %d", i, ts.SegmentID)
		}
		if i == 5 {
			if ts.TranslatedText != "new 5" {
				t.Errorf("segment 5 not retranslated: %q", ts.TranslatedText)
			}
			continue
		}
		if ts != previous[i] {
			t.Errorf("segment %d changed: %+v", i, ts)
		}
	}

	if len(out.Batches) != 3 || out.Batches[2].Order != 2 || out.Batches[2].ReviewIteration != 1 {
		t.Fatalf("new batch should continue ordering: %+v", out.Batches)
	}
	if out.Translated[5].BatchOrder != 2 {
		t.Errorf("retranslated segment should point at batch 2")
	}
	if fb := out.Batches[2].Feedback; len(fb) != 1 || fb[0].SegmentID != 5 {
		t.Errorf("only feedback for flagged segments belongs to the batch: %+v", fb)
	}
	prompt := p.Calls()[0].Prompt
	if !strings.Contains(prompt, "Segment 5: stiff") || strings.Contains(prompt, "Segment 7") {
		t.Errorf("feedback section wrong:\n%s", prompt)
	}
	if len(out.UnknownTerms) != 1 || out.UnknownTerms[0].SourceTerm != "Seoul" {
		t.Errorf("previous unknown terms must survive: %+v", out.UnknownTerms)
	}
}

func TestTranslate_UnknownTermsAccumulateWithoutDuplicates(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"unknown_terms":[{"source_term":"seoul","translated_term":"Seoul"},{"source_term":"Busan","translated_term":"Busan"}],"translations":[{"segment_id":0,"text":"x"}]}`}}}
	out, err := New(p).Translate(context.Background(), Input{
		Segments:        segments(1),
		CoT:             true,
		PreviousUnknown: []model.UnknownTerm{{SourceTerm: "Seoul", TranslatedTerm: "Seoul"}},
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out.UnknownTerms) != 2 || out.UnknownTerms[1].SourceTerm != "Busan" {
		t.Fatalf("unexpected terms: %+v", out.UnknownTerms)
	}
}

func TestTranslate_NothingFlaggedKeepsPrevious(t *testing.T) {
	p := &llm.Scripted{}
	previous := []model.TranslatedSegment{{SegmentID: 0, TranslatedText: "kept"}}
	out, err := New(p).Translate(context.Background(), Input{Segments: segments(1), Previous: previous, Flagged: []int{42}})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(p.Calls()) != 0 || len(out.Translated) != 1 || out.Translated[0].TranslatedText != "kept" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestTranslate_GlossaryApplied(t *testing.T) {
	p := &llm.Scripted{Handler: echo("T")}
	segs := []model.Segment{{Order: 0, Text: "“Hi,” said Kim Minji.", Type: model.Dialogue}}
	_, err := New(p).Translate(context.Background(), Input{
		Segments: segs,
		Glossary: map[string]string{"Kim Minji": "Minji Kim", "Kim": "Gim", "Busan": "Busan"},
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	prompt := p.Calls()[0].Prompt
	if !strings.Contains(prompt, `[0|dialogue] "Hi," said Minji Kim.`) {
		t.Errorf("segment text not normalized and substituted:\n%s", prompt)
	}
	if strings.Contains(prompt, "Busan -> Busan") {
		t.Errorf("glossary should be filtered to terms present in the batch")
	}
}

func TestTranslate_Cancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		f := &flag{}
		f.Store(true)
		p := &llm.Scripted{Handler: echo("T")}
		_, err := New(p).Translate(context.Background(), Input{Segments: segments(3), Cancel: f})
		if !apperrors.IsCancelled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		if len(p.Calls()) != 0 {
			t.Fatalf("no call expected")
		}
	})

	t.Run("between batches", func(t *testing.T) {
		f := &flag{}
		p := &llm.Scripted{Handler: func(call int, req llm.Request) llm.Reply {
			f.Store(true)
			return echo("T")(call, req)
		}}
		tr := New(p)
		tr.SetLimits(chunker.Limits{MaxChars: 20000, MaxSegments: 1})
		_, err := tr.Translate(context.Background(), Input{Segments: segments(3), Cancel: f})
		if !apperrors.IsCancelled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		if len(p.Calls()) != 1 {
			t.Fatalf("expected 1 call before abort, got %d", len(p.Calls()))
		}
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := &llm.Scripted{Handler: func(int, llm.Request) llm.Reply {
			cancel()
			return llm.Reply{Err: context.Canceled}
		}}
		_, err := New(p).Translate(ctx, Input{Segments: segments(2)})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTranslate_NoProvider(t *testing.T) {
	_, err := New(nil).Translate(context.Background(), Input{Segments: segments(1)})
	if !errors.Is(err, ErrNoProvider) || !apperrors.Is(err, apperrors.KindAuth) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestTranslate_ReportsProgress(t *testing.T) {
	p := &llm.Scripted{Handler: echo("T")}
	var seen []Progress
	_, err := New(p).Translate(context.Background(), Input{
		Segments:   segments(25),
		OnProgress: func(pr Progress) { seen = append(seen, pr) },
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(seen) != 3 || seen[2] != (Progress{Batch: 2, Total: 3}) {
		t.Fatalf("unexpected progress: %+v", seen)
	}
}

func TestSplice(t *testing.T) {
	prev := []model.TranslatedSegment{{SegmentID: 0, TranslatedText: "a"}, {SegmentID: 1, TranslatedText: "b"}}
	got := Splice(prev, []model.TranslatedSegment{{SegmentID: 1, TranslatedText: "B"}, {SegmentID: 2, TranslatedText: "C"}})
	if len(got) != 3 || got[0].TranslatedText != "a" || got[1].TranslatedText != "B" || got[2].TranslatedText != "C" {
		t.Fatalf("unexpected splice: %+v", got)
	}
}

func TestRetranslate(t *testing.T) {
	p := &llm.Scripted{Replies: []llm.Reply{{Text: `{"translations":[{"segment_id":41,"text":"new"},{"segment_id":99,"text":"stray"},{"segment_id":42,"text":" "}]}`}}}
	got, err := New(p).Retranslate(context.Background(), RetranslateInput{
		Lines:     []prompts.Line{{ID: 41, Type: model.Narrative, Text: "a"}, {ID: 42, Type: model.Narrative, Text: "b"}},
		UserGuide: "more formal",
	})
	if err != nil {
		t.Fatalf("Retranslate failed: %v", err)
	}
	if len(got) != 1 || got[0].SegmentID != 41 || got[0].Text != "new" {
		t.Fatalf("unexpected result: %+v", got)
	}
	req := p.Calls()[0]
	if req.MaxTokens != 4096 || !strings.Contains(req.Prompt, "## User Translation Guide\nmore formal") {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestRetranslate_NoLines(t *testing.T) {
	_, err := New(&llm.Scripted{}).Retranslate(context.Background(), RetranslateInput{})
	if !apperrors.Is(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
