package segmenter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
)

func assertOffsets(t *testing.T, text string, segs []model.Segment) {
	t.Helper()
	for _, s := range segs {
		if s.SourceStart < 0 || s.SourceEnd < s.SourceStart || s.SourceEnd > len(text) {
			t.Fatalf("segment %d: bad offsets [%d,%d)", s.Order, s.SourceStart, s.SourceEnd)
		}
		if got := text[s.SourceStart:s.SourceEnd]; got != s.Text {
			t.Fatalf("segment %d: slice %q != text %q", s.Order, got, s.Text)
		}
	}
}

func TestRuleBased_OffsetsReproduceText(t *testing.T) {
	texts := []string{
		"Hello.\n\n\"Stop!\" she shouted.",
		"  Leading spaces.\n\n\n   Indented second.  \n",
		"First line\nsecond line of same paragraph.\n \n\tNext paragraph.",
		"\"가자.\" 민수가 말했다.\n\n그는 고개를 끄덕였다.\r\n\r\n(이상하다.)",
		"「行こう」と健太。\n\n彼は頷いた。",
		"“走吧。”\n\n他说：“好。”",
		"",
		"\n\n\n",
	}
	for _, text := range texts {
		segs := RuleBased(text, "en")
		assertOffsets(t, text, segs)
		for i, s := range segs {
			if s.Order != i {
				t.Fatalf("order %d at index %d", s.Order, i)
			}
		}
	}
}

func TestRuleBased_EndToEndExample(t *testing.T) {
	text := "Hello.\n\n\"Stop!\" she shouted."
	segs := RuleBased(text, "en")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "Hello." || segs[0].Type != model.Narrative || segs[0].HasPrecedingBreak {
		t.Errorf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Text != "\"Stop!\" she shouted." || segs[1].Type != model.Dialogue || !segs[1].HasPrecedingBreak {
		t.Errorf("unexpected second segment: %+v", segs[1])
	}
}

func TestRuleBased_UnicodeBlankLines(t *testing.T) {
	tests := []struct {
		name, text, lang string
		first, second    string
	}{
		{"ideographic space", "「行くぞ」\n\u3000\n彼は走った。", "ja", "「行くぞ」", "彼は走った。"},
		{"no-break space", "Hello.\n\u00a0\nWorld.", "en", "Hello.", "World."},
		{"mixed", "첫 문단.\n \u3000\u00a0\t\n둘째 문단.", "ko", "첫 문단.", "둘째 문단."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := RuleBased(tt.text, tt.lang)
			if len(segs) != 2 {
				t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
			}
			assertOffsets(t, tt.text, segs)
			if segs[0].Text != tt.first || segs[1].Text != tt.second {
				t.Fatalf("texts = %q, %q", segs[0].Text, segs[1].Text)
			}
			if !segs[1].HasPrecedingBreak {
				t.Errorf("second segment should follow a paragraph break")
			}
		})
	}
}

func TestRuleBased_EmptyText(t *testing.T) {
	if segs := RuleBased(" \n\t ", "ko"); segs != nil {
		t.Fatalf("expected no segments, got %v", segs)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		lang string
		text string
		want model.SegmentType
	}{
		{"en", `"Run," said Tom.`, model.Dialogue},
		{"en", "'Fine.'", model.Dialogue},
		{"en", "‘Maybe he knows.’", model.Thought},
		{"en", "(I should leave.)", model.Thought},
		{"en", "The rain stopped.", model.Narrative},
		{"ko", "「어서 와.」", model.Dialogue},
		{"ja", "『本当に？』", model.Dialogue},
		{"ja", "【警告】", model.Thought},
		{"zh", "“走吧。”", model.Dialogue},
		{"xx", `"Unknown language falls back."`, model.Dialogue},
	}
	for _, tt := range tests {
		if got := Classify(tt.text, RulesFor(tt.lang)); got != tt.want {
			t.Errorf("Classify(%q, %s) = %s, want %s", tt.text, tt.lang, got, tt.want)
		}
	}
}

func TestDetectSpeaker(t *testing.T) {
	tests := []struct {
		lang string
		text string
		want string
	}{
		{"en", `"Run," said Tom.`, "Tom"},
		{"en", `Anna said, "Wait."`, "Anna"},
		{"en", `Captain: "Hold."`, "Captain"},
		{"en", `"Stop!" she shouted.`, ""},
		{"ko", `"가자." 민수가 말했다.`, "민수"},
		{"zh", `他说：“好。”`, "他"},
	}
	for _, tt := range tests {
		if got := DetectSpeaker(tt.text, RulesFor(tt.lang).Speaker); got != tt.want {
			t.Errorf("DetectSpeaker(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestRulesFor_NormalizesRegion(t *testing.T) {
	if len(RulesFor("ko-KR").Speaker) != len(rules["ko"].Speaker) {
		t.Fatalf("ko-KR should use Korean rules")
	}
}

func TestLocate(t *testing.T) {
	text := "Alpha beta.\n\nGamma delta.\nEpsilon."
	speaker := "Mina"
	items := []Proposed{
		{Text: "Alpha beta.", Type: model.Narrative},
		{Text: "  ", Type: model.Narrative},
		{Text: "Gamma delta.", Type: "monologue", Speaker: &speaker},
		{Text: "Epsilon.", Type: model.Action},
	}
	segs := Locate(items, text)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	assertOffsets(t, text, segs)
	if segs[1].Type != model.Narrative || segs[1].Speaker != "Mina" {
		t.Errorf("invalid type should become narrative: %+v", segs[1])
	}
	if !segs[1].HasPrecedingBreak {
		t.Errorf("blank line before Gamma should set the break flag")
	}
	if segs[2].HasPrecedingBreak {
		t.Errorf("single newline before Epsilon is not a paragraph break")
	}
}

func TestLocate_Fallbacks(t *testing.T) {
	text := "Once upon a time there was a very long opening sentence that goes on. Then more."
	items := []Proposed{
		// Differs after the first 50 characters.
		{Text: "Once upon a time there was a very long opening sentence that WENT on."},
		{Text: "Nowhere in the source."},
	}
	segs := Locate(items, text)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].SourceStart != 0 {
		t.Errorf("prefix fallback should locate offset 0, got %d", segs[0].SourceStart)
	}
	if segs[1].SourceStart != segs[0].SourceEnd {
		t.Errorf("cursor fallback should start at %d, got %d", segs[0].SourceEnd, segs[1].SourceStart)
	}
	if segs[1].SourceEnd > len(text) {
		t.Errorf("end offset must be clamped to the source length")
	}
}

func TestSegment_UsesModelResult(t *testing.T) {
	text := "Hello.\n\n\"Stop!\" she shouted."
	p := &llm.Scripted{Replies: []llm.Reply{{Text: "```json\n" +
		`{"segments":[{"text":"Hello.","type":"narrative","speaker":null},` +
		`{"text":"\"Stop!\" she shouted.","type":"dialogue","speaker":"she"}]}` + "\n```"}}}

	segs := Segment(context.Background(), text, "en", p)
	if len(segs) != 2 || segs[1].Speaker != "she" {
		t.Fatalf("expected model segmentation, got %+v", segs)
	}
	assertOffsets(t, text, segs)
	req := p.Calls()[0]
	if req.Temperature != 0.1 || req.MaxTokens != 4096 {
		t.Errorf("unexpected request params: %+v", req)
	}
}

func TestSegment_FallsBackToRules(t *testing.T) {
	text := "Hello.\n\nWorld."
	cases := map[string]*llm.Scripted{
		"error":     {Replies: []llm.Reply{{Err: apperrors.Transient(errors.New("boom"))}}},
		"malformed": {Replies: []llm.Reply{{Text: "not json"}}},
		"empty":     {Replies: []llm.Reply{{Text: `{"segments":[]}`}}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			segs := Segment(context.Background(), text, "en", p)
			if len(segs) != 2 || segs[1].Text != "World." {
				t.Fatalf("expected rule-based result, got %+v", segs)
			}
		})
	}
}

func TestSegment_SkipsModel(t *testing.T) {
	unavailable := &llm.Scripted{Unavailable: true}
	Segment(context.Background(), "Hi.", "en", unavailable)
	if len(unavailable.Calls()) != 0 {
		t.Fatalf("unavailable provider must not be called")
	}

	p := &llm.Scripted{}
	long := strings.Repeat("word ", MaxRefineChars/5+1)
	Segment(context.Background(), long, "en", p)
	if len(p.Calls()) != 0 {
		t.Fatalf("long text must not be sent for refinement")
	}

	if segs := Segment(context.Background(), "Hi.", "en", nil); len(segs) != 1 {
		t.Fatalf("nil provider should still segment")
	}
}
