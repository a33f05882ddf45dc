package validator

import (
	"strings"
	"testing"

	"github.com/oukeidos/fictra/internal/model"
)

func seg(order int, text string, start int, typ model.SegmentType) model.Segment {
	return model.Segment{Order: order, Text: text, Type: typ, SourceStart: start, SourceEnd: start + len(text)}
}

func TestValidate_Passes(t *testing.T) {
	source := "Hello.\n\n\"Stop!\" she shouted."
	segs := []model.Segment{
		seg(0, "Hello.", 0, model.Narrative),
		seg(1, "\"Stop!\" she shouted.", 8, model.Dialogue),
	}
	res := Validate(segs, source, 0)
	if !res.Passed || len(res.Errors) != 0 {
		t.Fatalf("expected pass, got %v", res.Errors)
	}
	if res.Attempts != 1 {
		t.Fatalf("expected attempt 1, got %d", res.Attempts)
	}
}

func TestValidate_NoSegments(t *testing.T) {
	res := Validate(nil, "text", 2)
	if res.Passed || len(res.Errors) != 1 || res.Errors[0] != "No segments produced" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts should still increase, got %d", res.Attempts)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	big := strings.Repeat("a", MaxSegmentChars+1)
	source := big + "\n\nshort"
	segs := []model.Segment{
		{Order: 0, Text: big, Type: model.Narrative, SourceStart: 0, SourceEnd: len(big)},
		{Order: 1, Text: "  ", Type: "monologue", SourceStart: -1, SourceEnd: -3},
	}
	res := Validate(segs, source, 0)
	want := []string{
		"Segment 1 is empty",
		"Segment 0 exceeds max length (10001 > 10000)",
		"Segment 1 has negative offset",
		"Segment 1 end offset (-3) < start offset (-1)",
		"Segment 1 has invalid type 'monologue'",
	}
	if res.Passed {
		t.Fatalf("expected failure")
	}
	if len(res.Errors) != len(want) {
		t.Fatalf("got %d errors %q, want %d", len(res.Errors), res.Errors, len(want))
	}
	for i := range want {
		if res.Errors[i] != want[i] {
			t.Errorf("error %d = %q, want %q", i, res.Errors[i], want[i])
		}
	}
}

func TestValidate_LowCoverage(t *testing.T) {
	source := "0123456789"
	res := Validate([]model.Segment{seg(0, "0123", 0, model.Narrative)}, source, 0)
	if res.Passed {
		t.Fatalf("expected coverage failure")
	}
	if res.Errors[0] != "Low coverage: segments cover 40% of source text (minimum 80%)" {
		t.Fatalf("unexpected message %q", res.Errors[0])
	}
}

func TestValidate_WarningsDoNotFail(t *testing.T) {
	source := "\"A\"\"B\""
	segs := []model.Segment{
		{Order: 0, Text: "\"A\"\"B\"", Type: model.Dialogue, SourceStart: 0, SourceEnd: 6},
		{Order: 1, Text: "\"B\"", Type: model.Dialogue, SourceStart: 3, SourceEnd: 6},
	}
	res := Validate(segs, source, 0)
	if !res.Passed {
		t.Fatalf("overlap and missing speakers must not fail: %v", res.Errors)
	}
}

func TestValidate_AttemptsMonotonic(t *testing.T) {
	attempts := 0
	for i := 1; i <= 5; i++ {
		attempts = Validate(nil, "", attempts).Attempts
		if attempts != i {
			t.Fatalf("attempt %d reported %d", i, attempts)
		}
	}
}

func TestCoverage_CountsCharacters(t *testing.T) {
	cov, ok := Coverage([]model.Segment{{Text: "가나"}}, " 가나다라 ")
	if !ok || cov != 0.5 {
		t.Fatalf("coverage = %v, %v", cov, ok)
	}
	if _, ok := Coverage(nil, "   "); ok {
		t.Fatalf("blank source has no coverage")
	}
}
