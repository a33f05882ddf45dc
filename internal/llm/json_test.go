package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oukeidos/fictra/internal/apperrors"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json{\"a\":1}```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Fatalf("StripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateJSON_DecodesFencedPayload(t *testing.T) {
	p := &Scripted{Replies: []Reply{{Text: "```json\n{\"segments\":[{\"text\":\"Hi\"}]}\n```"}}}

	var out struct {
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if _, err := GenerateJSON(context.Background(), p, Request{Prompt: "x", SystemPrompt: "sys"}, &out); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if len(out.Segments) != 1 || out.Segments[0].Text != "Hi" {
		t.Fatalf("decoded = %+v", out)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].SystemPrompt != "sys\n\nRespond with valid JSON only." {
		t.Fatalf("system prompt = %q", calls[0].SystemPrompt)
	}
	if !calls[0].JSON {
		t.Fatalf("expected JSON flag on request")
	}
}

func TestGenerateJSON_Malformed(t *testing.T) {
	p := &Scripted{Replies: []Reply{{Text: "Sure! Here is the translation."}}}

	var out map[string]any
	_, err := GenerateJSON(context.Background(), p, Request{Prompt: "x"}, &out)
	if err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
	if !apperrors.Is(err, apperrors.KindMalformedOutput) {
		t.Fatalf("kind = %v, want malformed_output", err)
	}
	if !strings.HasPrefix(err.Error(), "LLM did not return valid JSON") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestLenientInt(t *testing.T) {
	tests := []struct {
		in    string
		want  int
		valid bool
	}{
		{`7`, 7, true},
		{`"12"`, 12, true},
		{`" 3 "`, 3, true},
		{`4.0`, 4, true},
		{`4.5`, 0, false},
		{`"abc"`, 0, false},
		{`null`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		var got struct {
			ID LenientInt `json:"id"`
		}
		if err := json.Unmarshal([]byte(`{"id":`+tt.in+`}`), &got); err != nil {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if got.ID.Valid != tt.valid || got.ID.Value != tt.want {
			t.Errorf("%s: got %+v, want %d/%v", tt.in, got.ID, tt.want, tt.valid)
		}
	}
}
