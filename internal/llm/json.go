package llm

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
)

const jsonInstruction = "\n\nRespond with valid JSON only."

// GenerateJSON calls p and decodes the response into out. Markdown code
// fences around the payload are tolerated. A payload that does not decode
// yields a malformed_output error.
func GenerateJSON(ctx context.Context, p Provider, req Request, out any) (Response, error) {
	req.SystemPrompt += jsonInstruction
	req.JSON = true

	resp, err := p.Generate(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(StripFences(resp.Text)), out); err != nil {
		return resp, apperrors.Malformed(err)
	}
	return resp, nil
}

// StripFences removes a surrounding ```json ... ``` or ``` ... ``` wrapper.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// LenientInt decodes a JSON number or numeric string. Models often quote
// ids; anything else, null included, decodes as not Valid.
type LenientInt struct {
	Value int
	Valid bool
}

func (l *LenientInt) UnmarshalJSON(data []byte) error {
	*l = LenientInt{}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		l.parse(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.parse(strings.TrimSpace(s))
	}
	return nil
}

func (l *LenientInt) parse(v string) {
	if n, err := strconv.Atoi(v); err == nil {
		l.Value, l.Valid = n, true
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) {
		l.Value, l.Valid = int(f), true
	}
}

func (l LenientInt) String() string {
	if !l.Valid {
		return "?"
	}
	return strconv.Itoa(l.Value)
}
