// Package llm defines the contract every model backend satisfies and the
// call-level policies (JSON decoding, retry, rate limiting, token metering)
// layered on top of it.
package llm

import (
	"context"
	"fmt"
	"strings"
)

type ProviderName string

const (
	Gemini ProviderName = "gemini"
	Claude ProviderName = "claude"
	OpenAI ProviderName = "openai"
)

// DefaultProvider is used when neither the run nor the project names one.
const DefaultProvider = Gemini

var providerAliases = map[string]ProviderName{
	"gemini":    Gemini,
	"google":    Gemini,
	"claude":    Claude,
	"anthropic": Claude,
	"openai":    OpenAI,
}

// ParseProvider resolves a provider name or one of its aliases.
func ParseProvider(s string) (ProviderName, error) {
	name, ok := providerAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown provider: %s", s)
	}
	return name, nil
}

// Providers lists every supported backend in a stable order.
func Providers() []ProviderName {
	return []ProviderName{Gemini, Claude, OpenAI}
}

func (p ProviderName) String() string { return string(p) }

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// JSON asks backends that support it for a JSON response MIME type.
	JSON bool
}

type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider is a single model backend.
type Provider interface {
	Name() ProviderName
	Generate(ctx context.Context, req Request) (Response, error)
	IsAvailable() bool
}

// Available reports whether p can be called at all. Stages treat a nil or
// unavailable provider as "no credentials configured".
func Available(p Provider) bool {
	return p != nil && p.IsAvailable()
}
