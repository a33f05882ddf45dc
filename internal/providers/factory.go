// Package providers builds concrete llm.Provider values from a provider
// name and the caller's credentials.
package providers

import (
	"context"
	"fmt"
	"io"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/claude"
	"github.com/oukeidos/fictra/internal/gemini"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/openai"
)

type Options struct {
	// Models overrides the default model per provider.
	Models map[llm.ProviderName]string
	// QPS limits calls per provider instance; zero disables limiting.
	QPS   float64
	Retry llm.RetryPolicy
}

func DefaultOptions() Options {
	return Options{QPS: 3, Retry: llm.DefaultRetryPolicy}
}

// Factory creates a ready-to-use provider and a release function that must
// be called when the caller is done with it.
type Factory func(ctx context.Context, name llm.ProviderName, keys map[string]string) (llm.Provider, func(), error)

// NewFactory returns a Factory bound to opts.
func NewFactory(opts Options) Factory {
	return func(ctx context.Context, name llm.ProviderName, keys map[string]string) (llm.Provider, func(), error) {
		return New(ctx, name, keys, opts)
	}
}

// New builds the backend for name, wrapped with rate limiting and retry.
func New(ctx context.Context, name llm.ProviderName, keys map[string]string, opts Options) (llm.Provider, func(), error) {
	key := keys[string(name)]
	if key == "" {
		return nil, func() {}, apperrors.New(apperrors.KindAuth, fmt.Sprintf("No API key provided for %s", name), nil)
	}
	model := opts.Models[name]

	var (
		p   llm.Provider
		err error
	)
	switch name {
	case llm.Gemini:
		p, err = gemini.NewClient(ctx, key, model)
	case llm.Claude:
		p, err = claude.NewClient(key, model)
	case llm.OpenAI:
		p, err = openai.NewClient(key, model)
	default:
		return nil, func() {}, apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("unknown provider: %s", name), nil)
	}
	if err != nil {
		return nil, func() {}, err
	}

	release := func() {}
	if c, ok := p.(io.Closer); ok {
		release = func() { _ = c.Close() }
	}
	return llm.WithRetry(llm.Limited(p, opts.QPS), opts.Retry), release, nil
}
