package providers

import (
	"context"
	"testing"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
)

func TestNew_MissingKey(t *testing.T) {
	for _, name := range llm.Providers() {
		t.Run(string(name), func(t *testing.T) {
			_, release, err := New(context.Background(), name, map[string]string{}, DefaultOptions())
			defer release()
			if !apperrors.Is(err, apperrors.KindAuth) {
				t.Fatalf("err = %v, want auth", err)
			}
			want := "No API key provided for " + string(name)
			if err.Error() != want {
				t.Fatalf("message = %q, want %q", err.Error(), want)
			}
		})
	}
}

func TestNew_BuildsNamedBackend(t *testing.T) {
	keys := map[string]string{"claude": "sk-ant-x", "openai": "sk-x"}
	for _, name := range []llm.ProviderName{llm.Claude, llm.OpenAI} {
		t.Run(string(name), func(t *testing.T) {
			p, release, err := New(context.Background(), name, keys, DefaultOptions())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer release()
			if p.Name() != name {
				t.Fatalf("Name() = %q, want %q", p.Name(), name)
			}
			if !p.IsAvailable() {
				t.Fatalf("expected provider to be available")
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), "mistral", map[string]string{"mistral": "k"}, DefaultOptions())
	if !apperrors.Is(err, apperrors.KindBadRequest) {
		t.Fatalf("err = %v", err)
	}
}
