package pipeline

import (
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/language"
	"github.com/oukeidos/fictra/internal/llm"
)

// DefaultTargetLang is used when neither the run nor the project names a
// target language.
const DefaultTargetLang = "en"

// Options holds the per-run settings supplied by the caller.
type Options struct {
	ChapterID  int64
	TargetLang string
	// CoT selects scene-reasoning batches over direct translation.
	CoT bool
	// Provider overrides the project's provider when set.
	Provider string
}

// Normalize canonicalizes codes and returns notes describing adjustments.
func (o Options) Normalize() (Options, []string) {
	var notes []string
	if o.TargetLang != "" {
		norm := language.Normalize(o.TargetLang)
		if norm != o.TargetLang {
			notes = append(notes, fmt.Sprintf("target language normalized from %q to %q", o.TargetLang, norm))
		}
		o.TargetLang = norm
	}
	o.Provider = strings.ToLower(strings.TrimSpace(o.Provider))
	return o, notes
}

// Validate checks if the options are usable.
func (o Options) Validate() error {
	if o.ChapterID <= 0 {
		return apperrors.Validation(fmt.Sprintf("chapter_id must be greater than 0, got %d", o.ChapterID))
	}
	if o.Provider != "" {
		if _, err := llm.ParseProvider(o.Provider); err != nil {
			return apperrors.New(apperrors.KindValidation, err.Error(), err)
		}
	}
	return nil
}

// withDefaults fills unset options from the project settings.
func (o Options) withDefaults(projectTarget, projectProvider string) (Options, llm.ProviderName) {
	if o.TargetLang == "" {
		o.TargetLang = language.Normalize(projectTarget)
	}
	if o.TargetLang == "" {
		o.TargetLang = DefaultTargetLang
	}
	name := llm.DefaultProvider
	for _, candidate := range []string{o.Provider, projectProvider} {
		if candidate == "" {
			continue
		}
		if parsed, err := llm.ParseProvider(candidate); err == nil {
			name = parsed
			break
		}
	}
	o.Provider = string(name)
	return o, name
}
