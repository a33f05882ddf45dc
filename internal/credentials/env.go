package credentials

import (
	"strings"

	"github.com/oukeidos/fictra/internal/llm"
)

// envVars lists, per provider, the variables consulted in order.
var envVars = map[llm.ProviderName][]string{
	llm.Gemini: {"FT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	llm.Claude: {"FT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	llm.OpenAI: {"FT_OPENAI_API_KEY", "OPENAI_API_KEY"},
}

// EnvSource describes where a provider key was found.
type EnvSource struct {
	Provider llm.ProviderName
	Variable string
}

// FromEnv collects provider keys using lookup (normally os.LookupEnv).
func FromEnv(lookup func(string) (string, bool)) (map[string]string, []EnvSource) {
	keys := make(map[string]string)
	var sources []EnvSource
	for _, p := range llm.Providers() {
		for _, v := range envVars[p] {
			val, ok := lookup(v)
			if !ok || strings.TrimSpace(val) == "" {
				continue
			}
			keys[string(p)] = strings.TrimSpace(val)
			sources = append(sources, EnvSource{Provider: p, Variable: v})
			break
		}
	}
	return keys, sources
}

// EnvVars returns the variables consulted for p.
func EnvVars(p llm.ProviderName) []string {
	return append([]string(nil), envVars[p]...)
}
