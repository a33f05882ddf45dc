// Package metadata holds the model catalog: labels and per-million-token
// prices used to estimate what a pipeline run cost.
package metadata

import "github.com/oukeidos/fictra/internal/llm"

type Model struct {
	Provider         llm.ProviderName
	ID               string
	Label            string
	InputPerMillion  float64
	OutputPerMillion float64
}

var Models = []Model{
	{Provider: llm.Gemini, ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash", InputPerMillion: 0.10, OutputPerMillion: 0.40},
	{Provider: llm.Gemini, ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", InputPerMillion: 0.30, OutputPerMillion: 2.50},
	{Provider: llm.Gemini, ID: "gemini-2.5-pro", Label: "Gemini 2.5 Pro", InputPerMillion: 1.25, OutputPerMillion: 10.00},
	{Provider: llm.Claude, ID: "claude-sonnet-4-5-20250929", Label: "Claude Sonnet 4.5", InputPerMillion: 3.00, OutputPerMillion: 15.00},
	{Provider: llm.Claude, ID: "claude-haiku-4-5-20251001", Label: "Claude Haiku 4.5", InputPerMillion: 1.00, OutputPerMillion: 5.00},
	{Provider: llm.OpenAI, ID: "gpt-4o", Label: "GPT-4o", InputPerMillion: 2.50, OutputPerMillion: 10.00},
	{Provider: llm.OpenAI, ID: "gpt-4o-mini", Label: "GPT-4o mini", InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// fallback prices apply to models missing from the catalog.
var fallback = map[llm.ProviderName]Model{
	llm.Gemini: {Provider: llm.Gemini, ID: "default", Label: "Default Gemini", InputPerMillion: 1.25, OutputPerMillion: 10.00},
	llm.Claude: {Provider: llm.Claude, ID: "default", Label: "Default Claude", InputPerMillion: 3.00, OutputPerMillion: 15.00},
	llm.OpenAI: {Provider: llm.OpenAI, ID: "default", Label: "Default OpenAI", InputPerMillion: 2.50, OutputPerMillion: 10.00},
}

// ModelIDs lists the catalog models of one provider.
func ModelIDs(p llm.ProviderName) []string {
	var ids []string
	for _, m := range Models {
		if m.Provider == p {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Pricing returns the catalog entry for modelID, or the provider's
// fallback with ok=false. Unknown providers price at zero.
func Pricing(p llm.ProviderName, modelID string) (Model, bool) {
	for _, m := range Models {
		if m.Provider == p && m.ID == modelID {
			return m, true
		}
	}
	return fallback[p], false
}

// EstimateCost returns the USD cost of usage. Reasoning tokens are already
// counted as output by every backend.
func EstimateCost(p llm.ProviderName, modelID string, usage llm.Usage) float64 {
	m, _ := Pricing(p, modelID)
	return float64(usage.InputTokens)/1_000_000*m.InputPerMillion +
		float64(usage.OutputTokens)/1_000_000*m.OutputPerMillion
}
