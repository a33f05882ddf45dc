package llm

import (
	"context"
	"sync/atomic"
)

// Meter counts the tokens spent through a provider. A pipeline run wraps
// its provider in a fresh Meter to report total_tokens.
type Meter struct {
	Provider
	input  atomic.Int64
	output atomic.Int64
	calls  atomic.Int64
	model  atomic.Pointer[string]
}

func NewMeter(p Provider) *Meter {
	return &Meter{Provider: p}
}

func (m *Meter) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := m.Provider.Generate(ctx, req)
	m.calls.Add(1)
	m.input.Add(int64(resp.Usage.InputTokens))
	m.output.Add(int64(resp.Usage.OutputTokens))
	if resp.Model != "" {
		m.model.Store(&resp.Model)
	}
	return resp, err
}

func (m *Meter) Usage() Usage {
	return Usage{InputTokens: int(m.input.Load()), OutputTokens: int(m.output.Load())}
}

func (m *Meter) Calls() int { return int(m.calls.Load()) }

// Model returns the model named by the most recent response, if any.
func (m *Meter) Model() string {
	if p := m.model.Load(); p != nil {
		return *p
	}
	return ""
}
