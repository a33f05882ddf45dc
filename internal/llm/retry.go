package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/logger"
)

type RetryPolicy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
}

// DefaultRetryPolicy makes at most 3 calls, waiting 1s then 2s.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 1 * time.Second,
	MaxDelay:  20 * time.Second,
	Jitter:    250 * time.Millisecond,
}

type retrying struct {
	Provider
	policy RetryPolicy
}

// WithRetry wraps p so that retryable failures (timeouts, connection errors,
// HTTP 429 and 5xx) are retried with exponential backoff. Every other error
// is returned from the first attempt.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	if policy.Attempts <= 1 {
		return p
	}
	return &retrying{Provider: p, policy: policy}
}

func (r *retrying) Generate(ctx context.Context, req Request) (Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := r.Provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		retry, wait := r.policy.decide(ctx, err, attempt)
		if !retry {
			return resp, err
		}
		logger.Warn("LLM call failed, retrying",
			"provider", r.Name(),
			"attempt", attempt,
			"max_attempts", r.policy.Attempts,
			"wait", wait,
			"error", apperrors.PublicMessage(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p RetryPolicy) decide(ctx context.Context, err error, attempt int) (bool, time.Duration) {
	if err == nil || attempt >= p.Attempts {
		return false, 0
	}
	if ctx.Err() != nil {
		return false, 0
	}
	if !apperrors.IsRetryable(err) {
		return false, 0
	}

	backoff := p.BaseDelay << (attempt - 1)
	if apperrors.IsRateLimit(err) {
		backoff *= 2
	}
	if p.MaxDelay > 0 && backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	if p.Jitter > 0 {
		backoff += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return true, backoff
}
