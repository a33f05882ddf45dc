package llm

import (
	"context"

	"golang.org/x/time/rate"
)

type limited struct {
	Provider
	limiter *rate.Limiter
}

// Limited spaces calls to p at no more than qps per second. A non-positive
// qps disables limiting.
func Limited(p Provider, qps float64) Provider {
	if qps <= 0 {
		return p
	}
	return &limited{Provider: p, limiter: rate.NewLimiter(rate.Limit(qps), 1)}
}

func (l *limited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return l.Provider.Generate(ctx, req)
}
