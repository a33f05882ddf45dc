package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oukeidos/fictra/internal/apperrors"
)

// ClassifyStatus maps an HTTP failure from a provider API onto an error kind:
// 429 is a rate limit, 5xx is transient, 401/403 is auth and any other 4xx
// is a permanent bad request.
func ClassifyStatus(provider ProviderName, status int, detail string) error {
	cause := fmt.Errorf("%s status=%d detail=%s", provider, status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimit, fmt.Sprintf("%s rate limit exceeded (429).", provider), cause)
	case status >= 500:
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("%s server error (%d).", provider, status), cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuth, fmt.Sprintf("%s authentication failed (%d).", provider, status), cause)
	default:
		return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("%s API error (%d): %s", provider, status, detail), cause)
	}
}

// ClassifyTransport handles failures that never produced an HTTP status.
// Caller cancellation is passed through untouched so that retry loops stop.
func ClassifyTransport(provider ProviderName, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.New(apperrors.KindTransient,
		fmt.Sprintf("%s request failed due to a temporary network error.", provider),
		fmt.Errorf("%s request failed: %w", provider, err))
}
