// Package httpclient provides the shared HTTP client used by raw-HTTP model
// backends.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a single model call. Long CoT batches can take
	// minutes to generate.
	DefaultTimeout = 5 * time.Minute
	// MaxResponseBytes caps response bodies read into memory.
	MaxResponseBytes = 8 * 1024 * 1024

	MaxIdleConns          = 50
	MaxIdleConnsPerHost   = 10
	IdleConnTimeout       = 90 * time.Second
	TLSHandshakeTimeout   = 30 * time.Second
	ExpectContinueTimeout = 2 * time.Second
)

// ErrBodyTooLarge is returned when a model response exceeds MaxResponseBytes.
var ErrBodyTooLarge = errors.New("response body too large")

var (
	mu             sync.RWMutex
	defaultClient  *http.Client
	defaultOnce    sync.Once
	overrideClient *http.Client
)

// NewClient returns a new http.Client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          MaxIdleConns,
			MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
			IdleConnTimeout:       IdleConnTimeout,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ExpectContinueTimeout: ExpectContinueTimeout,
		},
	}
}

// GetDefaultClient returns the process-wide client.
func GetDefaultClient() *http.Client {
	mu.RLock()
	o := overrideClient
	mu.RUnlock()
	if o != nil {
		return o
	}
	defaultOnce.Do(func() {
		defaultClient = NewClient(DefaultTimeout)
	})
	return defaultClient
}

// SetDefaultClientForTesting overrides the process-wide client and returns
// a function restoring the previous one.
func SetDefaultClientForTesting(client *http.Client) func() {
	mu.Lock()
	prev := overrideClient
	overrideClient = client
	mu.Unlock()
	return func() {
		mu.Lock()
		overrideClient = prev
		mu.Unlock()
	}
}

// PostJSON marshals payload, posts it to url with the given headers and
// returns the bounded response body. Non-2xx statuses are not errors here;
// callers classify them from resp.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, *http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return DoAndRead(client, req)
}

// DoAndRead performs req and returns the whole body, bounded by
// MaxResponseBytes. The body is always closed.
func DoAndRead(client *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	tooLarge := fmt.Errorf("%w (limit %d bytes)", ErrBodyTooLarge, MaxResponseBytes)
	if resp.ContentLength > MaxResponseBytes {
		return nil, resp, tooLarge
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read model response: %w", err)
	}
	if int64(len(body)) > MaxResponseBytes {
		return nil, resp, tooLarge
	}
	return body, resp, nil
}
