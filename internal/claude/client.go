// Package claude implements llm.Provider against the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/httpclient"
	"github.com/oukeidos/fictra/internal/llm"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	APIVersion       = "2023-06-01"
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultMaxTokens = 4096
)

// RequestData is the Messages API request body.
type RequestData struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseData is the subset of the Messages API response that is used.
type ResponseData struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
	Usage      Usage          `json:"usage"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
}

var _ llm.Provider = (*Client)(nil)

func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.New(apperrors.KindAuth, "No API key provided for claude", nil)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{apiKey: apiKey, model: model, baseURL: defaultBaseURL}, nil
}

func (c *Client) Name() llm.ProviderName { return llm.Claude }

func (c *Client) IsAvailable() bool { return c != nil && c.apiKey != "" }

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	payload := RequestData{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": APIVersion,
	}
	body, resp, err := httpclient.PostJSON(ctx, httpclient.GetDefaultClient(), c.baseURL+"/messages", headers, payload)
	if err != nil {
		return llm.Response{}, llm.ClassifyTransport(llm.Claude, err)
	}
	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		_ = json.Unmarshal(body, &env)
		return llm.Response{}, llm.ClassifyStatus(llm.Claude, resp.StatusCode, strings.TrimSpace(env.Error.Type+" "+env.Error.Message))
	}

	var result ResponseData
	if err := json.Unmarshal(body, &result); err != nil {
		return llm.Response{}, apperrors.New(apperrors.KindMalformedOutput,
			"Claude response format was invalid.",
			fmt.Errorf("failed to decode response: %w", err))
	}

	slog.Debug("Claude API Response", "status", resp.Status, "stop_reason", result.StopReason, "response_id", result.ID)

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := result.Model
	if model == "" {
		model = c.model
	}
	return llm.Response{
		Text:  text.String(),
		Model: model,
		Usage: llm.Usage{InputTokens: result.Usage.InputTokens, OutputTokens: result.Usage.OutputTokens},
	}, nil
}
