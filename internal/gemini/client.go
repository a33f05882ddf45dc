// Package gemini implements llm.Provider on top of the Google Generative AI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/httpclient"
	"github.com/oukeidos/fictra/internal/llm"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.0-flash"

// Client handles communication with the Gemini API.
type Client struct {
	client    *genai.Client
	modelName string
}

var _ llm.Provider = (*Client)(nil)

// NewClient creates a new Gemini client. An empty model selects DefaultModel.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.New(apperrors.KindAuth, "No API key provided for gemini", nil)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	// option.WithHTTPClient is avoided: it bypasses the SDK's API-key header
	// injection. Timeouts are enforced through the context in Generate.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, modelName: modelName}, nil
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Name() llm.ProviderName { return llm.Gemini }

func (c *Client) IsAvailable() bool { return c != nil && c.client != nil }

// Generate sends one prompt. A fresh GenerativeModel is configured per call
// so that concurrent runs with different settings never share state.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return llm.Response{}, classifyError(err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return llm.Response{}, apperrors.New(apperrors.KindMalformedOutput, "Gemini returned no text.", err)
	}

	out := llm.Response{Text: text, Model: c.modelName}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
