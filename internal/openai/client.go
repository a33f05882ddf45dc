// Package openai implements llm.Provider on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/httpclient"
	"github.com/oukeidos/fictra/internal/llm"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "gpt-4o"

type Client struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Client)(nil)

// NewClient builds a client. The SDK's own retries are disabled because
// llm.WithRetry owns the retry policy. Extra options are appended last so
// tests can point the client at a local server.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.New(apperrors.KindAuth, "No API key provided for openai", nil)
	}
	if model == "" {
		model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpclient.GetDefaultClient()),
	}
	return &Client{
		client: oai.NewClient(append(base, opts...)...),
		model:  model,
	}, nil
}

func (c *Client) Name() llm.ProviderName { return llm.OpenAI }

func (c *Client) IsAvailable() bool { return c != nil }

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	params := oai.ChatCompletionNewParams{
		Model:       oai.ChatModel(c.model),
		Messages:    messages,
		Temperature: oai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, apperrors.New(apperrors.KindMalformedOutput, "OpenAI returned no choices.", nil)
	}

	slog.Debug("OpenAI API Response",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return llm.Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 404 && isModelNotFound(apiErr) {
			return apperrors.New(apperrors.KindBadRequest,
				"The model does not exist or you do not have access to it.",
				fmt.Errorf("openai: %w", err))
		}
		return llm.ClassifyStatus(llm.OpenAI, apiErr.StatusCode, apiErr.Message)
	}
	return llm.ClassifyTransport(llm.OpenAI, err)
}

func isModelNotFound(e *oai.Error) bool {
	needle := strings.ToLower(e.Code + " " + e.Type + " " + e.Message)
	return strings.Contains(needle, "model_not_found") ||
		strings.Contains(needle, "does not exist or you do not have access to it")
}
