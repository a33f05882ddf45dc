package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
	"google.golang.org/api/googleapi"
)

// classifyError maps a genai failure onto an apperrors kind. Cancellation
// passes through untouched so the pipeline can report it as such.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return llm.ClassifyTransport(llm.Gemini, fmt.Errorf("gemini generate content: %w", err))
	}
	if gerr.Code == http.StatusNotFound {
		return apperrors.New(apperrors.KindBadRequest, "Gemini model not found or not enabled for this key.", err)
	}
	return llm.ClassifyStatus(llm.Gemini, gerr.Code, gerr.Message)
}
