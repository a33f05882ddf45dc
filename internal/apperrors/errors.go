package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindTransient       Kind = "transient"
	KindRateLimit       Kind = "rate_limit"
	KindAuth            Kind = "auth"
	KindBadRequest      Kind = "bad_request"
	KindValidation      Kind = "validation"
	KindMalformedOutput Kind = "malformed_output"
	KindNotFound        Kind = "not_found"
	KindCancelled       Kind = "cancelled"
)

// ErrCancelled is returned by every stage that observes a cancellation request.
var ErrCancelled = &Error{Kind: KindCancelled, SafeMessage: "Pipeline cancelled by user"}

type Error struct {
	Kind Kind
	// SafeMessage is shown to the host and written to logs.
	SafeMessage string
	// Cause keeps the underlying error for errors.Is/As matching.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key and permissions."
	case KindBadRequest:
		return "Request rejected by upstream API."
	case KindValidation:
		return "Invalid input."
	case KindMalformedOutput:
		return "LLM did not return valid JSON"
	case KindNotFound:
		return "Not found."
	case KindCancelled:
		return ErrCancelled.SafeMessage
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func RateLimit(err error) error {
	return New(KindRateLimit, "", err)
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func BadRequest(err error) error {
	return New(KindBadRequest, "", err)
}

func Validation(msg string) error {
	return New(KindValidation, msg, nil)
}

// Malformed wraps a decode failure of model output. The message carries the
// decoder detail because hosts surface it verbatim.
func Malformed(err error) error {
	msg := defaultSafeMessage(KindMalformedOutput)
	if err != nil {
		msg += ": " + err.Error()
	}
	return New(KindMalformedOutput, msg, err)
}

func NotFound(msg string) error {
	return New(KindNotFound, msg, nil)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// IsRetryable reports whether an LLM call failing with err may be attempted
// again. Only connection/timeout failures, HTTP 429 and HTTP 5xx qualify.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransient || e.Kind == KindRateLimit
}

func IsRateLimit(err error) bool {
	return Is(err, KindRateLimit)
}

func IsCancelled(err error) bool {
	return Is(err, KindCancelled)
}
