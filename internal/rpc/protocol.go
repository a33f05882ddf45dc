package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oukeidos/fictra/internal/apperrors"
)

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no response.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a server-initiated message without id.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// paramsError marks a request whose params could not be decoded.
type paramsError struct{ err error }

func (e *paramsError) Error() string { return "Invalid params: " + e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

// decode unmarshals params into out. Missing params decode as {}.
func decode(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &paramsError{err: err}
	}
	return nil
}

// decodeAll decodes the same params into several targets, typically an id
// struct and a patch.
func decodeAll(params json.RawMessage, outs ...any) error {
	for _, out := range outs {
		if err := decode(params, out); err != nil {
			return err
		}
	}
	return nil
}

// toError maps a handler error onto a JSON-RPC error object. Validation
// and decoding failures are invalid params; everything else is internal.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var pe *paramsError
	if errors.As(err, &pe) {
		return &Error{Code: CodeInvalidParams, Message: pe.Error()}
	}
	code := CodeInternalError
	kind, ok := apperrors.KindOf(err)
	if ok && kind == apperrors.KindValidation {
		code = CodeInvalidParams
	}
	e := &Error{Code: code, Message: apperrors.PublicMessage(err)}
	if ok {
		e.Data = map[string]string{"kind": string(kind)}
	}
	return e
}
