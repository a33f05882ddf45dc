// Package rpc serves the sidecar's line-delimited JSON-RPC 2.0 protocol:
// one request per stdin line, one response or notification per stdout
// line.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/oukeidos/fictra/internal/logger"
)

// maxLineBytes bounds a single request; chapter bodies travel inline.
const maxLineBytes = 64 << 20

// HandlerFunc serves one method. The returned value is encoded as the
// result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Server struct {
	handlers map[string]HandlerFunc

	writeMu sync.Mutex
	out     io.Writer
}

func NewServer(out io.Writer) *Server {
	return &Server{handlers: map[string]HandlerFunc{}, out: out}
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Methods returns the registered method names.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Serve reads requests from in until EOF or ctx is done. Requests run
// concurrently; Serve returns after every in-flight handler has replied.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	var wg conc.WaitGroup
	defer wg.Wait()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading requests: %w", err)
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			wg.Go(func() { s.handleLine(ctx, line) })
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line string) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		logger.Warn("Unparseable request", "error", err)
		s.reply(json.RawMessage("null"), nil, &Error{Code: CodeParseError, Message: "Parse error"})
		return
	}
	if req.JSONRPC != Version || req.Method == "" {
		if !req.IsNotification() {
			s.reply(req.ID, nil, &Error{Code: CodeInvalidRequest, Message: "Invalid Request"})
		}
		return
	}

	result, rpcErr := s.dispatch(ctx, req)
	if req.IsNotification() {
		return
	}
	s.reply(req.ID, result, rpcErr)
}

func (s *Server) dispatch(ctx context.Context, req Request) (result any, rpcErr *Error) {
	h, ok := s.handlers[req.Method]
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler panicked", "method", req.Method, "panic", r, "stack", string(debug.Stack()))
			result, rpcErr = nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	logger.Debug("Handling request", "method", req.Method)
	res, err := h(ctx, req.Params)
	if err != nil {
		logger.Warn("Request failed", "method", req.Method, "error", err)
		return nil, toError(err)
	}
	return res, nil
}

func (s *Server) reply(id json.RawMessage, result any, rpcErr *Error) {
	resp := Response{JSONRPC: Version, ID: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &Error{Code: CodeInternalError, Message: "encoding result: " + err.Error()}
		} else {
			resp.Result = raw
		}
	}
	s.write(resp)
}

// Notify sends a notification to the client.
func (s *Server) Notify(method string, params any) error {
	return s.write(Notification{JSONRPC: Version, Method: method, Params: params})
}

func (s *Server) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode message", "error", err)
		return err
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		logger.Error("Failed to write message", "error", err)
		return err
	}
	return nil
}
