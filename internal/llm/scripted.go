package llm

import (
	"context"
	"errors"
	"sync"
)

// Reply is one canned outcome of a Scripted call.
type Reply struct {
	Text  string
	Err   error
	Usage Usage
}

// Scripted is a Provider test double. Replies are consumed in order; when
// Handler is set it takes precedence and may inspect the request.
type Scripted struct {
	mu          sync.Mutex
	Replies     []Reply
	Handler     func(call int, req Request) Reply
	Unavailable bool
	calls       []Request
}

var ErrScriptExhausted = errors.New("scripted provider has no replies left")

func (s *Scripted) Name() ProviderName { return "scripted" }

func (s *Scripted) IsAvailable() bool { return !s.Unavailable }

func (s *Scripted) Generate(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := len(s.calls)
	s.calls = append(s.calls, req)

	var r Reply
	switch {
	case s.Handler != nil:
		r = s.Handler(call, req)
	case len(s.Replies) > 0:
		r = s.Replies[0]
		s.Replies = s.Replies[1:]
	default:
		return Response{}, ErrScriptExhausted
	}
	if r.Err != nil {
		return Response{}, r.Err
	}
	return Response{Text: r.Text, Model: "scripted", Usage: r.Usage}, nil
}

// Calls returns a copy of the requests received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
