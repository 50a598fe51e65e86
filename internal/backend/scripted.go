package backend

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by Scripted when no reply is left.
var ErrScriptExhausted = errors.New("scripted backend has no reply left")

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// Call is one recorded invocation of a Scripted backend.
type Call struct {
	Prompt      string
	Temperature float64
}

// Scripted is a test double that replays replies in call order, or answers
// through Respond when it is set. It is safe for concurrent use.
type Scripted struct {
	// Respond, when set, takes precedence over the queued replies.
	Respond func(prompt string, temperature float64) (string, error)

	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewScripted returns a backend that replays replies in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Generate records the call and returns the next scripted outcome.
func (s *Scripted) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Temperature: temperature})
	respond := s.Respond
	var next *Reply
	if respond == nil && len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		next = &r
	}
	s.mu.Unlock()

	if respond != nil {
		return respond(prompt, temperature)
	}
	if next == nil {
		return "", ErrScriptExhausted
	}
	return next.Text, next.Err
}

// Push queues more replies.
func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Calls returns a copy of the recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Provider returns "scripted".
func (s *Scripted) Provider() string {
	return "scripted"
}
