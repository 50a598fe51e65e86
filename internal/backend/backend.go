// Package backend defines the text-generation capability used for answers and
// backend-delegated grading, plus its providers and decorators.
//
// Everything downstream depends only on the Backend interface. Concrete
// providers are bound once at startup by FromConfig.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrBackend matches any *Error with errors.Is.
var ErrBackend = errors.New("backend call failed")

// Backend generates text for a prompt. Implementations must be safe for
// concurrent use and for repeated invocation of the same prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Func adapts a function to the Backend interface.
type Func func(ctx context.Context, prompt string, temperature float64) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}

// Named is implemented by backends that report their provider.
type Named interface {
	Provider() string
}

// ProviderOf returns b's provider name, or "custom".
func ProviderOf(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Provider()
	}
	return "custom"
}

// Error is a failed backend call.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the provider error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBackend.
func (e *Error) Is(target error) bool {
	return target == ErrBackend
}

type opKey struct{}

// Operation labels used on spans, metrics, and errors.
const (
	OpGenerate = "generate"
	OpGrade    = "grade"
)

// WithOperation tags ctx with the logical operation a call serves.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

// OperationFromContext returns the operation tag, defaulting to OpGenerate.
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(opKey{}).(string); ok && op != "" {
		return op
	}
	return OpGenerate
}
