// Package generator produces unscored records from the backend.
//
// Generators have one side effect, the backend call. They never touch run
// state; the orchestrator owns the records they return.
package generator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/recur/internal/backend"
	"github.com/fyrsmithlabs/recur/internal/record"
	"github.com/fyrsmithlabs/recur/internal/retry"
)

// DefaultTemperature is the sampling temperature when none is configured.
const DefaultTemperature = 0.4

// AlternativePrompt renders the request for an alternative to the current best.
func AlternativePrompt(prompt, currentBest string) string {
	return fmt.Sprintf("%s\n\nCurrent best answer:\n%s\n\nGenerate an alternative that may be better.", prompt, currentBest)
}

// Base produces the baseline answer from the raw prompt.
type Base struct {
	Backend     backend.Backend
	Temperature float64
	Retry       *retry.Policy
}

// Generate calls the backend with prompt and returns a record tagged "base".
func (g *Base) Generate(ctx context.Context, prompt string) (*record.Record, error) {
	text, err := call(ctx, g.Backend, g.Retry, prompt, g.Temperature)
	if err != nil {
		return nil, err
	}
	return record.Base(text), nil
}

// Alternative produces a competing answer seeded with the current best.
type Alternative struct {
	Backend     backend.Backend
	Temperature float64
	Retry       *retry.Policy
}

// Generate returns a record tagged alt_<index>.
func (g *Alternative) Generate(ctx context.Context, prompt, currentBest string, index int) (*record.Record, error) {
	text, err := call(ctx, g.Backend, g.Retry, AlternativePrompt(prompt, currentBest), g.Temperature)
	if err != nil {
		return nil, err
	}
	return record.Alternative(text, index), nil
}

func call(ctx context.Context, b backend.Backend, p *retry.Policy, prompt string, temperature float64) (string, error) {
	if b == nil {
		return "", fmt.Errorf("generator has no backend")
	}
	ctx = backend.WithOperation(ctx, backend.OpGenerate)
	return retry.Do(ctx, p, backend.OpGenerate, func(ctx context.Context) (string, error) {
		return b.Generate(ctx, prompt, temperature)
	})
}
