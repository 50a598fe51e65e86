package grader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recur/internal/backend"
	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/retry"
)

// DefaultRubric allocates 40 points to clarity and structure, 40 to relevance
// and 20 to factual correctness.
const DefaultRubric = "You are a strict grader. Score the answer from 0-100 where " +
	"clarity and structure are 40 points, relevance is 40 points, and " +
	"factual correctness is 20 points. "

const (
	// DefaultTemperature is the sampling temperature of grading calls.
	DefaultTemperature = 0.4

	returnOnlyNumber = "\nReturn ONLY the number."
)

// Backend delegates grading to a text-generation backend.
type Backend struct {
	backend     backend.Backend
	rubric      string
	temperature float64
	retry       *retry.Policy
	logger      *logging.Logger
}

// Option configures a Backend grader.
type Option func(*Backend)

// WithRubric replaces the default rubric. Empty values are ignored.
func WithRubric(rubric string) Option {
	return func(b *Backend) {
		if rubric != "" {
			b.rubric = rubric
		}
	}
}

// WithTemperature sets the grading temperature.
func WithTemperature(t float64) Option {
	return func(b *Backend) { b.temperature = t }
}

// WithRetry sets the retry policy around grading calls.
func WithRetry(p *retry.Policy) Option {
	return func(b *Backend) { b.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// NewBackend returns a grader that asks b for a score.
func NewBackend(b backend.Backend, opts ...Option) *Backend {
	g := &Backend{
		backend:     b,
		rubric:      DefaultRubric,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger)
	return g
}

// Rubric returns the rubric in use.
func (g *Backend) Rubric() string {
	return g.rubric
}

// Request renders the grading request for an answer.
func (g *Backend) Request(answer, prompt string) string {
	return fmt.Sprintf("User prompt:\n%s\n\nAnswer to grade:\n%s\n\n%s%s", prompt, answer, g.rubric, returnOnlyNumber)
}

// Score asks the backend for a grade. A reply without a number falls back to
// the heuristic score. Only an exhausted backend failure is returned.
func (g *Backend) Score(ctx context.Context, answer, prompt string) (float64, error) {
	ctx = backend.WithOperation(ctx, backend.OpGrade)
	req := g.Request(answer, prompt)

	reply, err := retry.Do(ctx, g.retry, backend.OpGrade, func(ctx context.Context) (string, error) {
		return g.backend.Generate(ctx, req, g.temperature)
	})
	if err != nil {
		return 0, err
	}

	score, err := ParseScore(reply)
	if err != nil {
		fallback := HeuristicScore(answer)
		g.logger.Debug(ctx, "grading reply not numeric, using heuristic",
			zap.Error(err),
			zap.Float64("score", fallback),
		)
		return fallback, nil
	}
	return score, nil
}
