// Package grader assigns 0-100 scores to answers.
//
// Two strategies exist. Heuristic scoring is pure and needs no backend: it
// rewards length and lexical diversity with diminishing returns. Backend
// scoring asks the text-generation backend to grade the answer against a
// rubric and falls back to the heuristic when the reply holds no number.
package grader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/recur/internal/record"
)

const (
	// MaxScore is the upper bound of every score.
	MaxScore = 100.0

	wordWeight     = 0.6
	distinctWeight = 0.4
)

// ErrNoScore is returned by ParseScore when a reply contains no numeric token.
var ErrNoScore = errors.New("grading reply contains no numeric token")

// Grader scores an answer to a prompt.
type Grader interface {
	Score(ctx context.Context, answer, prompt string) (float64, error)
}

// Func adapts a plain function to Grader.
type Func func(ctx context.Context, answer, prompt string) (float64, error)

// Score calls f.
func (f Func) Score(ctx context.Context, answer, prompt string) (float64, error) {
	return f(ctx, answer, prompt)
}

// Heuristic grades answers without calling a backend.
type Heuristic struct{}

// Score returns HeuristicScore(answer).
func (Heuristic) Score(_ context.Context, answer, _ string) (float64, error) {
	return HeuristicScore(answer), nil
}

// HeuristicScore computes 0.6*sqrt(words) + 0.4*sqrt(distinct words), capped
// at MaxScore. Words are whitespace separated. Empty text scores 0.
func HeuristicScore(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	distinct := make(map[string]struct{}, len(words))
	for _, w := range words {
		distinct[w] = struct{}{}
	}

	score := wordWeight*math.Sqrt(float64(len(words))) + distinctWeight*math.Sqrt(float64(len(distinct)))
	return math.Min(MaxScore, score)
}

// ParseScore returns the first whitespace-separated token made only of ASCII
// digits, clamped to [0,100].
func ParseScore(reply string) (float64, error) {
	for _, tok := range strings.Fields(reply) {
		if !isDigits(tok) {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			continue
		}
		return math.Min(MaxScore, v), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrNoScore, truncate(reply, 80))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Grade scores r with g and stores the score on the record.
func Grade(ctx context.Context, g Grader, r *record.Record, prompt string) (float64, error) {
	score, err := g.Score(ctx, r.Text(), prompt)
	if err != nil {
		return 0, err
	}
	if err := r.SetScore(score); err != nil {
		return 0, err
	}
	return score, nil
}
