// Package rounds decides how many refinement rounds a run performs.
package rounds

import "strings"

// Defaults for the word-count heuristic.
const (
	DefaultPerRound = 40
	DefaultMax      = 5
)

// Planner maps a prompt to a round count. Implementations must be pure.
type Planner interface {
	Rounds(prompt string) int
}

// Func adapts a function to Planner.
type Func func(prompt string) int

// Rounds calls f.
func (f Func) Rounds(prompt string) int {
	return f(prompt)
}

// Heuristic plans one round plus one more for every PerRound words, capped
// at Max. The result is at least 1 and non-decreasing in word count.
type Heuristic struct {
	PerRound int
	Max      int
}

// NewHeuristic returns a Heuristic, using defaults for non-positive values.
func NewHeuristic(perRound, limit int) Heuristic {
	if perRound <= 0 {
		perRound = DefaultPerRound
	}
	if limit <= 0 {
		limit = DefaultMax
	}
	return Heuristic{PerRound: perRound, Max: limit}
}

// Rounds returns 1 + words/PerRound, capped at Max.
func (h Heuristic) Rounds(prompt string) int {
	per, limit := h.PerRound, h.Max
	if per <= 0 {
		per = DefaultPerRound
	}
	if limit <= 0 {
		limit = DefaultMax
	}
	return min(1+len(strings.Fields(prompt))/per, limit)
}

// Resolve returns the override when present, otherwise the planner's value
// floored at 1. A zero override is honored and means no refinement rounds.
func Resolve(p Planner, prompt string, override *int) int {
	if override != nil {
		if *override < 0 {
			return 0
		}
		return *override
	}
	if p == nil {
		p = NewHeuristic(0, 0)
	}
	n := p.Rounds(prompt)
	if n < 1 {
		n = 1
	}
	return n
}
