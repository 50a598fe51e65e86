package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/recur/internal/record"
)

// Phase is a state of the run state machine.
type Phase string

const (
	// PhaseInit validates input and prepares the run.
	PhaseInit Phase = "init"

	// PhaseBaseGenerated holds a scored baseline that seeds the current best.
	PhaseBaseGenerated Phase = "base_generated"

	// PhaseRound runs one refinement round. It repeats once per round.
	PhaseRound Phase = "round"

	// PhaseAggregated holds every graded record of the run.
	PhaseAggregated Phase = "aggregated"

	// PhaseSelected holds the final record.
	PhaseSelected Phase = "selected"

	// PhaseDone is the terminal success state.
	PhaseDone Phase = "done"

	// PhaseFailed is the terminal failure state.
	PhaseFailed Phase = "failed"
)

// AllPhases returns the success path in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseInit, PhaseBaseGenerated, PhaseRound, PhaseAggregated, PhaseSelected, PhaseDone}
}

// IsTerminal reports whether no transition leaves p.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

var transitions = map[Phase][]Phase{
	PhaseInit:          {PhaseBaseGenerated},
	PhaseBaseGenerated: {PhaseRound, PhaseAggregated},
	PhaseRound:         {PhaseRound, PhaseAggregated},
	PhaseAggregated:    {PhaseSelected},
	PhaseSelected:      {PhaseDone},
}

// CanTransition checks whether the machine may move from one phase to the next.
func CanTransition(from, to Phase) error {
	if from.IsTerminal() {
		return fmt.Errorf("cannot transition from terminal phase %s", from)
	}
	if to == PhaseFailed {
		return nil
	}
	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("invalid current phase: %s", from)
	}
	for _, p := range next {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", from, to)
}

// ErrPromptRequired is returned before any backend call when the prompt is empty.
var ErrPromptRequired = errors.New("prompt is required")

// RunError is an unrecovered failure. The run produced no result.
type RunError struct {
	RunID string
	Phase Phase
	// Round is the 1-based round that failed, or 0 outside the rounds.
	Round int
	Err   error
}

func (e *RunError) Error() string {
	if e.Round > 0 {
		return fmt.Sprintf("run %s failed in %s %d: %v", e.RunID, e.Phase, e.Round, e.Err)
	}
	return fmt.Sprintf("run %s failed in %s: %v", e.RunID, e.Phase, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Result is a completed run.
type Result struct {
	RunID  string
	Prompt string
	// Final is the selected record.
	Final *record.Record
	// Records holds every graded record in generation order:
	// the base followed by each round's alternatives in index order.
	Records  []*record.Record
	Rounds   int
	Alts     int
	Duration time.Duration
}

// BaseGenerator produces the unscored baseline.
type BaseGenerator interface {
	Generate(ctx context.Context, prompt string) (*record.Record, error)
}

// AlternativeGenerator produces one unscored alternative.
type AlternativeGenerator interface {
	Generate(ctx context.Context, prompt, currentBest string, index int) (*record.Record, error)
}

// SelectFunc picks the final record from the full collection.
type SelectFunc func(records []*record.Record) (*record.Record, error)
