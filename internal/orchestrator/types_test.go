package orchestrator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPhases(t *testing.T) {
	phases := AllPhases()
	require.Len(t, phases, 6)
	assert.Equal(t, PhaseInit, phases[0])
	assert.Equal(t, PhaseDone, phases[len(phases)-1])
	assert.NotContains(t, phases, PhaseFailed)
}

func TestPhase_IsTerminal(t *testing.T) {
	assert.True(t, PhaseDone.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())
	for _, p := range []Phase{PhaseInit, PhaseBaseGenerated, PhaseRound, PhaseAggregated, PhaseSelected} {
		assert.False(t, p.IsTerminal(), p)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseInit, PhaseBaseGenerated, true},
		{PhaseBaseGenerated, PhaseRound, true},
		{PhaseBaseGenerated, PhaseAggregated, true},
		{PhaseRound, PhaseRound, true},
		{PhaseRound, PhaseAggregated, true},
		{PhaseAggregated, PhaseSelected, true},
		{PhaseSelected, PhaseDone, true},

		{PhaseInit, PhaseRound, false},
		{PhaseBaseGenerated, PhaseSelected, false},
		{PhaseRound, PhaseBaseGenerated, false},
		{PhaseAggregated, PhaseDone, false},
		{PhaseDone, PhaseInit, false},
		{PhaseFailed, PhaseFailed, false},
		{Phase("bogus"), PhaseDone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCanTransition_FailedFromAnyNonTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseInit, PhaseBaseGenerated, PhaseRound, PhaseAggregated, PhaseSelected} {
		assert.NoError(t, CanTransition(p, PhaseFailed), p)
	}
	assert.Error(t, CanTransition(PhaseDone, PhaseFailed))
}

func TestRunError(t *testing.T) {
	cause := errors.New("quota exceeded")

	err := &RunError{RunID: "r1", Phase: PhaseRound, Round: 2, Err: cause}
	assert.Equal(t, "run r1 failed in round 2: quota exceeded", err.Error())
	assert.ErrorIs(t, err, cause)

	err = &RunError{RunID: "r1", Phase: PhaseInit, Err: cause}
	assert.Equal(t, "run r1 failed in init: quota exceeded", err.Error())
}

func TestEvent_JSONKeepsZeroScores(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventRecordScored, RunID: "r1", Agent: "alt_0", Score: 0})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "score")
	assert.Equal(t, 0.0, fields["score"])
	assert.Contains(t, fields, "best_score")
}
