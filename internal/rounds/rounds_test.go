package rounds

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func TestHeuristic_Rounds(t *testing.T) {
	h := NewHeuristic(0, 0)

	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{"empty", "", 1},
		{"short", "Say hi", 1},
		{"39 words", words(39), 1},
		{"40 words", words(40), 2},
		{"120 words", words(120), 4},
		{"capped", words(10000), DefaultMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Rounds(tt.prompt))
		})
	}
}

func TestHeuristic_MonotonicWithFloor(t *testing.T) {
	h := Heuristic{PerRound: 3, Max: 10}
	prev := 0
	for n := 0; n < 50; n++ {
		got := h.Rounds(words(n))
		assert.GreaterOrEqual(t, got, 1)
		assert.GreaterOrEqual(t, got, prev, "word count %d", n)
		prev = got
	}
}

func TestHeuristic_ZeroValueUsesDefaults(t *testing.T) {
	assert.Equal(t, 2, Heuristic{}.Rounds(words(40)))
}

func TestResolve(t *testing.T) {
	zero, three, negative := 0, 3, -2
	h := NewHeuristic(40, 5)

	assert.Equal(t, 3, Resolve(h, words(200), &three), "override wins")
	assert.Equal(t, 0, Resolve(h, words(200), &zero), "zero override is honored")
	assert.Equal(t, 0, Resolve(h, "p", &negative))
	assert.Equal(t, 2, Resolve(h, words(40), nil))
	assert.Equal(t, 1, Resolve(nil, "p", nil))
	assert.Equal(t, 1, Resolve(Func(func(string) int { return -4 }), "p", nil), "planner floored at 1")
}
