package record

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	base := Base("hello")
	assert.Equal(t, "hello", base.Text())
	assert.Equal(t, AgentBase, base.Agent())
	assert.False(t, base.Scored())

	alt := Alternative("world", 2)
	assert.Equal(t, "alt_2", alt.Agent())
	assert.Equal(t, map[string]string{KeyAgent: "alt_2"}, alt.Provenance())
}

func TestProvenanceIsCopied(t *testing.T) {
	r := Base("x")
	p := r.Provenance()
	p[KeyAgent] = "tampered"
	assert.Equal(t, AgentBase, r.Agent())
}

func TestAltIndex(t *testing.T) {
	tests := []struct {
		agent string
		index int
		ok    bool
	}{
		{"alt_0", 0, true},
		{"alt_12", 12, true},
		{"base", 0, false},
		{"alt_", 0, false},
		{"alt_x", 0, false},
		{"alt_-1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			idx, ok := AltIndex(tt.agent)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.index, idx)
		})
	}
}

func TestSetScore_WriteOnce(t *testing.T) {
	r := Base("answer")

	require.NoError(t, r.SetScore(42))
	score, ok := r.Score()
	assert.True(t, ok)
	assert.Equal(t, 42.0, score)

	err := r.SetScore(90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyScored))

	score, _ = r.Score()
	assert.Equal(t, 42.0, score, "second write must not change the score")
}

func TestSetScore_ZeroIsGraded(t *testing.T) {
	r := Base("")
	require.NoError(t, r.SetScore(0))

	assert.True(t, r.Scored())
	score, err := r.MustScore()
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestSetScore_Bounds(t *testing.T) {
	for _, bad := range []float64{-1, 100.5, math.NaN(), math.Inf(1)} {
		err := Base("x").SetScore(bad)
		assert.ErrorIs(t, err, ErrInvalidScore, "score %v", bad)
	}
	assert.NoError(t, Base("x").SetScore(100))
}

func TestMustScore_Unscored(t *testing.T) {
	_, err := Alternative("x", 1).MustScore()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotScored)
	assert.Contains(t, err.Error(), "alt_1")
}

func TestSetScore_ConcurrentSingleWinner(t *testing.T) {
	r := Base("contended")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if err := r.SetScore(float64(v)); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.True(t, r.Scored())
}

func TestExport(t *testing.T) {
	r := Alternative("text", 0)

	_, err := r.Export()
	assert.ErrorIs(t, err, ErrNotScored)

	require.NoError(t, r.SetScore(12.5))
	e, err := r.Export()
	require.NoError(t, err)
	assert.Equal(t, Entry{Agent: "alt_0", Score: 12.5, Text: "text"}, e)
}

func TestExportAll(t *testing.T) {
	a, b := Base("a"), Alternative("b", 0)
	require.NoError(t, a.SetScore(1))

	_, err := ExportAll([]*Record{a, b})
	assert.ErrorIs(t, err, ErrNotScored)

	require.NoError(t, b.SetScore(2))
	entries, err := ExportAll([]*Record{a, b})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"base", 1, "a"}, {"alt_0", 2, "b"}}, entries)
}

func TestString(t *testing.T) {
	r := Base("abc")
	assert.Equal(t, "base(unscored, 3 chars)", r.String())
	require.NoError(t, r.SetScore(7))
	assert.Equal(t, "base(7.00, 3 chars)", r.String())
}
