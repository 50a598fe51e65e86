package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/recur/internal/backend"
	"github.com/fyrsmithlabs/recur/internal/generator"
	"github.com/fyrsmithlabs/recur/internal/grader"
	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/metrics"
	"github.com/fyrsmithlabs/recur/internal/record"
	"github.com/fyrsmithlabs/recur/internal/retry"
	"github.com/fyrsmithlabs/recur/internal/telemetry"
)

// MockBaseGenerator is a mock implementation of BaseGenerator.
type MockBaseGenerator struct {
	mock.Mock
}

func (m *MockBaseGenerator) Generate(ctx context.Context, prompt string) (*record.Record, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

// roundAlternatives produces "r<round>-a<index>" and remembers the best answer
// each call was seeded with.
type roundAlternatives struct {
	mu     sync.Mutex
	seeds  map[int][]string
	failAt int
	err    error
}

func (g *roundAlternatives) Generate(ctx context.Context, _ string, currentBest string, index int) (*record.Record, error) {
	round, _ := logging.RoundFromContext(ctx)

	g.mu.Lock()
	if g.seeds == nil {
		g.seeds = make(map[int][]string)
	}
	g.seeds[round] = append(g.seeds[round], currentBest)
	g.mu.Unlock()

	if g.failAt > 0 && round == g.failAt && index == 0 {
		return nil, g.err
	}
	return record.Alternative(fmt.Sprintf("r%d-a%d", round, index), index), nil
}

func (g *roundAlternatives) seedsFor(round int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.seeds[round]...)
}

// staggeredAlternatives finishes index i after i milliseconds and counts
// completed generations.
type staggeredAlternatives struct {
	done atomic.Int64
}

func (g *staggeredAlternatives) Generate(ctx context.Context, _ string, _ string, index int) (*record.Record, error) {
	round, _ := logging.RoundFromContext(ctx)
	select {
	case <-time.After(time.Duration(index) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.done.Add(1)
	return record.Alternative(fmt.Sprintf("r%d-a%d", round, index), index), nil
}

// tableGrader scores answers from a fixed table; unknown answers score 0.
type tableGrader map[string]float64

func (t tableGrader) Score(_ context.Context, answer, _ string) (float64, error) {
	return t[answer], nil
}

// eventLog collects progress events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func intPtr(i int) *int { return &i }

func fixedRunID() string { return "run-1" }

func echoOptions(rounds, alts int) Options {
	b := backend.Echo{}
	policy := &retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	return Options{
		Base:        &generator.Base{Backend: b, Temperature: 0.4, Retry: policy},
		Alternative: &generator.Alternative{Backend: b, Temperature: 0.4, Retry: policy},
		Grader:      grader.Heuristic{},
		Alts:        alts,
		Rounds:      intPtr(rounds),
		NewRunID:    fixedRunID,
	}
}

func TestNew_Validation(t *testing.T) {
	valid := echoOptions(1, 2)

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing base", func(o *Options) { o.Base = nil }},
		{"missing alternative", func(o *Options) { o.Alternative = nil }},
		{"missing grader", func(o *Options) { o.Grader = nil }},
		{"negative alts", func(o *Options) { o.Alts = -1 }},
		{"negative rounds", func(o *Options) { o.Rounds = intPtr(-2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			exec, err := New(opts)
			assert.Error(t, err)
			assert.Nil(t, exec)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	opts := echoOptions(0, 0)
	opts.Rounds = nil
	opts.NewRunID = nil

	exec, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, DefaultAlts, exec.alts)
	assert.NotNil(t, exec.selectFn)
	assert.Equal(t, 1, exec.PlannedRounds("Say hi"))
	assert.NotEmpty(t, exec.newRunID())
}

func TestExecutor_Run_EchoHeuristic(t *testing.T) {
	exec, err := New(echoOptions(1, 2))
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "Say hi")
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Records, 3)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 1, result.Rounds)
	assert.Equal(t, 2, result.Alts)
	assert.Equal(t, record.AgentBase, result.Records[0].Agent())
	assert.Equal(t, "[echo] Say hi", result.Records[0].Text())
	assert.Equal(t, "alt_0", result.Records[1].Agent())
	assert.Equal(t, "alt_1", result.Records[2].Agent())

	var maxScore float64
	for _, r := range result.Records {
		s, ok := r.Score()
		require.True(t, ok, "%s must be scored", r.Agent())
		assert.InDelta(t, grader.HeuristicScore(r.Text()), s, 1e-9)
		if s > maxScore {
			maxScore = s
		}
	}
	finalScore, ok := result.Final.Score()
	require.True(t, ok)
	assert.Equal(t, maxScore, finalScore)
}

func TestExecutor_Run_RecordCount(t *testing.T) {
	tests := []struct {
		rounds, alts int
	}{
		{0, 1},
		{0, 3},
		{1, 1},
		{2, 3},
		{3, 2},
		{5, 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("rounds=%d/alts=%d", tt.rounds, tt.alts), func(t *testing.T) {
			exec, err := New(echoOptions(tt.rounds, tt.alts))
			require.NoError(t, err)

			result, err := exec.Run(context.Background(), "Explain goroutines")
			require.NoError(t, err)
			assert.Len(t, result.Records, 1+tt.alts*tt.rounds)
			assert.Equal(t, tt.rounds, result.Rounds)

			for i, r := range result.Records[1:] {
				idx, ok := record.AltIndex(r.Agent())
				require.True(t, ok)
				assert.Equal(t, i%tt.alts, idx)
			}
		})
	}
}

func TestExecutor_Run_ZeroRoundsSelectsBase(t *testing.T) {
	base := new(MockBaseGenerator)
	base.On("Generate", mock.Anything, "prompt").Return(record.Base("only answer"), nil).Once()
	alts := &roundAlternatives{}

	exec, err := New(Options{
		Base:        base,
		Alternative: alts,
		Grader:      tableGrader{"only answer": 12},
		Alts:        3,
		Rounds:      intPtr(0),
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "prompt")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Same(t, result.Records[0], result.Final)
	assert.Empty(t, alts.seedsFor(1))
	base.AssertExpectations(t)
}

func TestExecutor_Run_BestIsMonotonic(t *testing.T) {
	base := new(MockBaseGenerator)
	base.On("Generate", mock.Anything, "prompt").Return(record.Base("base"), nil)
	alts := &roundAlternatives{}
	scores := tableGrader{
		"base":  50,
		"r1-a0": 40,
		"r1-a1": 50, // a tie never replaces the current best
		"r2-a0": 70,
		"r2-a1": 65,
		"r3-a0": 20,
		"r3-a1": 30,
	}

	log := &eventLog{}
	exec, err := New(Options{
		Base:        base,
		Alternative: alts,
		Grader:      scores,
		Alts:        2,
		Rounds:      intPtr(3),
		OnProgress:  log.handle,
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "prompt")
	require.NoError(t, err)

	best := log.ofType(EventBestUpdated)
	require.Len(t, best, 2)
	assert.Equal(t, record.AgentBase, best[0].BestAgent)
	assert.Equal(t, 50.0, best[0].BestScore)
	assert.Equal(t, "alt_0", best[1].BestAgent)
	assert.Equal(t, 70.0, best[1].BestScore)
	assert.Equal(t, 2, best[1].Round)

	var prev float64
	for _, ev := range log.ofType(EventRoundCompleted) {
		assert.GreaterOrEqual(t, ev.BestScore, prev)
		prev = ev.BestScore
	}

	// Every alternative in a round is seeded with the best as it stood when
	// the round began.
	assert.Equal(t, []string{"base", "base"}, alts.seedsFor(1))
	assert.Equal(t, []string{"base", "base"}, alts.seedsFor(2))
	assert.Equal(t, []string{"r2-a0", "r2-a0"}, alts.seedsFor(3))

	assert.Equal(t, "r2-a0", result.Final.Text())
	assert.Len(t, result.Records, 7)
}

func TestExecutor_Run_FinalIsFirstMaximum(t *testing.T) {
	base := new(MockBaseGenerator)
	base.On("Generate", mock.Anything, "prompt").Return(record.Base("base"), nil)

	exec, err := New(Options{
		Base:        base,
		Alternative: &roundAlternatives{},
		Grader:      tableGrader{"base": 10, "r1-a0": 80, "r1-a1": 80, "r1-a2": 5},
		Alts:        3,
		Rounds:      intPtr(1),
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "prompt")
	require.NoError(t, err)
	score, _ := result.Final.Score()
	assert.Equal(t, 80.0, score)
}

func TestExecutor_Run_EmptyPrompt(t *testing.T) {
	base := new(MockBaseGenerator)
	alts := &roundAlternatives{}
	log := &eventLog{}

	exec, err := New(Options{
		Base:        base,
		Alternative: alts,
		Grader:      grader.Heuristic{},
		OnProgress:  log.handle,
	})
	require.NoError(t, err)

	for _, prompt := range []string{"", "   \n"} {
		result, err := exec.Run(context.Background(), prompt)
		assert.ErrorIs(t, err, ErrPromptRequired)
		assert.Nil(t, result)
	}
	base.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Empty(t, alts.seedsFor(1))
	assert.Empty(t, log.events)
}

func TestExecutor_Run_BaseFailure(t *testing.T) {
	cause := errors.New("quota exceeded")
	base := new(MockBaseGenerator)
	base.On("Generate", mock.Anything, "prompt").Return(nil, cause)
	log := &eventLog{}

	exec, err := New(Options{
		Base:        base,
		Alternative: &roundAlternatives{},
		Grader:      grader.Heuristic{},
		Rounds:      intPtr(2),
		OnProgress:  log.handle,
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "prompt")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseInit, runErr.Phase)
	assert.Equal(t, 0, runErr.Round)
	assert.Equal(t, "run-1", runErr.RunID)

	failed := log.ofType(EventRunFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "quota exceeded")
	assert.Empty(t, log.ofType(EventRunCompleted))
}

func TestExecutor_Run_RoundFailure(t *testing.T) {
	cause := &backend.Error{Provider: "scripted", Op: backend.OpGenerate, Err: errors.New("503")}
	base := new(MockBaseGenerator)
	base.On("Generate", mock.Anything, "prompt").Return(record.Base("base"), nil)
	alts := &roundAlternatives{failAt: 2, err: cause}
	log := &eventLog{}

	exec, err := New(Options{
		Base:        base,
		Alternative: alts,
		Grader:      grader.Heuristic{},
		Alts:        3,
		Rounds:      intPtr(3),
		OnProgress:  log.handle,
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "prompt")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, backend.ErrBackend)
	assert.ErrorIs(t, err, cause)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseRound, runErr.Phase)
	assert.Equal(t, 2, runErr.Round)
	assert.Empty(t, alts.seedsFor(3), "no round starts after a failure")

	phases := log.ofType(EventPhaseChanged)
	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseFailed, phases[len(phases)-1].Phase)
	assert.Len(t, log.ofType(EventRoundCompleted), 1)
}

func TestExecutor_Run_GraderFailure(t *testing.T) {
	cause := errors.New("grader down")
	exec, err := New(Options{
		Base:        &generator.Base{Backend: backend.Echo{}},
		Alternative: &generator.Alternative{Backend: backend.Echo{}},
		Grader: grader.Func(func(_ context.Context, answer, _ string) (float64, error) {
			return 0, cause
		}),
		Rounds:   intPtr(1),
		NewRunID: fixedRunID,
	})
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), "prompt")
	assert.ErrorIs(t, err, cause)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseInit, runErr.Phase)
}

func TestExecutor_Run_Events(t *testing.T) {
	log := &eventLog{}
	opts := echoOptions(2, 2)
	opts.OnProgress = log.handle

	exec, err := New(opts)
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), "Say hi")
	require.NoError(t, err)

	require.NotEmpty(t, log.events)
	assert.Equal(t, EventRunStarted, log.events[0].Type)
	assert.Equal(t, 2, log.events[0].TotalRounds)
	last := log.events[len(log.events)-1]
	assert.Equal(t, EventRunCompleted, last.Type)
	assert.Equal(t, 100, last.Percentage)
	assert.Equal(t, 5, last.Records)

	var phases []Phase
	for _, ev := range log.ofType(EventPhaseChanged) {
		phases = append(phases, ev.Phase)
	}
	assert.Equal(t, []Phase{
		PhaseBaseGenerated, PhaseRound, PhaseRound, PhaseAggregated, PhaseSelected, PhaseDone,
	}, phases)

	assert.Len(t, log.ofType(EventRecordGenerated), 5)
	assert.Len(t, log.ofType(EventRecordScored), 5)
	assert.Len(t, log.ofType(EventRoundStarted), 2)
	for _, ev := range log.events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestExecutor_OnProgress(t *testing.T) {
	exec, err := New(echoOptions(1, 1))
	require.NoError(t, err)

	var count int
	exec.OnProgress(func(Event) { count++ })

	_, err = exec.Run(context.Background(), "Say hi")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestExecutor_ObserveRetry(t *testing.T) {
	b := backend.NewScripted(
		backend.Reply{Err: errors.New("503")},
		backend.Reply{Text: "base answer"},
	)
	policy := &retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	m := metrics.New()
	log := &eventLog{}

	exec, err := New(Options{
		Base:        &generator.Base{Backend: b, Retry: policy},
		Alternative: &generator.Alternative{Backend: b, Retry: policy},
		Grader:      grader.Heuristic{},
		Rounds:      intPtr(0),
		Metrics:     m,
		OnProgress:  log.handle,
		NewRunID:    fixedRunID,
	})
	require.NoError(t, err)
	policy.OnRetry = exec.ObserveRetry

	result, err := exec.Run(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "base answer", result.Final.Text())

	retries := log.ofType(EventRetry)
	require.Len(t, retries, 1)
	assert.Equal(t, backend.OpGenerate, retries[0].Op)
	assert.Equal(t, 1, retries[0].Attempt)
	assert.Equal(t, time.Millisecond, retries[0].Wait)
	assert.Equal(t, record.AgentBase, retries[0].Agent)
	assert.Equal(t, "run-1", retries[0].RunID)
	assert.Equal(t, "503", retries[0].Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRetries.WithLabelValues(backend.OpGenerate)))
}

func TestExecutor_Run_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	opts := echoOptions(2, 3)
	opts.Telemetry = tel.Telemetry

	exec, err := New(opts)
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), "Say hi")
	require.NoError(t, err)

	tel.AssertSpanExists(t, "recur.run")
	tel.AssertSpanAttribute(t, "recur.run", "recur.run_id", "run-1")
	assert.Len(t, tel.SpansByName("recur.round"), 2)
	assert.Len(t, tel.SpansByName("recur.generate"), 7)
	assert.Len(t, tel.SpansByName("recur.grade"), 7)
}

func TestExecutor_Run_MetricsAndLogging(t *testing.T) {
	m := metrics.New()
	logger := logging.NewTestLogger()
	opts := echoOptions(3, 2)
	opts.Metrics = m
	opts.Logger = logger.Logger

	exec, err := New(opts)
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "Say hi")
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RoundsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsScored.WithLabelValues("base")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.RecordsScored.WithLabelValues("alt")))
	finalScore, _ := result.Final.Score()
	assert.Equal(t, finalScore, testutil.ToFloat64(m.BestScore))

	logger.AssertLogged(t, zapcore.InfoLevel, "run started")
	logger.AssertLogged(t, zapcore.InfoLevel, "round completed")
	logger.AssertLogged(t, zapcore.InfoLevel, "run completed")
	logger.AssertNotLogged(t, zapcore.ErrorLevel, "run failed")
}

func TestExecutor_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := New(echoOptions(1, 2))
	require.NoError(t, err)

	result, err := exec.Run(ctx, "Say hi")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_ConcurrentRuns(t *testing.T) {
	exec, err := New(echoOptions(2, 3))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := exec.Run(context.Background(), fmt.Sprintf("prompt %d", i))
			assert.NoError(t, err)
			assert.Len(t, result.Records, 7)
		}()
	}
	wg.Wait()
}

func TestExecutor_Run_GradingWaitsForAllGenerations(t *testing.T) {
	const rounds, alts = 3, 5
	gen := &staggeredAlternatives{}

	var mu sync.Mutex
	var early []string
	g := grader.Func(func(ctx context.Context, answer, _ string) (float64, error) {
		round, _ := logging.RoundFromContext(ctx)
		if got, want := gen.done.Load(), int64(alts*round); got != want {
			mu.Lock()
			early = append(early, fmt.Sprintf("%s graded after %d of %d generations", answer, got, want))
			mu.Unlock()
		}
		return grader.HeuristicScore(answer), nil
	})

	base := &MockBaseGenerator{}
	base.On("Generate", mock.Anything, "p").Return(record.Base("base answer"), nil)

	exec, err := New(Options{
		Base:        base,
		Alternative: gen,
		Grader:      g,
		Alts:        alts,
		Rounds:      intPtr(rounds),
	})
	require.NoError(t, err)

	result, err := exec.Run(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, result.Records, 1+alts*rounds)
	assert.Empty(t, early)
	base.AssertExpectations(t)
}
