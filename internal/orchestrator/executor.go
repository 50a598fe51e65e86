package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/recur/internal/grader"
	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/metrics"
	"github.com/fyrsmithlabs/recur/internal/record"
	"github.com/fyrsmithlabs/recur/internal/rounds"
	"github.com/fyrsmithlabs/recur/internal/selector"
	"github.com/fyrsmithlabs/recur/internal/telemetry"
)

// DefaultAlts is the number of alternatives generated per round.
const DefaultAlts = 3

// Options wires the collaborators of an Executor.
type Options struct {
	Base        BaseGenerator
	Alternative AlternativeGenerator
	Grader      grader.Grader

	// Select defaults to selector.Select.
	Select SelectFunc
	// Planner defaults to the word-count heuristic.
	Planner rounds.Planner

	// Alts defaults to DefaultAlts.
	Alts int
	// Rounds overrides the planner when set.
	Rounds *int

	Logger     *logging.Logger
	Telemetry  *telemetry.Telemetry
	Metrics    *metrics.Metrics
	OnProgress ProgressCallback

	// NewRunID defaults to uuid.NewString.
	NewRunID func() string
}

// Executor drives runs through the phase state machine.
//
// An Executor holds no run state; each Run owns its current best and record
// collection and mutates them only between join barriers.
type Executor struct {
	base        BaseGenerator
	alternative AlternativeGenerator
	grader      grader.Grader
	selectFn    SelectFunc
	planner     rounds.Planner
	alts        int
	rounds      *int
	newRunID    func() string

	logger  *logging.Logger
	tel     *telemetry.Telemetry
	metrics *metrics.Metrics

	mu               sync.Mutex
	progressCallback ProgressCallback
}

// New validates opts and returns an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Base == nil {
		return nil, errors.New("base generator is required")
	}
	if opts.Alternative == nil {
		return nil, errors.New("alternative generator is required")
	}
	if opts.Grader == nil {
		return nil, errors.New("grader is required")
	}
	if opts.Alts < 0 {
		return nil, fmt.Errorf("alts must be >= 1, got %d", opts.Alts)
	}
	if opts.Rounds != nil && *opts.Rounds < 0 {
		return nil, fmt.Errorf("rounds must be >= 0, got %d", *opts.Rounds)
	}

	e := &Executor{
		base:             opts.Base,
		alternative:      opts.Alternative,
		grader:           opts.Grader,
		selectFn:         opts.Select,
		planner:          opts.Planner,
		alts:             opts.Alts,
		newRunID:         opts.NewRunID,
		logger:           logging.OrNop(opts.Logger).Named("orchestrator"),
		tel:              opts.Telemetry,
		metrics:          opts.Metrics,
		progressCallback: opts.OnProgress,
	}
	if opts.Rounds != nil {
		r := *opts.Rounds
		e.rounds = &r
	}
	if e.selectFn == nil {
		e.selectFn = selector.Select
	}
	if e.planner == nil {
		e.planner = rounds.NewHeuristic(0, 0)
	}
	if e.alts == 0 {
		e.alts = DefaultAlts
	}
	if e.newRunID == nil {
		e.newRunID = uuid.NewString
	}
	return e, nil
}

// OnProgress sets the progress callback.
func (e *Executor) OnProgress(callback ProgressCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressCallback = callback
}

// PlannedRounds returns the number of rounds Run would perform for prompt.
func (e *Executor) PlannedRounds(prompt string) int {
	return rounds.Resolve(e.planner, prompt, e.rounds)
}

// runState is owned by a single Run.
type runState struct {
	id        string
	prompt    string
	phase     Phase
	round     int
	rounds    int
	completed int
	best      *record.Record
	all       []*record.Record
}

// percentage counts the base, each round and the selection as one step.
func (s *runState) percentage() int {
	return s.completed * 100 / (s.rounds + 2)
}

// Run answers prompt. It returns either a complete result or a *RunError and
// no result. An empty prompt fails with ErrPromptRequired before any backend
// call.
func (e *Executor) Run(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptRequired
	}

	start := time.Now()
	st := &runState{
		id:     e.newRunID(),
		prompt: prompt,
		phase:  PhaseInit,
		rounds: e.PlannedRounds(prompt),
	}

	ctx = logging.WithRunID(ctx, st.id)
	ctx, span := e.tel.StartSpan(ctx, "recur.run", trace.WithAttributes(
		attribute.String("recur.run_id", st.id),
		attribute.Int("recur.rounds", st.rounds),
		attribute.Int("recur.alts", e.alts),
	))

	e.logger.Info(ctx, "run started",
		zap.Int("rounds", st.rounds),
		zap.Int("alts", e.alts),
		zap.Int("prompt_chars", len(prompt)),
	)
	e.emit(Event{
		Type:        EventRunStarted,
		RunID:       st.id,
		Phase:       st.phase,
		TotalRounds: st.rounds,
		Message:     fmt.Sprintf("Planning %d round(s) of %d alternative(s)", st.rounds, e.alts),
	})

	final, err := e.execute(ctx, st)
	elapsed := time.Since(start)
	e.metrics.RecordRun(elapsed, err)

	if err != nil {
		runErr := &RunError{RunID: st.id, Phase: st.phase, Round: st.round, Err: err}
		st.phase = PhaseFailed
		e.logger.Error(ctx, "run failed",
			zap.String("phase", string(runErr.Phase)),
			zap.Int("round", runErr.Round),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		e.emit(Event{
			Type:       EventPhaseChanged,
			RunID:      st.id,
			Phase:      PhaseFailed,
			Round:      runErr.Round,
			Percentage: st.percentage(),
		})
		e.emit(Event{
			Type:       EventRunFailed,
			RunID:      st.id,
			Phase:      PhaseFailed,
			Round:      runErr.Round,
			Percentage: st.percentage(),
			Error:      err.Error(),
		})
		telemetry.EndSpan(span, runErr)
		return nil, runErr
	}

	finalScore, _ := final.Score()
	span.SetAttributes(
		attribute.String("recur.final_agent", final.Agent()),
		attribute.Float64("recur.final_score", finalScore),
	)
	telemetry.EndSpan(span, nil)

	e.logger.Info(ctx, "run completed",
		zap.String("final_agent", final.Agent()),
		zap.Float64("final_score", finalScore),
		zap.Int("records", len(st.all)),
		zap.Duration("elapsed", elapsed),
	)
	e.emit(Event{
		Type:       EventRunCompleted,
		RunID:      st.id,
		Phase:      PhaseDone,
		BestAgent:  final.Agent(),
		BestScore:  finalScore,
		Records:    len(st.all),
		Percentage: 100,
	})

	return &Result{
		RunID:    st.id,
		Prompt:   prompt,
		Final:    final,
		Records:  st.all,
		Rounds:   st.rounds,
		Alts:     e.alts,
		Duration: elapsed,
	}, nil
}

func (e *Executor) execute(ctx context.Context, st *runState) (*record.Record, error) {
	base, err := e.generateBase(ctx, st)
	if err != nil {
		return nil, err
	}
	st.best = base
	st.all = append(st.all, base)
	st.completed++
	if err := e.transition(st, PhaseBaseGenerated); err != nil {
		return nil, err
	}
	e.emitBest(st)

	for i := 1; i <= st.rounds; i++ {
		st.round = i
		if err := e.transition(st, PhaseRound); err != nil {
			return nil, err
		}
		if err := e.runRound(ctx, st); err != nil {
			return nil, err
		}
		st.completed++
	}
	st.round = 0

	if err := e.transition(st, PhaseAggregated); err != nil {
		return nil, err
	}
	if want := 1 + e.alts*st.rounds; len(st.all) != want {
		return nil, fmt.Errorf("aggregated %d records, expected %d", len(st.all), want)
	}

	final, err := e.selectFn(selector.Reorder(st.all, nil))
	if err != nil {
		return nil, fmt.Errorf("selecting final record: %w", err)
	}
	st.completed++
	if err := e.transition(st, PhaseSelected); err != nil {
		return nil, err
	}
	if err := e.transition(st, PhaseDone); err != nil {
		return nil, err
	}
	return final, nil
}

func (e *Executor) generateBase(ctx context.Context, st *runState) (*record.Record, error) {
	ctx = logging.WithAgent(ctx, record.AgentBase)

	gctx, span := e.tel.StartSpan(ctx, "recur.generate", trace.WithAttributes(
		attribute.String("recur.agent", record.AgentBase),
	))
	base, err := e.base.Generate(gctx, st.prompt)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("generating base: %w", err)
	}
	e.emitGenerated(st, base)

	if err := e.score(ctx, st, base); err != nil {
		return nil, err
	}
	return base, nil
}

// runRound fans out alternative generation against the best answer as it
// stood when the round began, joins, fans out grading, joins, then merges.
func (e *Executor) runRound(ctx context.Context, st *runState) (err error) {
	round := st.round
	ctx = logging.WithRound(ctx, round)
	ctx, span := e.tel.StartSpan(ctx, "recur.round", trace.WithAttributes(
		attribute.Int("recur.round", round),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	snapshot := st.best.Text()
	e.emit(Event{
		Type:        EventRoundStarted,
		RunID:       st.id,
		Phase:       PhaseRound,
		Round:       round,
		TotalRounds: st.rounds,
		BestAgent:   st.best.Agent(),
		Percentage:  st.percentage(),
		Message:     fmt.Sprintf("Starting round %d/%d", round, st.rounds),
	})

	recs := make([]*record.Record, e.alts)

	gen, gctx := errgroup.WithContext(ctx)
	for i := range recs {
		gen.Go(func() error {
			actx := logging.WithAgent(gctx, record.AltAgent(i))
			actx, span := e.tel.StartSpan(actx, "recur.generate", trace.WithAttributes(
				attribute.String("recur.agent", record.AltAgent(i)),
				attribute.Int("recur.round", round),
			))
			r, err := e.alternative.Generate(actx, st.prompt, snapshot, i)
			telemetry.EndSpan(span, err)
			if err != nil {
				return fmt.Errorf("generating %s: %w", record.AltAgent(i), err)
			}
			recs[i] = r
			e.emitGenerated(st, r)
			return nil
		})
	}
	if err := gen.Wait(); err != nil {
		return err
	}

	grade, sctx := errgroup.WithContext(ctx)
	for _, r := range recs {
		grade.Go(func() error {
			return e.score(sctx, st, r)
		})
	}
	if err := grade.Wait(); err != nil {
		return err
	}

	roundBest, err := selector.Select(recs)
	if err != nil {
		return err
	}
	bestScore, _ := st.best.Score()
	challenger, _ := roundBest.Score()
	if challenger > bestScore {
		st.best = roundBest
		bestScore = challenger
		e.emitBest(st)
	}
	st.all = append(st.all, recs...)

	e.metrics.RecordRound(bestScore)
	span.SetAttributes(attribute.Float64("recur.best_score", bestScore))
	e.logger.Info(ctx, "round completed",
		zap.String("best_agent", st.best.Agent()),
		zap.Float64("best_score", bestScore),
		zap.Int("records", len(st.all)),
	)
	e.emit(Event{
		Type:        EventRoundCompleted,
		RunID:       st.id,
		Phase:       PhaseRound,
		Round:       round,
		TotalRounds: st.rounds,
		BestAgent:   st.best.Agent(),
		BestScore:   bestScore,
		Records:     len(st.all),
		Percentage:  (st.completed + 1) * 100 / (st.rounds + 2),
	})
	return nil
}

func (e *Executor) score(ctx context.Context, st *runState, r *record.Record) error {
	ctx = logging.WithAgent(ctx, r.Agent())
	ctx, span := e.tel.StartSpan(ctx, "recur.grade", trace.WithAttributes(
		attribute.String("recur.agent", r.Agent()),
	))
	score, err := grader.Grade(ctx, e.grader, r, st.prompt)
	if err == nil {
		span.SetAttributes(attribute.Float64("recur.score", score))
	}
	telemetry.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("grading %s: %w", r.Agent(), err)
	}

	e.metrics.RecordScore(r.Agent(), score)
	e.logger.Debug(ctx, "record scored", zap.Float64("score", score))

	round, _ := logging.RoundFromContext(ctx)
	e.emit(Event{
		Type:       EventRecordScored,
		RunID:      st.id,
		Phase:      phaseFor(round),
		Round:      round,
		Agent:      r.Agent(),
		Score:      score,
		Percentage: st.percentage(),
	})
	return nil
}

// ObserveRetry reports a scheduled retry as a progress event. It matches
// retry.RetryFunc so it can be installed on the policy the generators and
// grader share.
func (e *Executor) ObserveRetry(ctx context.Context, op string, attempt int, err error, wait time.Duration) {
	e.metrics.RecordRetry(op)

	round, _ := logging.RoundFromContext(ctx)
	ev := Event{
		Type:    EventRetry,
		RunID:   logging.RunIDFromContext(ctx),
		Phase:   phaseFor(round),
		Round:   round,
		Agent:   logging.AgentFromContext(ctx),
		Op:      op,
		Attempt: attempt,
		Wait:    wait,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.emit(ev)
}

func (e *Executor) transition(st *runState, to Phase) error {
	if err := CanTransition(st.phase, to); err != nil {
		return err
	}
	st.phase = to
	e.emit(Event{
		Type:        EventPhaseChanged,
		RunID:       st.id,
		Phase:       to,
		Round:       st.round,
		TotalRounds: st.rounds,
		Percentage:  st.percentage(),
	})
	return nil
}

func (e *Executor) emitGenerated(st *runState, r *record.Record) {
	round := st.round
	if r.Agent() == record.AgentBase {
		round = 0
	}
	e.emit(Event{
		Type:       EventRecordGenerated,
		RunID:      st.id,
		Phase:      phaseFor(round),
		Round:      round,
		Agent:      r.Agent(),
		Percentage: st.percentage(),
	})
}

func (e *Executor) emitBest(st *runState) {
	score, _ := st.best.Score()
	e.metrics.SetBest(score)
	e.emit(Event{
		Type:       EventBestUpdated,
		RunID:      st.id,
		Phase:      st.phase,
		Round:      st.round,
		BestAgent:  st.best.Agent(),
		BestScore:  score,
		Percentage: st.percentage(),
	})
}

func (e *Executor) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progressCallback != nil {
		e.progressCallback(ev)
	}
}

func phaseFor(round int) Phase {
	if round > 0 {
		return PhaseRound
	}
	return PhaseInit
}
