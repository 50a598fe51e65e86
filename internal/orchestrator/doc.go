// Package orchestrator drives a run from a prompt to a selected answer.
//
// # Overview
//
// A run generates a baseline answer, then refines it over a planned number of
// rounds. Every round generates alternatives concurrently from the same
// snapshot of the current best, grades them concurrently, and replaces the
// current best only when one of them scores strictly higher. After the last
// round the final answer is selected from every record of the run.
//
// # Architecture
//
// The Executor moves through these phases:
//
//	init → base_generated → round (×R) → aggregated → selected → done
//
// Any unrecovered backend failure moves the run to failed. A failed run
// returns a *RunError and no records; there is no partial result.
//
// Within a round, generation and grading are separated by join barriers
// (errgroup). The current best and the record collection are touched only by
// the goroutine calling Run, and only after a barrier, so they need no lock.
//
// # Progress
//
// The core never writes to stdout or stderr. Callers observe a run through a
// ProgressCallback that receives structured Events (run_started,
// phase_changed, round_started, record_generated, record_scored,
// best_updated, round_completed, retry, run_completed, run_failed). Calls to
// the callback are serialized.
//
// # Usage Example
//
//	policy := retry.NewPolicy(logger)
//	exec, err := orchestrator.New(orchestrator.Options{
//	    Base:        &generator.Base{Backend: b, Temperature: 0.4, Retry: policy},
//	    Alternative: &generator.Alternative{Backend: b, Temperature: 0.4, Retry: policy},
//	    Grader:      grader.Heuristic{},
//	    Alts:        3,
//	    OnProgress:  sink.Handle,
//	})
//	if err != nil {
//	    return err
//	}
//	policy.OnRetry = exec.ObserveRetry
//
//	result, err := exec.Run(ctx, "Explain goroutines")
package orchestrator
