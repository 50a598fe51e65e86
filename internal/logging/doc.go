// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug) for full prompt and reply bodies
//   - Console (stderr by default), JSON file and OpenTelemetry outputs
//   - Automatic context field injection (trace_id, run.id, run.round, record.agent)
//   - Redaction of API keys in field names, values and messages
//   - Optional level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Log with context:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithRound(ctx, 2)
//	logger.Info(ctx, "round completed", zap.Float64("best_score", 71.5))
//
// Stdout is reserved for the final answer, so the console output writes to
// stderr unless configured otherwise.
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "retrying backend call", zap.Int("attempt", 1))
//	tl.AssertLogged(t, zapcore.WarnLevel, "retrying")
//	tl.AssertField(t, "retrying", "attempt", int64(1))
//
// # Concurrency Safety
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging
