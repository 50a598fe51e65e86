package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/orchestrator"
)

// LogSink writes events to a logger. Run and round milestones are logged at
// info, per-record events at debug, retries at warn and failures at error.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger).Named("progress")}
}

// Handle logs ev.
func (s *LogSink) Handle(ev orchestrator.Event) {
	ctx := context.Background()
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.String("phase", string(ev.Phase)),
		zap.Int("percent", ev.Percentage),
	}
	if ev.Round > 0 {
		fields = append(fields, zap.Int("round", ev.Round))
	}

	switch ev.Type {
	case orchestrator.EventRecordGenerated:
		s.logger.Debug(ctx, "record generated", append(fields, zap.String("agent", ev.Agent))...)
	case orchestrator.EventRecordScored:
		s.logger.Debug(ctx, "record scored", append(fields,
			zap.String("agent", ev.Agent),
			zap.Float64("score", ev.Score),
		)...)
	case orchestrator.EventPhaseChanged:
		s.logger.Debug(ctx, "phase changed", fields...)
	case orchestrator.EventRunStarted:
		s.logger.Info(ctx, ev.Message, append(fields, zap.Int("total_rounds", ev.TotalRounds))...)
	case orchestrator.EventRoundStarted:
		s.logger.Info(ctx, ev.Message, fields...)
	case orchestrator.EventBestUpdated:
		s.logger.Info(ctx, "best answer updated", append(fields,
			zap.String("best_agent", ev.BestAgent),
			zap.Float64("best_score", ev.BestScore),
		)...)
	case orchestrator.EventRoundCompleted, orchestrator.EventRunCompleted:
		s.logger.Info(ctx, string(ev.Type), append(fields,
			zap.String("best_agent", ev.BestAgent),
			zap.Float64("best_score", ev.BestScore),
			zap.Int("records", ev.Records),
		)...)
	case orchestrator.EventRetry:
		s.logger.Warn(ctx, "retrying backend call", append(fields,
			zap.String("agent", ev.Agent),
			zap.String("op", ev.Op),
			zap.Int("attempt", ev.Attempt),
			zap.Duration("wait", ev.Wait),
			zap.String("error", ev.Error),
		)...)
	case orchestrator.EventRunFailed:
		s.logger.Error(ctx, "run failed", append(fields, zap.String("error", ev.Error))...)
	default:
		s.logger.Debug(ctx, string(ev.Type), fields...)
	}
}
