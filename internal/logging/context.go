// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}

	if round, ok := RoundFromContext(ctx); ok {
		fields = append(fields, zap.Int("run.round", round))
	}

	if agent := AgentFromContext(ctx); agent != "" {
		fields = append(fields, zap.String("record.agent", agent))
	}

	return fields
}

// Context key types
type runIDCtxKey struct{}
type roundCtxKey struct{}
type agentCtxKey struct{}

const maxIDLen = 128

// idPattern allows alphanumeric, hyphen, underscore
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateID validates a run ID or agent tag.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// WithRunID adds the run ID to context.
// Panics if runID is empty or contains invalid characters.
func WithRunID(ctx context.Context, runID string) context.Context {
	if err := validateID(runID, "runID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runIDCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRound adds the 1-based refinement round to context.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, roundCtxKey{}, round)
}

// RoundFromContext extracts the refinement round from context.
func RoundFromContext(ctx context.Context) (int, bool) {
	r, ok := ctx.Value(roundCtxKey{}).(int)
	return r, ok
}

// WithAgent adds the provenance tag of the record being worked on.
// Panics if agent is empty or contains invalid characters.
func WithAgent(ctx context.Context, agent string) context.Context {
	if err := validateID(agent, "agent"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, agentCtxKey{}, agent)
}

// AgentFromContext extracts the provenance tag from context.
func AgentFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(agentCtxKey{}).(string); ok {
		return a
	}
	return ""
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
