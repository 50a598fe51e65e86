// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCore tees the console, file and OTEL outputs that are enabled.
// The returned close func releases the log file and is nil without one.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, func(), error) {
	cores := make([]zapcore.Core, 0, 3)
	var closeFn func()

	if cfg.Output.Console != "" {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		writer := zapcore.AddSync(os.Stderr)
		if cfg.Output.Console == OutputStdout {
			writer = zapcore.AddSync(os.Stdout)
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, cfg.Level))
	}

	if cfg.Output.File != "" {
		sink, closeSink, err := zap.Open(cfg.Output.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output.File, err)
		}
		encoder, err := NewRedactingEncoder(newEncoder("json"), cfg.Redaction)
		if err != nil {
			closeSink()
			return nil, nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, sink, cfg.Level))
		closeFn = closeSink
	}

	if cfg.Output.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore("github.com/fyrsmithlabs/recur",
			otelzap.WithLoggerProvider(otelProvider),
		)
		cores = append(cores, otelCore)
	}

	if len(cores) == 0 {
		return nil, nil, fmt.Errorf("at least one output must be enabled and available")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return newSampledCore(core, cfg.Sampling), closeFn, nil
}
