package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recur/internal/backend"
	"github.com/fyrsmithlabs/recur/internal/config"
	"github.com/fyrsmithlabs/recur/internal/events"
	"github.com/fyrsmithlabs/recur/internal/export"
	"github.com/fyrsmithlabs/recur/internal/fragments"
	"github.com/fyrsmithlabs/recur/internal/generator"
	"github.com/fyrsmithlabs/recur/internal/grader"
	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/metrics"
	"github.com/fyrsmithlabs/recur/internal/orchestrator"
	"github.com/fyrsmithlabs/recur/internal/retry"
	"github.com/fyrsmithlabs/recur/internal/rounds"
	"github.com/fyrsmithlabs/recur/internal/telemetry"
	"github.com/fyrsmithlabs/recur/pkg/secrets"
)

const shutdownTimeout = 5 * time.Second

func runRecur(cmd *cobra.Command, f *runFlags) error {
	cfg, err := config.Load(f.configPath, f.overrides(cmd)...)
	if err != nil {
		return err
	}
	return execute(cmd.Context(), cfg, cmd.OutOrStdout(), summaryWriter(cmd, f.quiet))
}

func summaryWriter(cmd *cobra.Command, quiet bool) io.Writer {
	if quiet {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}

// execute wires the run from a validated configuration, prints the final
// answer to stdout and writes the configured artifacts.
func execute(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (err error) {
	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(sctx)
	}()

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	m := metrics.New()
	defer func() {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn(ctx, "failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(werr))
		}
	}()

	frags, err := fragments.LoadFiles(cfg.Context.Files, cfg.Context.ChunkSize)
	if err != nil {
		return err
	}
	if len(frags) > 0 {
		logger.Info(ctx, "loaded context fragments",
			zap.Int("files", len(cfg.Context.Files)),
			zap.Int("fragments", len(frags)),
		)
	}

	b, err := backend.Build(ctx, cfg.Backend, backend.Stack{
		Fragments: frags,
		Telemetry: tel,
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	policy := &retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Duration(),
		Logger:      logger,
	}

	g, err := grader.New(cfg.Grader, b, policy, logger)
	if err != nil {
		return err
	}

	sinks := []events.Sink{events.NewLogSink(logger)}
	if cfg.Events.NATSURL != "" {
		ns, err := events.DialNATS(cfg.Events.NATSURL,
			events.WithSubjectPrefix(cfg.Events.SubjectPrefix),
			events.WithFlushTimeout(cfg.Events.FlushTimeout.Duration()),
			events.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := ns.Close(context.Background()); cerr != nil {
				logger.Warn(ctx, "failed to flush progress events", zap.Error(cerr))
			}
		}()
		sinks = append(sinks, ns)
	}

	exec, err := orchestrator.New(orchestrator.Options{
		Base:        &generator.Base{Backend: b, Temperature: cfg.Run.Temperature, Retry: policy},
		Alternative: &generator.Alternative{Backend: b, Temperature: cfg.Run.Temperature, Retry: policy},
		Grader:      g,
		Planner:     rounds.NewHeuristic(cfg.Run.WordsPerRound, cfg.Run.MaxRounds),
		Alts:        cfg.Run.Alts,
		Rounds:      cfg.Run.Rounds,
		Logger:      logger,
		Telemetry:   tel,
		Metrics:     m,
		OnProgress:  events.Callback(sinks...),
	})
	if err != nil {
		return err
	}
	policy.OnRetry = exec.ObserveRetry

	result, err := exec.Run(ctx, cfg.Run.Prompt)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) && errors.Is(err, context.Canceled) {
			return fmt.Errorf("run %s interrupted: %w", runErr.RunID, context.Canceled)
		}
		return err
	}

	if _, err := fmt.Fprintln(stdout, result.Final.Text()); err != nil {
		return fmt.Errorf("writing answer: %w", err)
	}

	if err := writeArtifacts(ctx, cfg.Export, result, logger); err != nil {
		return err
	}

	return renderSummary(stderr, result, backend.ProviderOf(b))
}

// writeArtifacts writes the audit JSON and the output file when configured.
func writeArtifacts(ctx context.Context, cfg config.ExportConfig, result *orchestrator.Result, logger *logging.Logger) error {
	if cfg.AuditJSON == "" && cfg.OutputFile == "" {
		return nil
	}

	audit, err := export.NewAudit(result.Prompt, result.Records, result.Final)
	if err != nil {
		return err
	}

	if cfg.Redact {
		allowlist, err := secrets.LoadAllowlist(cfg.Allowlist)
		if err != nil {
			return err
		}
		detector, err := secrets.NewDetector(allowlist)
		if err != nil {
			return err
		}
		report := audit.Redact(detector)
		if report.HasRedactions() {
			logger.Warn(ctx, "redacted secrets from exported answers",
				zap.Int("total", report.Summary.TotalSecrets),
				zap.Any("rules", report.Summary.RuleCounts),
			)
		}
	}

	if cfg.AuditJSON != "" {
		if err := export.WriteAudit(cfg.AuditJSON, audit); err != nil {
			return err
		}
		logger.Info(ctx, "wrote audit", zap.String("path", cfg.AuditJSON), zap.Int("entries", len(audit.Chronicle)))
	}
	if cfg.OutputFile != "" {
		if err := export.WriteOutput(cfg.OutputFile, audit.Final()); err != nil {
			return err
		}
		logger.Info(ctx, "wrote final answer", zap.String("path", cfg.OutputFile))
	}
	return nil
}
