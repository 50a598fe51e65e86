package backend

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/recur/internal/config"
	"github.com/fyrsmithlabs/recur/internal/metrics"
	"github.com/fyrsmithlabs/recur/internal/telemetry"
)

// FromConfig binds the configured provider.
func FromConfig(ctx context.Context, cfg config.BackendConfig) (Backend, error) {
	if cfg.Provider == config.ProviderEcho {
		return Echo{}, nil
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultModel(cfg.Provider)
	}

	var (
		m   llms.Model
		err error
	)
	switch cfg.Provider {
	case config.ProviderGoogleAI:
		m, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey.Value()),
			googleai.WithDefaultModel(model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey.Value()), openai.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err = openai.New(opts...)
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey.Value()), anthropic.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		m, err = anthropic.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		m, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	return NewLLM(m, cfg.Provider, model, cfg.Timeout.Duration()), nil
}

// Stack holds the optional decorators applied by Build.
type Stack struct {
	Fragments []string
	Telemetry *telemetry.Telemetry
	Metrics   *metrics.Metrics
}

// Build binds the provider and wraps it as
// WithFragments(RateLimited(Instrumented(provider))).
func Build(ctx context.Context, cfg config.BackendConfig, s Stack) (Backend, error) {
	b, err := FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Decorate(b, cfg.RateLimit, cfg.Burst, s), nil
}

// Decorate applies the standard decorators to an already bound backend.
func Decorate(b Backend, rps float64, burst int, s Stack) Backend {
	b = Instrumented(b, s.Telemetry, s.Metrics)
	b = RateLimited(b, rps, burst)
	return WithFragments(b, s.Fragments)
}
