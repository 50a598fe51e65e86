// Package config provides configuration loading for recur.
//
// Configuration is assembled from defaults, an optional YAML file, RECUR_*
// environment variables and finally command-line overrides. Each section is
// consumed by the package that owns the concern (backend, grader, retry, ...).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Supported backend providers.
const (
	ProviderEcho      = "echo"
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Supported grading strategies.
const (
	GraderHeuristic = "heuristic"
	GraderBackend   = "backend"
)

// Config holds the complete recur configuration.
type Config struct {
	Run       RunConfig       `koanf:"run"`
	Backend   BackendConfig   `koanf:"backend"`
	Grader    GraderConfig    `koanf:"grader"`
	Retry     RetryConfig     `koanf:"retry"`
	Context   ContextConfig   `koanf:"context"`
	Export    ExportConfig    `koanf:"export"`
	Events    EventsConfig    `koanf:"events"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// RunConfig is the run configuration surface consumed by the orchestrator.
type RunConfig struct {
	Prompt      string  `koanf:"prompt"`
	Temperature float64 `koanf:"temperature"`
	// Rounds overrides the planner when set. Zero is a legal override.
	Rounds        *int `koanf:"rounds"`
	Alts          int  `koanf:"alts"`
	MaxRounds     int  `koanf:"max_rounds"`
	WordsPerRound int  `koanf:"words_per_round"`
}

// BackendConfig selects and configures the text-generation provider.
type BackendConfig struct {
	Provider  string   `koanf:"provider"`
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	BaseURL   string   `koanf:"base_url"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second, 0 disables
	Burst     int      `koanf:"burst"`
	Timeout   Duration `koanf:"timeout"`
}

// GraderConfig selects the grading strategy.
type GraderConfig struct {
	Strategy    string  `koanf:"strategy"`
	Rubric      string  `koanf:"rubric"`
	RubricFile  string  `koanf:"rubric_file"`
	Temperature float64 `koanf:"temperature"`
	CacheSize   int     `koanf:"cache_size"`
}

// RetryConfig bounds retries around every backend call.
type RetryConfig struct {
	MaxAttempts int      `koanf:"max_attempts"`
	BaseDelay   Duration `koanf:"base_delay"`
}

// ContextConfig lists files whose contents are chunked into fragments.
type ContextConfig struct {
	Files     []string `koanf:"files"`
	ChunkSize int      `koanf:"chunk_size"`
}

// ExportConfig controls the one-shot export of the run.
type ExportConfig struct {
	AuditJSON  string `koanf:"audit_json"`
	OutputFile string `koanf:"output_file"`
	Redact     bool   `koanf:"redact"`
	Allowlist  string `koanf:"allowlist"`
}

// EventsConfig configures the optional NATS progress sink.
type EventsConfig struct {
	NATSURL       string   `koanf:"nats_url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	FlushTimeout  Duration `koanf:"flush_timeout"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// LoggingConfig holds the logging knobs exposed to users.
type LoggingConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	File     string            `koanf:"file"`
	Sampling LogSamplingConfig `koanf:"sampling"`
}

// LogSamplingConfig thins repeated info and debug entries per tick.
// Initial and Thereafter apply to info; zero keeps the built-in rates.
type LogSamplingConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Tick       Duration `koanf:"tick"`
	Initial    int      `koanf:"initial"`
	Thereafter int      `koanf:"thereafter"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// NewDefaultConfig returns the configuration used when nothing else is set.
func NewDefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Temperature:   0.4,
			Alts:          3,
			MaxRounds:     5,
			WordsPerRound: 40,
		},
		Backend: BackendConfig{
			Provider:  ProviderGoogleAI,
			RateLimit: 5,
			Burst:     5,
			Timeout:   Duration(2 * time.Minute),
		},
		Grader: GraderConfig{
			Strategy:    GraderBackend,
			Temperature: 0.4,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(time.Second),
		},
		Context: ContextConfig{
			ChunkSize: 1000,
		},
		Events: EventsConfig{
			SubjectPrefix: "recur.runs",
			FlushTimeout:  Duration(2 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "recur",
			SampleRate:  1.0,
		},
	}
}

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGoogleAI:
		return "gemini-2.0-flash-001"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-20241022"
	case ProviderOllama:
		return "llama3.2"
	default:
		return ""
	}
}

// APIKeyEnv returns the conventional environment variable for a provider key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderGoogleAI:
		return "GOOGLE_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Validate validates the configuration.
//
// Returns an error wrapping ErrInvalidConfig if:
//   - run.prompt is empty
//   - run.alts is below 1 or run.rounds is negative
//   - the provider or grading strategy is unknown
//   - a hosted provider has no API key
//   - retry bounds are not positive
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Run.Prompt) == "" {
		return fmt.Errorf("%w: run.prompt is required", ErrInvalidConfig)
	}
	if err := c.ValidateStatic(); err != nil {
		return err
	}
	return c.validateCredentials()
}

// validateCredentials requires an API key for hosted providers.
func (c *Config) validateCredentials() error {
	switch c.Backend.Provider {
	case ProviderGoogleAI, ProviderOpenAI, ProviderAnthropic:
		if !c.Backend.APIKey.IsSet() {
			return fmt.Errorf("%w: backend.api_key (or %s) is required for provider %q",
				ErrInvalidConfig, APIKeyEnv(c.Backend.Provider), c.Backend.Provider)
		}
	}
	return nil
}

// ValidateStatic validates everything except the per-run prompt and credentials.
func (c *Config) ValidateStatic() error {
	if c.Run.Alts < 1 {
		return fmt.Errorf("%w: run.alts must be >= 1, got %d", ErrInvalidConfig, c.Run.Alts)
	}
	if c.Run.Rounds != nil && *c.Run.Rounds < 0 {
		return fmt.Errorf("%w: run.rounds must be >= 0, got %d", ErrInvalidConfig, *c.Run.Rounds)
	}
	if c.Run.Temperature < 0 || c.Run.Temperature > 2 {
		return fmt.Errorf("%w: run.temperature must be between 0 and 2, got %v", ErrInvalidConfig, c.Run.Temperature)
	}
	if c.Run.MaxRounds < 1 {
		return fmt.Errorf("%w: run.max_rounds must be >= 1", ErrInvalidConfig)
	}
	if c.Run.WordsPerRound < 1 {
		return fmt.Errorf("%w: run.words_per_round must be >= 1", ErrInvalidConfig)
	}

	switch c.Backend.Provider {
	case ProviderEcho, ProviderOllama, ProviderGoogleAI, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown backend.provider %q", ErrInvalidConfig, c.Backend.Provider)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("%w: backend.rate_limit cannot be negative", ErrInvalidConfig)
	}

	switch c.Grader.Strategy {
	case GraderHeuristic, GraderBackend:
	default:
		return fmt.Errorf("%w: unknown grader.strategy %q", ErrInvalidConfig, c.Grader.Strategy)
	}
	if c.Grader.CacheSize < 0 {
		return fmt.Errorf("%w: grader.cache_size cannot be negative", ErrInvalidConfig)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be >= 1", ErrInvalidConfig)
	}
	if c.Retry.BaseDelay.Duration() <= 0 {
		return fmt.Errorf("%w: retry.base_delay must be positive", ErrInvalidConfig)
	}

	if c.Logging.Sampling.Initial < 0 || c.Logging.Sampling.Thereafter < 0 {
		return fmt.Errorf("%w: logging.sampling rates cannot be negative", ErrInvalidConfig)
	}

	if c.Context.ChunkSize < 1 {
		return fmt.Errorf("%w: context.chunk_size must be >= 1", ErrInvalidConfig)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("%w: telemetry.service_name required when telemetry is enabled", ErrInvalidConfig)
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
