package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment variables before mapping them to keys.
	EnvPrefix = "RECUR_"
)

// Override mutates a loaded configuration before defaults and validation run.
// The CLI uses overrides to apply flags the user actually set.
type Override func(*Config)

// Load builds configuration from defaults, an optional YAML file, RECUR_*
// environment variables and the given overrides, then validates it.
//
// Configuration precedence (highest to lowest):
//  1. Overrides (command-line flags)
//  2. Environment variables (RECUR_RUN_ALTS, RECUR_BACKEND_MODEL, etc.)
//  3. YAML config file
//  4. Hardcoded defaults
//
// An empty configPath skips the file. A path that does not exist is an error,
// since the user asked for it explicitly.
//
// # Environment Variable Mapping
//
// The prefix is removed and the first underscore separates section from field:
//
//	RECUR_RUN_PROMPT        -> run.prompt
//	RECUR_BACKEND_API_KEY   -> backend.api_key
//	RECUR_GRADER_CACHE_SIZE -> grader.cache_size
func Load(configPath string, overrides ...Override) (*Config, error) {
	cfg, err := load(configPath, overrides...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadStatic is Load without the prompt requirement, for commands that do not
// start a run.
func LoadStatic(configPath string, overrides ...Override) (*Config, error) {
	cfg, err := load(configPath, overrides...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStatic(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func load(configPath string, overrides ...Override) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		// Use rawbytes provider to avoid re-opening the file
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default values.
	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, o := range overrides {
		o(cfg)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// envKey maps RECUR_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens the file once and validates it through the descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file type, permissions and size.
// Config files may carry API keys, so world-writable files are rejected.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o002 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (world-writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults fills values derived from other settings.
func applyDefaults(cfg *Config) {
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = ProviderGoogleAI
	}
	if cfg.Backend.Model == "" {
		cfg.Backend.Model = DefaultModel(cfg.Backend.Provider)
	}
	if !cfg.Backend.APIKey.IsSet() {
		if key := APIKeyEnv(cfg.Backend.Provider); key != "" {
			cfg.Backend.APIKey = Secret(getEnvString(key, ""))
		}
	}
	if cfg.Backend.Provider == ProviderOllama && cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:11434"
	}
	if cfg.Backend.Burst < 1 {
		cfg.Backend.Burst = 1
	}

	if cfg.Grader.Strategy == "" {
		cfg.Grader.Strategy = GraderBackend
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	cfg.Telemetry.Enabled = getEnvBool("OTEL_ENABLE", cfg.Telemetry.Enabled)
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "recur"
	}
}
