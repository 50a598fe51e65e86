// Package secrets detects and redacts secrets in exported text using the
// Gitleaks rule set.
package secrets

import "errors"

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")

	// ErrAllowlistNotFound indicates a configured allowlist file does not exist.
	ErrAllowlistNotFound = errors.New("allowlist file not found")
)
