package grader

import (
	"fmt"
	"os"
	"strings"

	"github.com/fyrsmithlabs/recur/internal/backend"
	"github.com/fyrsmithlabs/recur/internal/config"
	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/retry"
)

const maxRubricSize = 64 * 1024

// New builds the configured grading strategy. A rubric file, when set, takes
// precedence over an inline rubric.
func New(cfg config.GraderConfig, b backend.Backend, policy *retry.Policy, logger *logging.Logger) (Grader, error) {
	var g Grader
	switch cfg.Strategy {
	case config.GraderHeuristic:
		g = Heuristic{}
	case config.GraderBackend, "":
		if b == nil {
			return nil, fmt.Errorf("backend grading requires a backend")
		}
		rubric := cfg.Rubric
		if cfg.RubricFile != "" {
			r, err := LoadRubric(cfg.RubricFile)
			if err != nil {
				return nil, err
			}
			rubric = r
		}
		g = NewBackend(b,
			WithRubric(rubric),
			WithTemperature(cfg.Temperature),
			WithRetry(policy),
			WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown grading strategy: %s", cfg.Strategy)
	}
	return Cached(g, cfg.CacheSize)
}

// LoadRubric reads a rubric from path.
func LoadRubric(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading rubric: %w", err)
	}
	if info.Size() > maxRubricSize {
		return "", fmt.Errorf("rubric file too large: %d bytes (max %d)", info.Size(), maxRubricSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading rubric: %w", err)
	}
	rubric := strings.TrimSpace(string(data))
	if rubric == "" {
		return "", fmt.Errorf("rubric file %s is empty", path)
	}
	return rubric, nil
}
