package secrets

import (
	"fmt"
	"regexp"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding represents a detected secret.
type Finding struct {
	RuleID   string // Gitleaks rule ID (e.g., "github-pat")
	RuleDesc string // Human-readable description
	Line     int    // Line number where secret was found
	Match    string // The secret value
}

// Detector wraps a Gitleaks detector built once from the default rule set.
// It is safe for concurrent use.
type Detector struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewDetector builds a detector with the default Gitleaks config and the
// given allowlist (nil to skip).
func NewDetector(allowlist *Allowlist) (*Detector, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if allowlist != nil {
		if err := applyAllowlist(&detector.Config, allowlist); err != nil {
			return nil, err
		}
	}
	return &Detector{detector: detector}, nil
}

// Detect scans content for secrets.
func (d *Detector) Detect(content string) []Finding {
	if content == "" {
		return nil
	}

	d.mu.Lock()
	gitleaksFindings := d.detector.DetectString(content)
	d.mu.Unlock()

	result := make([]Finding, 0, len(gitleaksFindings))
	for _, f := range gitleaksFindings {
		if f.Secret == "" {
			continue
		}
		result = append(result, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			Match:    f.Secret,
		})
	}
	return result
}

// applyAllowlist merges allowlist patterns into the Gitleaks config.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	if len(allowlist.Regexes) == 0 && len(allowlist.StopWords) == 0 {
		return nil
	}

	global := &gitleaksConfig.Allowlist{
		Description: "recur export allowlist",
		StopWords:   append([]string(nil), allowlist.StopWords...),
	}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}

	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}
