package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Redact replaces every finding in content with a
// [REDACTED:rule-id:preview] marker. The markers keep enough context to tell
// what kind of secret was removed.
func (d *Detector) Redact(content string) (string, Report) {
	findings := d.Detect(content)
	report := Report{
		Timestamp:  time.Now(),
		Redactions: toRedactions(findings),
	}
	report.Summary = summarize(report.Redactions)

	if len(findings) == 0 {
		return content, report
	}
	return replaceFindings(content, findings), report
}

// Redact detects and redacts secrets in content using a detector built from
// the allowlist at allowlistPath (empty to skip).
func Redact(content, allowlistPath string) (string, Report, error) {
	allowlist, err := LoadAllowlist(allowlistPath)
	if err != nil {
		return "", Report{}, fmt.Errorf("loading allowlist: %w", err)
	}
	d, err := NewDetector(allowlist)
	if err != nil {
		return "", Report{}, err
	}
	redacted, report := d.Redact(content)
	return redacted, report, nil
}

// replaceFindings substitutes longer matches first so a secret that contains
// another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})

	for _, f := range sorted {
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, extractPreview(f.Match, 4))
		content = strings.ReplaceAll(content, f.Match, marker)
	}
	return content
}

// extractPreview returns the first n bytes of s.
func extractPreview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func toRedactions(findings []Finding) []Redaction {
	redactions := make([]Redaction, 0, len(findings))
	for _, f := range findings {
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			OriginalLen: len(f.Match),
			Preview:     extractPreview(f.Match, 4),
		})
	}
	return redactions
}
