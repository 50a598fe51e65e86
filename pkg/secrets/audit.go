package secrets

import "time"

// Report is the audit trail of one or more redactions. It never stores a
// secret value, only metadata.
type Report struct {
	Timestamp  time.Time   `json:"timestamp"`
	Redactions []Redaction `json:"redactions"`
	Summary    Summary     `json:"summary"`
}

// Redaction describes a single redacted secret.
type Redaction struct {
	Source      string `json:"source,omitempty"` // e.g. the record agent
	RuleID      string `json:"rule_id"`
	RuleDesc    string `json:"rule_desc"`
	LineNumber  int    `json:"line_number"`
	OriginalLen int    `json:"original_len"`
	Preview     string `json:"preview"` // First 4 chars only
}

// Summary provides aggregate statistics about redactions.
type Summary struct {
	TotalSecrets int            `json:"total_secrets"`
	UniqueRules  int            `json:"unique_rules"`
	RuleCounts   map[string]int `json:"rule_counts"`
}

// HasRedactions returns true if any secret was redacted.
func (r *Report) HasRedactions() bool {
	return len(r.Redactions) > 0
}

// Merge appends other's redactions, tagging them with source.
func (r *Report) Merge(source string, other Report) {
	for _, red := range other.Redactions {
		red.Source = source
		r.Redactions = append(r.Redactions, red)
	}
	r.Summary = summarize(r.Redactions)
}

func summarize(redactions []Redaction) Summary {
	counts := make(map[string]int)
	for _, red := range redactions {
		counts[red.RuleID]++
	}
	return Summary{
		TotalSecrets: len(redactions),
		UniqueRules:  len(counts),
		RuleCounts:   counts,
	}
}
