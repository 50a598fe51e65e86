// Package export writes the artifacts of a finished run: the final answer and
// the JSON audit of every graded record.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/recur/internal/record"
	"github.com/fyrsmithlabs/recur/pkg/secrets"
)

// Audit is the exported chronicle of a run.
type Audit struct {
	Prompt string `json:"prompt"`
	// Chronicle lists every record in collection order, then the final
	// record again under the agent "final".
	Chronicle []record.Entry `json:"chronicle"`
}

// Redactor scrubs secrets from text.
type Redactor interface {
	Redact(content string) (string, secrets.Report)
}

// NewAudit builds the audit of a run. Every record must be scored.
func NewAudit(prompt string, records []*record.Record, final *record.Record) (*Audit, error) {
	if final == nil {
		return nil, fmt.Errorf("final record is required")
	}
	chronicle, err := record.ExportAll(records)
	if err != nil {
		return nil, fmt.Errorf("exporting records: %w", err)
	}
	last, err := final.Export()
	if err != nil {
		return nil, fmt.Errorf("exporting final record: %w", err)
	}
	last.Agent = record.AgentFinal

	return &Audit{
		Prompt:    prompt,
		Chronicle: append(chronicle, last),
	}, nil
}

// Redact scrubs the prompt and every entry text in place and returns the
// combined report. Redaction sources are the entry agents.
func (a *Audit) Redact(r Redactor) secrets.Report {
	var total secrets.Report

	prompt, report := r.Redact(a.Prompt)
	a.Prompt = prompt
	total.Merge("prompt", report)
	total.Timestamp = report.Timestamp

	for i := range a.Chronicle {
		text, report := r.Redact(a.Chronicle[i].Text)
		a.Chronicle[i].Text = text
		total.Merge(a.Chronicle[i].Agent, report)
	}
	return total
}

// Final returns the text of the final entry.
func (a *Audit) Final() string {
	if len(a.Chronicle) == 0 {
		return ""
	}
	return a.Chronicle[len(a.Chronicle)-1].Text
}

// WriteAudit writes a as indented JSON.
func WriteAudit(path string, a *Audit) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit: %w", err)
	}
	return writeFile(path, data)
}

// WriteOutput writes the final answer text.
func WriteOutput(path, text string) error {
	return writeFile(path, []byte(text))
}

// writeFile replaces path atomically through a temp file in the same
// directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
