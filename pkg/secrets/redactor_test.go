package secrets

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDetector_Redact_NoSecrets(t *testing.T) {
	d := newDetector(t, nil)
	content := "Say hi\nhello there"

	redacted, report := d.Redact(content)
	if redacted != content {
		t.Errorf("Redact() changed clean content: %q", redacted)
	}
	if report.HasRedactions() {
		t.Error("HasRedactions() = true for clean content")
	}
	if report.Summary.TotalSecrets != 0 {
		t.Errorf("Summary.TotalSecrets = %d, want 0", report.Summary.TotalSecrets)
	}
}

func TestDetector_Redact_SingleSecret(t *testing.T) {
	d := newDetector(t, nil)
	content := "Use the key " + openAIKey + " to call the API."

	redacted, report := d.Redact(content)
	if !report.HasRedactions() {
		t.Skip("Gitleaks didn't detect this pattern - skipping redaction validation")
	}

	if strings.Contains(redacted, openAIKey) {
		t.Error("secret should be redacted from content")
	}
	if !strings.Contains(redacted, "[REDACTED:") {
		t.Error("content should contain [REDACTED:] marker")
	}
	if !strings.HasPrefix(redacted, "Use the key ") || !strings.HasSuffix(redacted, " to call the API.") {
		t.Errorf("surrounding text should be kept: %q", redacted)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if strings.Contains(string(data), openAIKey) {
		t.Error("report must not contain the secret value")
	}
}

func TestRedact_WithAllowlistFile(t *testing.T) {
	path := writeAllowlist(t, `
[allowlist]
stopwords = ["abc123def456"]
`)

	redacted, report, err := Redact("key: "+openAIKey, path)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if report.HasRedactions() {
		t.Errorf("stopword should suppress the finding, got %q", redacted)
	}
}

func TestRedact_MissingAllowlist(t *testing.T) {
	if _, _, err := Redact("text", "/nonexistent/allowlist.toml"); err == nil {
		t.Fatal("Redact() should fail for a missing allowlist")
	}
}

func TestReplaceFindings_LongestFirst(t *testing.T) {
	content := "a=SECRET-LONG-VALUE b=SECRET"
	findings := []Finding{
		{RuleID: "short", Match: "SECRET"},
		{RuleID: "long", Match: "SECRET-LONG-VALUE"},
	}

	got := replaceFindings(content, findings)
	want := "a=[REDACTED:long:SECR] b=[REDACTED:short:SECR]"
	if got != want {
		t.Errorf("replaceFindings() = %q, want %q", got, want)
	}
}

func TestReport_Merge(t *testing.T) {
	var total Report
	total.Merge("base", Report{Redactions: []Redaction{{RuleID: "openai-api-key"}}})
	total.Merge("alt_0", Report{Redactions: []Redaction{{RuleID: "openai-api-key"}, {RuleID: "slack-bot-token"}}})

	if total.Summary.TotalSecrets != 3 {
		t.Errorf("TotalSecrets = %d, want 3", total.Summary.TotalSecrets)
	}
	if total.Summary.UniqueRules != 2 {
		t.Errorf("UniqueRules = %d, want 2", total.Summary.UniqueRules)
	}
	if total.Redactions[1].Source != "alt_0" {
		t.Errorf("Source = %q, want alt_0", total.Redactions[1].Source)
	}
}

func TestExtractPreview(t *testing.T) {
	if got := extractPreview("abc", 4); got != "abc" {
		t.Errorf("extractPreview(abc) = %q", got)
	}
	if got := extractPreview("abcdef", 4); got != "abcd" {
		t.Errorf("extractPreview(abcdef) = %q", got)
	}
}
