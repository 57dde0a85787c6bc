package findings

import (
	"bytes"
	"strings"
	"testing"
)

func TestSeverityEmoji(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		want     string
	}{
		{"critical", SeverityCritical, "🟣"},
		{"high", SeverityHigh, "🔴"},
		{"medium", SeverityMedium, "🟡"},
		{"low", SeverityLow, "🟢"},
		{"info", SeverityInfo, "🔵"},
		{"unknown", "unknown", "⚪"},
		{"empty", "", "⚪"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SeverityEmoji(tt.severity)
			if got != tt.want {
				t.Errorf("SeverityEmoji(%q) = %q, want %q", tt.severity, got, tt.want)
			}
		})
	}
}

func TestDisplaySummary(t *testing.T) {
	run := &Run{
		Findings: []Finding{
			{Scanner: "bandit", Severity: SeverityHigh, RiskWeight: 20},
			{Scanner: "bandit", Severity: SeverityHigh, RiskWeight: 20},
			{Scanner: "trivy", Severity: SeverityMedium, RiskWeight: 5},
			{Scanner: "gitleaks", Severity: SeverityLow, RiskWeight: 1},
		},
		Partial:     true,
		Diagnostics: []Diagnostic{{Code: CodeSourceFetchFailed}},
	}

	var buf bytes.Buffer
	DisplaySummary(&buf, run)
	output := buf.String()

	expectedStrings := []string{
		"Summary:",
		"High: 2",
		"Medium: 1",
		"Low: 1",
		"Total: 4",
		"Aggregate risk score: 46.0",
		"bandit:",
		"2 finding(s)",
		"trivy:",
		"partial",
		"1 diagnostic(s)",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("DisplaySummary() output missing expected string: %q\n%s", expected, output)
		}
	}
}

func TestDisplayFindings(t *testing.T) {
	findings := []Finding{
		{
			Title:       "Hardcoded secret",
			Scanner:     "gitleaks",
			Severity:    SeverityHigh,
			FilePath:    "config/app.env",
			Line:        4,
			Tags:        []string{"domain:secrets"},
			Description: "A token was committed",
		},
		{
			Title:       "Unpinned base image",
			Scanner:     "trivy",
			Severity:    SeverityMedium,
			FilePath:    "Dockerfile",
			Description: "Image uses latest tag",
		},
	}

	t.Run("default options", func(t *testing.T) {
		var buf bytes.Buffer
		DisplayFindings(&buf, findings, DefaultDisplayOptions())
		output := buf.String()

		if !strings.Contains(output, "Hardcoded secret") {
			t.Error("DisplayFindings() should show finding titles")
		}
		if !strings.Contains(output, "config/app.env:4") {
			t.Error("DisplayFindings() should show file:line")
		}
		if strings.Contains(output, "Tags:") {
			t.Error("DisplayFindings() should not show tags with default options")
		}
		if strings.Contains(output, "Description:") {
			t.Error("DisplayFindings() should not show description with default options")
		}
	})

	t.Run("detailed options", func(t *testing.T) {
		var buf bytes.Buffer
		DisplayFindings(&buf, findings, DetailedDisplayOptions())
		output := buf.String()

		if !strings.Contains(output, "Tags: domain:secrets") {
			t.Error("DisplayFindings() should show tags with detailed options")
		}
		if !strings.Contains(output, "Description: Image uses latest tag") {
			t.Error("DisplayFindings() should show description with detailed options")
		}
	})

	t.Run("truncates list", func(t *testing.T) {
		var buf bytes.Buffer
		DisplayFindings(&buf, findings, DisplayOptions{MaxDisplay: 1})
		output := buf.String()

		if strings.Contains(output, "Unpinned base image") {
			t.Error("second finding should be hidden")
		}
		if !strings.Contains(output, "... and 1 more finding(s)") {
			t.Error("expected overflow line")
		}
	})
}
