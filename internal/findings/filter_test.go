package findings

import (
	"testing"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
)

func TestFilter(t *testing.T) {
	accepted := newFinding("bandit", "Use of assert", "app.py", 3, SeverityLow)
	findings := []Finding{
		accepted,
		newFinding("semgrep", "SQL injection", "db.py", 12, SeverityHigh),
		newFinding("trivy", "Open bucket in sandbox", "infra/main.tf", 4, SeverityMedium),
		newFinding("gitleaks", "AWS key", "tests/testdata/keys.txt", 1, SeverityHigh),
		newFinding("checkov", "Legacy   Policy", "iam.tf", 8, SeverityLow),
	}

	cfg := &config.IgnoreConfig{
		Accepted: []config.AcceptedItem{
			{Fingerprint: accepted.Fingerprint},
			{Title: "legacy policy"},
		},
		IgnorePaths:    []string{"**/testdata/**"},
		IgnorePatterns: []string{"*sandbox*"},
	}

	filtered, ignored := Filter(findings, cfg)

	if ignored != 4 {
		t.Errorf("expected 4 ignored, got %d", ignored)
	}
	if len(filtered) != 1 || filtered[0].Title != "SQL injection" {
		t.Errorf("unexpected filtered set: %+v", filtered)
	}
}

func TestFilterNilConfig(t *testing.T) {
	findings := []Finding{{Title: "a"}}
	filtered, ignored := Filter(findings, nil)
	if ignored != 0 || len(filtered) != 1 {
		t.Errorf("nil config should keep everything, got %d ignored", ignored)
	}
}

func TestMatchesTitlePattern(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		patterns []string
		expected bool
	}{
		{"contains", "Bucket in sandbox account", []string{"*sandbox*"}, true},
		{"suffix", "Debug test", []string{"*test"}, true},
		{"prefix", "Test credentials", []string{"test*"}, true},
		{"substring", "Weak TLS config", []string{"tls"}, true},
		{"no match", "SQL injection", []string{"*sandbox*", "test*"}, false},
		{"blank pattern skipped", "anything", []string{"  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesTitlePattern(tt.title, tt.patterns); got != tt.expected {
				t.Errorf("matchesTitlePattern(%q) = %v, want %v", tt.title, got, tt.expected)
			}
		})
	}
}

func TestFilterBySeverity(t *testing.T) {
	findings := []Finding{
		{Title: "c", Severity: SeverityCritical},
		{Title: "h", Severity: SeverityHigh},
		{Title: "m", Severity: SeverityMedium},
		{Title: "l", Severity: SeverityLow},
		{Title: "i", Severity: SeverityInfo},
	}

	tests := []struct {
		min  string
		want int
	}{
		{"", 5},
		{"info", 5},
		{"low", 4},
		{"medium", 3},
		{"high", 2},
		{"critical", 1},
		{"bogus", 5},
	}

	for _, tt := range tests {
		t.Run(tt.min, func(t *testing.T) {
			if got := FilterBySeverity(findings, tt.min); len(got) != tt.want {
				t.Errorf("FilterBySeverity(%q) returned %d, want %d", tt.min, len(got), tt.want)
			}
		})
	}
}
