package config

import (
	"testing"
)

func TestScannerConfigIsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		config   *ScannerConfig
		scanner  string
		expected bool
	}{
		{
			name:     "explicitly enabled",
			config:   &ScannerConfig{Enabled: []string{"semgrep"}},
			scanner:  "semgrep",
			expected: true,
		},
		{
			name:     "not in enabled list",
			config:   &ScannerConfig{Enabled: []string{"semgrep"}},
			scanner:  "checkov",
			expected: false,
		},
		{
			name:     "empty config",
			config:   &ScannerConfig{},
			scanner:  "checkov",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.IsEnabled(tt.scanner)
			if result != tt.expected {
				t.Errorf("IsEnabled(%s) = %v, expected %v", tt.scanner, result, tt.expected)
			}
		})
	}
}

func TestScannerConfigAllows(t *testing.T) {
	tests := []struct {
		name     string
		config   *ScannerConfig
		scanner  string
		expected bool
	}{
		{"nil config", nil, "trivy", true},
		{"empty config", &ScannerConfig{}, "trivy", true},
		{"disabled", &ScannerConfig{Disabled: []string{"trivy"}}, "trivy", false},
		{"enabled list excludes", &ScannerConfig{Enabled: []string{"bandit"}}, "trivy", false},
		{"enabled list includes", &ScannerConfig{Enabled: []string{"trivy"}}, "trivy", true},
		{"disabled wins", &ScannerConfig{Enabled: []string{"trivy"}, Disabled: []string{"trivy"}}, "trivy", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Allows(tt.scanner); got != tt.expected {
				t.Errorf("Allows(%s) = %v, expected %v", tt.scanner, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigScannerSource(t *testing.T) {
	t.Run("no config file returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Source.API != "rest" || cfg.Source.Window != 5 || cfg.Source.Concurrency != 4 {
			t.Errorf("unexpected defaults: %+v", cfg.Source)
		}
		if cfg.Source.TokenEnv != "GITHUB_TOKEN" {
			t.Errorf("TokenEnv = %q, want GITHUB_TOKEN", cfg.Source.TokenEnv)
		}
		if !cfg.Source.IsEnabled() {
			t.Error("source enrichment should default to enabled")
		}
	})

	t.Run("values from file", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yml", `
scanners:
  disabled: [grype]
source:
  api: graphql
  repository: acme/payments
  ref: main
  window: 3
  timeout: 2s
dedup:
  tie_break: last
guides:
  mode: group
`)
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Source.API != "graphql" || cfg.Source.Repository != "acme/payments" {
			t.Errorf("unexpected source config: %+v", cfg.Source)
		}
		if cfg.Source.Window != 3 {
			t.Errorf("Window = %d, want 3", cfg.Source.Window)
		}
		if cfg.Source.Timeout.Seconds() != 2 {
			t.Errorf("Timeout = %v, want 2s", cfg.Source.Timeout)
		}
		if !cfg.Scanners.IsDisabled("grype") {
			t.Error("expected grype to be disabled")
		}
		if cfg.Dedup.TieBreak != "last" || cfg.Guides.Mode != "group" {
			t.Errorf("unexpected dedup/guides: %+v %+v", cfg.Dedup, cfg.Guides)
		}
	})

	t.Run("invalid api rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yaml", "source:\n  api: soap\n")
		if _, err := LoadConfig(dir); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yaml", "source: [unclosed\n")
		if _, err := LoadConfig(dir); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestSourceConfigToken(t *testing.T) {
	t.Setenv("GPSCORE_TEST_TOKEN", "s3cret")
	cfg := SourceConfig{TokenEnv: "GPSCORE_TEST_TOKEN"}
	if got := cfg.Token(); got != "s3cret" {
		t.Errorf("Token() = %q, want s3cret", got)
	}
}
