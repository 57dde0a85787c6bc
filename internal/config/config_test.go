package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Source.API != "rest" {
			t.Errorf("expected default api rest, got %s", cfg.Source.API)
		}
		if cfg.Source.Window != 5 || cfg.Source.Concurrency != 4 || cfg.Source.Retries != 3 {
			t.Errorf("unexpected source defaults: %+v", cfg.Source)
		}
		if cfg.Source.Timeout != 10*time.Second {
			t.Errorf("expected 10s timeout, got %s", cfg.Source.Timeout)
		}
		if cfg.Dedup.TieBreak != "first" || cfg.Guides.Mode != "per-finding" {
			t.Errorf("unexpected defaults: tie_break=%s mode=%s", cfg.Dedup.TieBreak, cfg.Guides.Mode)
		}
		if !cfg.Source.IsEnabled() {
			t.Error("expected source enrichment enabled by default")
		}
		if cfg.Scanners == nil {
			t.Error("expected non-nil scanner config")
		}
	})

	t.Run("values from file", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yml", `
source:
  enabled: false
  api: graphql
  repository: acme/app
  window: 2
  timeout: 3s
dedup:
  tie_break: last
guides:
  mode: group
scoring:
  multipliers:
    "compliance:pci-dss": 1.5
scanners:
  disabled: [grype]
`)
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Source.IsEnabled() {
			t.Error("expected source enrichment disabled")
		}
		if cfg.Source.API != "graphql" || cfg.Source.Repository != "acme/app" {
			t.Errorf("unexpected source config: %+v", cfg.Source)
		}
		if cfg.Source.Window != 2 || cfg.Source.Timeout != 3*time.Second {
			t.Errorf("expected window 2 and 3s timeout, got %d and %s", cfg.Source.Window, cfg.Source.Timeout)
		}
		if cfg.Source.Concurrency != 4 {
			t.Errorf("expected default concurrency to fill in, got %d", cfg.Source.Concurrency)
		}
		if cfg.Dedup.TieBreak != "last" || cfg.Guides.Mode != "group" {
			t.Errorf("unexpected tie_break=%s mode=%s", cfg.Dedup.TieBreak, cfg.Guides.Mode)
		}
		if cfg.Scoring.Multipliers["compliance:pci-dss"] != 1.5 {
			t.Errorf("expected multiplier 1.5, got %v", cfg.Scoring.Multipliers)
		}
		if !cfg.Scanners.IsDisabled("grype") {
			t.Error("expected grype disabled")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yaml", "source: [unclosed")
		if _, err := LoadConfig(dir); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		dir := t.TempDir()
		writeGithubFile(t, dir, "gpscore.yaml", "dedup:\n  tie_break: random\n")
		_, err := LoadConfig(dir)
		if err == nil || !strings.Contains(err.Error(), "tie_break") {
			t.Errorf("expected tie_break validation error, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *FullConfig)
		wantErr string
	}{
		{"defaults", func(c *FullConfig) {}, ""},
		{"bad api", func(c *FullConfig) { c.Source.API = "soap" }, "source.api"},
		{"bad mode", func(c *FullConfig) { c.Guides.Mode = "all" }, "guides.mode"},
		{"negative window", func(c *FullConfig) { c.Source.Window = -1 }, "source.window"},
		{"zero concurrency", func(c *FullConfig) { c.Source.Concurrency = 0 }, "source.concurrency"},
		{"negative retries", func(c *FullConfig) { c.Source.Retries = -2 }, "source.retries"},
		{"store inside workspace", func(c *FullConfig) {
			c.Workspace.Root = ".gpscore"
			c.Store.Path = ".gpscore/runs.db"
			c.Reports.Dir = "out/reports"
		}, "store.path"},
		{"reports inside workspace", func(c *FullConfig) {
			c.Workspace.Root = "build/ws"
			c.Reports.Dir = "build/ws/reports"
		}, "reports.dir"},
		{"workspace is working directory", func(c *FullConfig) {
			c.Workspace.Root = "."
			c.Store.Path = "/var/lib/gpscore/runs.db"
			c.Reports.Dir = "/var/lib/gpscore/reports"
		}, "working directory"},
		{"workspace sibling with shared prefix", func(c *FullConfig) {
			c.Workspace.Root = ".gpscore/work"
			c.Store.Path = ".gpscore/workspace.db"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckProtected(t *testing.T) {
	cfg := Default()
	cfg.Workspace.Root = "/srv/gpscore/ws"

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/srv/gpscore/ws", true},
		{"/srv/gpscore/ws/run-1/bundle.tgz", true},
		{"/srv/gpscore", false},
		{"/srv/gpscore/ws2/bundle.tgz", false},
		{"/tmp/bundle", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := cfg.CheckProtected("bundle", tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckProtected(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
