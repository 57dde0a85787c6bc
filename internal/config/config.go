package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig controls source-context enrichment against the code host
type SourceConfig struct {
	Enabled           *bool         `yaml:"enabled,omitempty"`
	API               string        `yaml:"api"`
	Host              string        `yaml:"host"`
	Repository        string        `yaml:"repository"`
	Ref               string        `yaml:"ref"`
	TokenEnv          string        `yaml:"token_env"`
	Window            int           `yaml:"window"`
	Concurrency       int           `yaml:"concurrency"`
	Retries           int           `yaml:"retries"`
	Timeout           time.Duration `yaml:"timeout"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// IsEnabled reports whether enrichment should run; it defaults to on
func (c SourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Token reads the access token from the configured environment variable
func (c SourceConfig) Token() string {
	return os.Getenv(c.TokenEnv)
}

// DedupConfig selects the merge tie-break policy
type DedupConfig struct {
	TieBreak string `yaml:"tie_break"`
}

// ScoringConfig overrides risk weights
type ScoringConfig struct {
	Weights     map[string]float64 `yaml:"weights"`
	Multipliers map[string]float64 `yaml:"multipliers"`
}

// GuidesConfig controls fix guide generation
type GuidesConfig struct {
	Mode         string `yaml:"mode"`
	TemplatesDir string `yaml:"templates_dir"`
}

// WorkspaceConfig locates the per-run scratch area
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// ReportsConfig locates report output
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// StoreConfig locates the run snapshot database
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FullConfig represents the complete gpscore.yaml structure
type FullConfig struct {
	Scanners  *ScannerConfig  `yaml:"scanners"`
	Source    SourceConfig    `yaml:"source"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Guides    GuidesConfig    `yaml:"guides"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Reports   ReportsConfig   `yaml:"reports"`
	Store     StoreConfig     `yaml:"store"`
	RulesFile string          `yaml:"rules_file"`
}

// Default returns the configuration used when no file is present
func Default() *FullConfig {
	cfg := &FullConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads .github/gpscore.yaml under dir.
// Returns a default config if the file doesn't exist.
func LoadConfig(dir string) (*FullConfig, error) {
	configPath := findFile(dir, "gpscore")
	if configPath == "" {
		return Default(), nil
	}
	return LoadConfigFile(configPath)
}

// LoadConfigFile loads and validates a configuration from an explicit path
func LoadConfigFile(path string) (*FullConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg FullConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *FullConfig) applyDefaults() {
	if c.Scanners == nil {
		c.Scanners = &ScannerConfig{}
	}
	if c.Source.API == "" {
		c.Source.API = "rest"
	}
	if c.Source.Host == "" {
		c.Source.Host = "github.com"
	}
	if c.Source.TokenEnv == "" {
		c.Source.TokenEnv = "GITHUB_TOKEN"
	}
	if c.Source.Window == 0 {
		c.Source.Window = 5
	}
	if c.Source.Concurrency == 0 {
		c.Source.Concurrency = 4
	}
	if c.Source.Retries == 0 {
		c.Source.Retries = 3
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 10 * time.Second
	}
	if c.Source.InitialBackoff == 0 {
		c.Source.InitialBackoff = 500 * time.Millisecond
	}
	if c.Source.MaxBackoff == 0 {
		c.Source.MaxBackoff = 10 * time.Second
	}
	if c.Source.RequestsPerSecond == 0 {
		c.Source.RequestsPerSecond = 10
	}
	if c.Dedup.TieBreak == "" {
		c.Dedup.TieBreak = "first"
	}
	if c.Guides.Mode == "" {
		c.Guides.Mode = "per-finding"
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = ".gpscore/workspace"
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = ".gpscore/reports"
	}
	if c.Store.Path == "" {
		c.Store.Path = ".gpscore/runs.db"
	}
}

// Validate checks enumerations and ranges
func (c *FullConfig) Validate() error {
	switch c.Source.API {
	case "rest", "graphql":
	default:
		return fmt.Errorf("source.api must be rest or graphql, got %q", c.Source.API)
	}
	switch c.Dedup.TieBreak {
	case "first", "last":
	default:
		return fmt.Errorf("dedup.tie_break must be first or last, got %q", c.Dedup.TieBreak)
	}
	switch c.Guides.Mode {
	case "per-finding", "group":
	default:
		return fmt.Errorf("guides.mode must be per-finding or group, got %q", c.Guides.Mode)
	}
	if c.Source.Window < 0 {
		return fmt.Errorf("source.window must not be negative")
	}
	if c.Source.Concurrency < 1 {
		return fmt.Errorf("source.concurrency must be at least 1")
	}
	if c.Source.Retries < 0 {
		return fmt.Errorf("source.retries must not be negative")
	}

	for _, p := range []struct{ name, path string }{
		{"store.path", c.Store.Path},
		{"reports.dir", c.Reports.Dir},
		{"working directory", "."},
	} {
		if err := c.CheckProtected(p.name, p.path); err != nil {
			return err
		}
	}
	return nil
}

// CheckProtected rejects a path that the workspace root equals or contains.
// Every run clears the workspace root, so anything under it is lost.
func (c *FullConfig) CheckProtected(name, path string) error {
	if path == "" || c.Workspace.Root == "" {
		return nil
	}
	root, err := filepath.Abs(c.Workspace.Root)
	if err != nil {
		return fmt.Errorf("workspace.root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("workspace.root %s would clear %s %s", c.Workspace.Root, name, path)
	}
	return nil
}
