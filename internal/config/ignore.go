package config

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"
)

// IgnoreConfig represents the gpscore-ignore.yaml configuration
type IgnoreConfig struct {
	Accepted       []AcceptedItem `yaml:"accepted"`
	IgnorePaths    []string       `yaml:"ignore_paths"`
	IgnorePatterns []string       `yaml:"ignore_patterns"`

	matcher *ignore.GitIgnore
}

// AcceptedItem represents an accepted-risk finding, matched by fingerprint or title
type AcceptedItem struct {
	Fingerprint  string `yaml:"fingerprint,omitempty"`
	Title        string `yaml:"title,omitempty"`
	Reason       string `yaml:"reason,omitempty"`
	AcceptedBy   string `yaml:"accepted_by,omitempty"`
	AcceptedDate string `yaml:"accepted_date,omitempty"`
}

// LoadIgnoreConfig loads .github/gpscore-ignore.yaml under dir.
// Returns an empty config if the file doesn't exist.
func LoadIgnoreConfig(dir string) (*IgnoreConfig, error) {
	configPath := findFile(dir, "gpscore-ignore")
	if configPath == "" {
		return &IgnoreConfig{}, nil
	}
	return LoadIgnoreConfigFile(configPath)
}

// LoadIgnoreConfigFile loads an ignore configuration from an explicit path
func LoadIgnoreConfigFile(path string) (*IgnoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg IgnoreConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetAcceptedFingerprints returns a set of accepted finding fingerprints
func (c *IgnoreConfig) GetAcceptedFingerprints() map[string]bool {
	fingerprints := make(map[string]bool)
	for _, item := range c.Accepted {
		if item.Fingerprint != "" {
			fingerprints[strings.ToLower(item.Fingerprint)] = true
		}
	}
	return fingerprints
}

// GetAcceptedTitles returns a set of accepted titles, lowercased with
// whitespace collapsed
func (c *IgnoreConfig) GetAcceptedTitles() map[string]bool {
	titles := make(map[string]bool)
	for _, item := range c.Accepted {
		if item.Title != "" {
			titles[strings.ToLower(strings.Join(strings.Fields(item.Title), " "))] = true
		}
	}
	return titles
}

// MatchesPath checks if a slash-separated path matches the gitignore-style ignore_paths
func (c *IgnoreConfig) MatchesPath(path string) bool {
	if len(c.IgnorePaths) == 0 || path == "" {
		return false
	}
	if c.matcher == nil {
		c.matcher = ignore.CompileIgnoreLines(c.IgnorePaths...)
	}
	return c.matcher.MatchesPath(path)
}

// findFile returns the first existing .github/<stem>.yaml or .yml under dir
func findFile(dir, stem string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(dir, ".github", stem+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
