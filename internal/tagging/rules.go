package tagging

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// DomainRule assigns domain:<name>
type DomainRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	CWEs     []string `yaml:"cwes"`
	Scanners []string `yaml:"scanners"`
	Tags     []string `yaml:"tags"`
}

// FileTypeRule assigns file-type:<name>; the first matching rule wins
type FileTypeRule struct {
	Name             string   `yaml:"name"`
	Extensions       []string `yaml:"extensions"`
	BasenamePrefixes []string `yaml:"basename_prefixes"`
	PathMarkers      []string `yaml:"path_markers"`
}

// PlatformRule assigns platform:<name>
type PlatformRule struct {
	Name      string   `yaml:"name"`
	FileTypes []string `yaml:"file_types"`
	Keywords  []string `yaml:"keywords"`
}

// CategoryRule assigns category:<name>
type CategoryRule struct {
	Name      string   `yaml:"name"`
	Scanners  []string `yaml:"scanners"`
	Domains   []string `yaml:"domains"`
	FileTypes []string `yaml:"file_types"`
	Tags      []string `yaml:"tags"`
}

// Rules holds every taxonomy's lookup tables
type Rules struct {
	Priority   map[string][]string `yaml:"priority"`
	Domains    []DomainRule        `yaml:"domains"`
	FileTypes  []FileTypeRule      `yaml:"file_types"`
	Platforms  []PlatformRule      `yaml:"platforms"`
	Categories []CategoryRule      `yaml:"categories"`
	Compliance map[string][]string `yaml:"compliance"`
}

// DefaultRules returns the embedded rule set
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// ParseRules parses and validates a rules document
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse tagging rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// LoadRules returns the default rules extended with the rules file at path
func LoadRules(path string) (*Rules, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tagging rules: %w", err)
	}
	var extra Rules
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse tagging rules %s: %w", path, err)
	}

	rules.Merge(&extra)
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Merge adds other's rules. Priority entries in other reassign severities.
func (r *Rules) Merge(other *Rules) {
	if len(other.Priority) > 0 {
		reassigned := make(map[string]bool)
		for _, sevs := range other.Priority {
			for _, s := range sevs {
				reassigned[s] = true
			}
		}
		for name, sevs := range r.Priority {
			kept := sevs[:0:0]
			for _, s := range sevs {
				if !reassigned[s] {
					kept = append(kept, s)
				}
			}
			r.Priority[name] = kept
		}
		for name, sevs := range other.Priority {
			r.Priority[name] = append(r.Priority[name], sevs...)
		}
	}

	r.Domains = append(r.Domains, other.Domains...)
	r.FileTypes = append(r.FileTypes, other.FileTypes...)
	r.Platforms = append(r.Platforms, other.Platforms...)
	r.Categories = append(r.Categories, other.Categories...)

	if r.Compliance == nil {
		r.Compliance = make(map[string][]string)
	}
	for domain, frameworks := range other.Compliance {
		r.Compliance[domain] = append(r.Compliance[domain], frameworks...)
	}
}

// Validate checks that every severity maps to exactly one priority
func (r *Rules) Validate() error {
	owner := make(map[findings.Severity]string)
	for name, sevs := range r.Priority {
		for _, s := range sevs {
			sev, err := findings.ParseSeverity(s)
			if err != nil {
				return fmt.Errorf("priority %s: %w", name, err)
			}
			if prev, dup := owner[sev]; dup && prev != name {
				return fmt.Errorf("severity %s assigned to priorities %s and %s", sev, prev, name)
			}
			owner[sev] = name
		}
	}
	for _, sev := range findings.Severities {
		if _, ok := owner[sev]; !ok {
			return fmt.Errorf("severity %s has no priority", sev)
		}
	}
	return nil
}

// priorityIndex inverts the priority table
func (r *Rules) priorityIndex() map[findings.Severity]string {
	index := make(map[findings.Severity]string)
	for name, sevs := range r.Priority {
		for _, s := range sevs {
			if sev, err := findings.ParseSeverity(s); err == nil {
				index[sev] = name
			}
		}
	}
	return index
}
