package scanner

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SARIFAdapter parses SARIF 2.1.0 reports from any tool. The scanner name
// is taken from each run's tool driver.
type SARIFAdapter struct{}

// NewSARIFAdapter creates a new SARIF adapter
func NewSARIFAdapter() *SARIFAdapter {
	return &SARIFAdapter{}
}

// Name returns the adapter name
func (a *SARIFAdapter) Name() string {
	return "sarif"
}

// Matches reports whether filename is a SARIF report
func (a *SARIFAdapter) Matches(filename string) bool {
	base := strings.ToLower(filepath.Base(filename))
	return strings.HasSuffix(base, ".sarif") || strings.HasSuffix(base, ".sarif.json")
}

type sarifReport struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool struct {
		Driver struct {
			Name  string      `json:"name"`
			Rules []sarifRule `json:"rules"`
		} `json:"driver"`
	} `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
	Help             sarifMessage `json:"help"`
	Properties       struct {
		SecuritySeverity string   `json:"security-severity"`
		Tags             []string `json:"tags"`
	} `json:"properties"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []struct {
		PhysicalLocation struct {
			ArtifactLocation struct {
				URI string `json:"uri"`
			} `json:"artifactLocation"`
			Region struct {
				StartLine int `json:"startLine"`
			} `json:"region"`
		} `json:"physicalLocation"`
	} `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

// Parse parses a SARIF log into raw findings
func (a *SARIFAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var report sarifReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}
	if report.Runs == nil {
		return []RawFinding{}, parseError(a.Name(), fmt.Errorf("no runs in SARIF log"))
	}

	results := []RawFinding{}
	for _, run := range report.Runs {
		tool := sarifToolName(run.Tool.Driver.Name)
		rules := make(map[string]sarifRule, len(run.Tool.Driver.Rules))
		for _, r := range run.Tool.Driver.Rules {
			rules[r.ID] = r
		}

		for _, res := range run.Results {
			rule := rules[res.RuleID]
			finding := RawFinding{
				Scanner:        tool,
				RuleID:         res.RuleID,
				Title:          firstNonEmpty(rule.ShortDescription.Text, rule.Name, res.RuleID),
				Description:    res.Message.Text,
				Recommendation: rule.Help.Text,
				Severity:       sarifSeverity(res.Level, rule.Properties.SecuritySeverity),
				Format:         FormatSARIF,
			}
			if len(res.Locations) > 0 {
				loc := res.Locations[0].PhysicalLocation
				finding.FilePath = strings.TrimPrefix(loc.ArtifactLocation.URI, "file://")
				finding.Line = loc.Region.StartLine
			}
			for _, tag := range rule.Properties.Tags {
				if strings.HasPrefix(strings.ToUpper(tag), "CWE-") {
					if t := cweTag(tag); t != "" {
						finding.Tags = append(finding.Tags, t)
					}
				}
			}
			results = append(results, finding)
		}
	}

	return results, nil
}

// sarifToolName reduces a driver name such as "Semgrep OSS" to "semgrep"
func sarifToolName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return "sarif"
	}
	return fields[0]
}

// sarifSeverity prefers the numeric security-severity property (CVSS bands)
// and otherwise falls back to the result level
func sarifSeverity(level, securitySeverity string) string {
	if score, err := strconv.ParseFloat(securitySeverity, 64); err == nil {
		switch {
		case score >= 9.0:
			return "critical"
		case score >= 7.0:
			return "high"
		case score >= 4.0:
			return "medium"
		case score > 0:
			return "low"
		default:
			return "info"
		}
	}
	if level == "" {
		return "warning"
	}
	return level
}
