package scanner

import (
	"encoding/json"
	"strings"
)

// SemgrepAdapter parses Semgrep JSON reports
type SemgrepAdapter struct{}

// NewSemgrepAdapter creates a new Semgrep adapter
func NewSemgrepAdapter() *SemgrepAdapter {
	return &SemgrepAdapter{}
}

// Name returns the scanner name
func (a *SemgrepAdapter) Name() string {
	return "semgrep"
}

// Matches reports whether filename is a Semgrep report
func (a *SemgrepAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "semgrep")
}

type semgrepReport struct {
	Results []semgrepResult `json:"results"`
}

type semgrepResult struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`
	Start   struct {
		Line int `json:"line"`
	} `json:"start"`
	Extra struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
		Fix      string `json:"fix"`
		Metadata struct {
			CWE        json.RawMessage `json:"cwe"`
			Category   string          `json:"category"`
			References []string        `json:"references"`
		} `json:"metadata"`
	} `json:"extra"`
}

// Parse parses Semgrep JSON output into raw findings
func (a *SemgrepAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var report semgrepReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}

	results := make([]RawFinding, 0, len(report.Results))
	for _, r := range report.Results {
		finding := RawFinding{
			Scanner:     a.Name(),
			RuleID:      r.CheckID,
			Title:       ruleTitle(r.CheckID),
			Description: r.Extra.Message,
			Severity:    r.Extra.Severity,
			FilePath:    r.Path,
			Line:        r.Start.Line,
		}
		if r.Extra.Fix != "" {
			finding.Recommendation = "Suggested fix: " + r.Extra.Fix
		} else if len(r.Extra.Metadata.References) > 0 {
			finding.Recommendation = "See " + r.Extra.Metadata.References[0]
		}
		for _, cwe := range semgrepCWEs(r.Extra.Metadata.CWE) {
			if tag := cweTag(cwe); tag != "" {
				finding.Tags = append(finding.Tags, tag)
			}
		}
		results = append(results, finding)
	}

	return results, nil
}

// ruleTitle turns a dotted rule id into its last segment, which is stable
// across runs unlike the interpolated message
func ruleTitle(checkID string) string {
	if i := strings.LastIndex(checkID, "."); i >= 0 && i < len(checkID)-1 {
		return strings.ReplaceAll(checkID[i+1:], "-", " ")
	}
	return checkID
}

// semgrepCWEs accepts either a string or a list of "CWE-89: ..." entries
func semgrepCWEs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []string{single}
	}

	ids := make([]string, 0, len(list))
	for _, entry := range list {
		id, _, _ := strings.Cut(entry, ":")
		ids = append(ids, id)
	}
	return ids
}
