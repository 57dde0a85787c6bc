package scanner

import (
	"encoding/json"
	"fmt"
)

// GitleaksAdapter parses Gitleaks JSON reports
type GitleaksAdapter struct{}

// NewGitleaksAdapter creates a new Gitleaks adapter
func NewGitleaksAdapter() *GitleaksAdapter {
	return &GitleaksAdapter{}
}

// Name returns the scanner name
func (a *GitleaksAdapter) Name() string {
	return "gitleaks"
}

// Matches reports whether filename is a Gitleaks report
func (a *GitleaksAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "gitleaks")
}

type gitleaksFinding struct {
	Description string   `json:"Description"`
	File        string   `json:"File"`
	StartLine   int      `json:"StartLine"`
	RuleID      string   `json:"RuleID"`
	Commit      string   `json:"Commit"`
	Tags        []string `json:"Tags"`
}

// Parse parses Gitleaks JSON output into raw findings. Gitleaks carries no
// severity, so every leak is reported as high.
func (a *GitleaksAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var leaks []gitleaksFinding
	if err := json.Unmarshal(raw, &leaks); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}

	results := make([]RawFinding, 0, len(leaks))
	for _, leak := range leaks {
		title := leak.Description
		if title == "" {
			title = leak.RuleID
		}
		finding := RawFinding{
			Scanner:        a.Name(),
			RuleID:         leak.RuleID,
			Title:          title,
			Description:    fmt.Sprintf("Secret matching rule %s detected", leak.RuleID),
			Recommendation: "Revoke and rotate the exposed credential, then remove it from history",
			Severity:       "high",
			FilePath:       leak.File,
			Line:           leak.StartLine,
			Tags:           []string{"cwe:798"},
		}
		results = append(results, finding)
	}

	return results, nil
}
