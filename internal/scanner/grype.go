package scanner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GrypeAdapter parses Grype (dependency and image) JSON reports
type GrypeAdapter struct{}

// NewGrypeAdapter creates a new Grype adapter
func NewGrypeAdapter() *GrypeAdapter {
	return &GrypeAdapter{}
}

// Name returns the scanner name
func (a *GrypeAdapter) Name() string {
	return "grype"
}

// Matches reports whether filename is a Grype report
func (a *GrypeAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "grype")
}

type grypeReport struct {
	Matches []grypeMatch `json:"matches"`
}

type grypeMatch struct {
	Vulnerability struct {
		ID          string `json:"id"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
		Fix         struct {
			Versions []string `json:"versions"`
			State    string   `json:"state"`
		} `json:"fix"`
	} `json:"vulnerability"`
	Artifact struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Type      string `json:"type"`
		Locations []struct {
			Path string `json:"path"`
		} `json:"locations"`
	} `json:"artifact"`
}

// Parse parses Grype JSON output into raw findings
func (a *GrypeAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var report grypeReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}

	results := make([]RawFinding, 0, len(report.Matches))
	for _, m := range report.Matches {
		vuln, art := m.Vulnerability, m.Artifact

		finding := RawFinding{
			Scanner:     a.Name(),
			RuleID:      vuln.ID,
			Title:       fmt.Sprintf("%s in %s", vuln.ID, art.Name),
			Description: vuln.Description,
			Severity:    vuln.Severity,
			Tags:        []string{"class:vulnerability"},
		}
		if len(art.Locations) > 0 {
			finding.FilePath = strings.TrimPrefix(art.Locations[0].Path, "/")
		}
		if len(vuln.Fix.Versions) > 0 {
			finding.Recommendation = fmt.Sprintf("Upgrade %s from %s to %s", art.Name, art.Version, strings.Join(vuln.Fix.Versions, " or "))
		}
		if art.Type != "" {
			finding.Tags = append(finding.Tags, "ecosystem:"+strings.ToLower(art.Type))
		}
		results = append(results, finding)
	}

	return results, nil
}
