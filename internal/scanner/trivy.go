package scanner

import (
	"encoding/json"
	"fmt"
)

// TrivyAdapter parses Trivy JSON reports (filesystem, config, and image scans)
type TrivyAdapter struct{}

// NewTrivyAdapter creates a new Trivy adapter
func NewTrivyAdapter() *TrivyAdapter {
	return &TrivyAdapter{}
}

// Name returns the scanner name
func (a *TrivyAdapter) Name() string {
	return "trivy"
}

// Matches reports whether filename is a Trivy report
func (a *TrivyAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "trivy")
}

type trivyReport struct {
	ArtifactName string            `json:"ArtifactName"`
	Results      []trivyFileResult `json:"Results"`
}

type trivyFileResult struct {
	Target            string           `json:"Target"`
	Class             string           `json:"Class"`
	Type              string           `json:"Type"`
	Misconfigurations []trivyMisconfig `json:"Misconfigurations"`
	Vulnerabilities   []trivyVuln      `json:"Vulnerabilities"`
	Secrets           []trivySecret    `json:"Secrets"`
}

type trivyMisconfig struct {
	ID            string `json:"ID"`
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	Message       string `json:"Message"`
	Resolution    string `json:"Resolution"`
	Severity      string `json:"Severity"`
	CauseMetadata struct {
		StartLine int `json:"StartLine"`
	} `json:"CauseMetadata"`
}

type trivyVuln struct {
	VulnerabilityID  string   `json:"VulnerabilityID"`
	PkgName          string   `json:"PkgName"`
	InstalledVersion string   `json:"InstalledVersion"`
	FixedVersion     string   `json:"FixedVersion"`
	Title            string   `json:"Title"`
	Description      string   `json:"Description"`
	Severity         string   `json:"Severity"`
	CweIDs           []string `json:"CweIDs"`
}

type trivySecret struct {
	RuleID    string `json:"RuleID"`
	Category  string `json:"Category"`
	Severity  string `json:"Severity"`
	Title     string `json:"Title"`
	StartLine int    `json:"StartLine"`
}

// Parse parses Trivy JSON output into raw findings
func (a *TrivyAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var report trivyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}

	results := []RawFinding{}
	for _, fileResult := range report.Results {
		for _, m := range fileResult.Misconfigurations {
			description := m.Description
			if m.Message != "" {
				description = m.Message
			}
			results = append(results, RawFinding{
				Scanner:        a.Name(),
				RuleID:         m.ID,
				Title:          m.Title,
				Description:    description,
				Recommendation: m.Resolution,
				Severity:       m.Severity,
				FilePath:       fileResult.Target,
				Line:           m.CauseMetadata.StartLine,
				Tags:           []string{"class:misconfiguration"},
			})
		}

		for _, v := range fileResult.Vulnerabilities {
			finding := RawFinding{
				Scanner:     a.Name(),
				RuleID:      v.VulnerabilityID,
				Title:       fmt.Sprintf("%s in %s", v.VulnerabilityID, v.PkgName),
				Description: firstNonEmpty(v.Title, v.Description),
				Severity:    v.Severity,
				FilePath:    fileResult.Target,
				Tags:        []string{"class:vulnerability"},
			}
			if v.FixedVersion != "" {
				finding.Recommendation = fmt.Sprintf("Upgrade %s from %s to %s", v.PkgName, v.InstalledVersion, v.FixedVersion)
			}
			for _, cwe := range v.CweIDs {
				if tag := cweTag(cwe); tag != "" {
					finding.Tags = append(finding.Tags, tag)
				}
			}
			results = append(results, finding)
		}

		for _, s := range fileResult.Secrets {
			results = append(results, RawFinding{
				Scanner:        a.Name(),
				RuleID:         s.RuleID,
				Title:          firstNonEmpty(s.Title, s.RuleID),
				Description:    fmt.Sprintf("%s secret detected", s.Category),
				Recommendation: "Revoke and rotate the exposed credential, then remove it from history",
				Severity:       s.Severity,
				FilePath:       fileResult.Target,
				Line:           s.StartLine,
				Tags:           []string{"class:secret", "cwe:798"},
			})
		}
	}

	return results, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
