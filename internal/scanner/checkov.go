package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CheckovAdapter parses Checkov JSON reports
type CheckovAdapter struct{}

// NewCheckovAdapter creates a new Checkov adapter
func NewCheckovAdapter() *CheckovAdapter {
	return &CheckovAdapter{}
}

// Name returns the scanner name
func (a *CheckovAdapter) Name() string {
	return "checkov"
}

// Matches reports whether filename is a Checkov report
func (a *CheckovAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "checkov")
}

// checkovResult represents one check-type block of Checkov output
type checkovResult struct {
	CheckType string              `json:"check_type"`
	Results   checkovResultDetail `json:"results"`
}

type checkovResultDetail struct {
	FailedChecks []checkovCheck `json:"failed_checks"`
}

type checkovCheck struct {
	CheckID       string  `json:"check_id"`
	CheckName     string  `json:"check_name"`
	FilePath      string  `json:"file_path"`
	FileLineRange []int   `json:"file_line_range"`
	Resource      string  `json:"resource"`
	Guideline     string  `json:"guideline"`
	Severity      *string `json:"severity"`
}

// Parse parses Checkov JSON output into raw findings. Checkov emits a single
// object for one framework and an array when several frameworks ran.
func (a *CheckovAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var blocks []checkovResult
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return []RawFinding{}, parseError(a.Name(), err)
		}
	} else {
		var single checkovResult
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return []RawFinding{}, parseError(a.Name(), err)
		}
		blocks = []checkovResult{single}
	}

	var results []RawFinding
	for _, block := range blocks {
		for _, check := range block.Results.FailedChecks {
			finding := RawFinding{
				Scanner:        a.Name(),
				RuleID:         check.CheckID,
				Title:          check.CheckName,
				Description:    fmt.Sprintf("Checkov check %s failed for resource: %s", check.CheckID, check.Resource),
				Recommendation: check.Guideline,
				Severity:       checkovSeverity(check),
				FilePath:       strings.TrimPrefix(check.FilePath, "/"),
			}
			if len(check.FileLineRange) > 0 {
				finding.Line = check.FileLineRange[0]
			}
			if block.CheckType != "" {
				finding.Tags = append(finding.Tags, "framework:"+strings.ToLower(block.CheckType))
			}
			results = append(results, finding)
		}
	}

	if results == nil {
		results = []RawFinding{}
	}
	return results, nil
}

// checkovSeverity uses the reported severity when present. Open-source Checkov
// leaves it null, so well-known high-impact checks fall back to HIGH by id.
func checkovSeverity(check checkovCheck) string {
	if check.Severity != nil && *check.Severity != "" {
		return *check.Severity
	}

	for _, id := range highImpactChecks {
		if strings.Contains(check.CheckID, id) {
			return "HIGH"
		}
	}
	return "MEDIUM"
}

// highImpactChecks lists check id fragments treated as high when Checkov omits severity
var highImpactChecks = []string{
	"CKV_AWS_18", // S3 bucket logging
	"CKV_AWS_19", // S3 bucket encryption
	"CKV_AWS_20", // S3 public access
	"CKV_AWS_21", // S3 versioning
	"CKV_K8S_8",  // Privileged containers
	"CKV_K8S_16", // Container capabilities
	"SECRETS",
}
