package scanner

import (
	"encoding/json"
	"strconv"
)

// BanditAdapter parses Bandit (Python SAST) JSON reports
type BanditAdapter struct{}

// NewBanditAdapter creates a new Bandit adapter
func NewBanditAdapter() *BanditAdapter {
	return &BanditAdapter{}
}

// Name returns the scanner name
func (a *BanditAdapter) Name() string {
	return "bandit"
}

// Matches reports whether filename is a Bandit report
func (a *BanditAdapter) Matches(filename string) bool {
	return matchesJSONReport(filename, "bandit")
}

type banditReport struct {
	Results []banditResult `json:"results"`
}

type banditResult struct {
	Filename        string `json:"filename"`
	LineNumber      int    `json:"line_number"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	IssueText       string `json:"issue_text"`
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name"`
	MoreInfo        string `json:"more_info"`
	IssueCWE        struct {
		ID int `json:"id"`
	} `json:"issue_cwe"`
}

// Parse parses Bandit JSON output into raw findings
func (a *BanditAdapter) Parse(raw []byte) ([]RawFinding, error) {
	if err := checkEmpty(a.Name(), raw); err != nil {
		return []RawFinding{}, err
	}

	var report banditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return []RawFinding{}, parseError(a.Name(), err)
	}

	results := make([]RawFinding, 0, len(report.Results))
	for _, r := range report.Results {
		finding := RawFinding{
			Scanner:     a.Name(),
			RuleID:      r.TestID,
			Title:       r.IssueText,
			Description: r.TestName,
			Severity:    r.IssueSeverity,
			FilePath:    r.Filename,
			Line:        r.LineNumber,
		}
		if r.MoreInfo != "" {
			finding.Recommendation = "See " + r.MoreInfo
		}
		if tag := cweTag(strconv.Itoa(r.IssueCWE.ID)); tag != "" {
			finding.Tags = append(finding.Tags, tag)
		}
		results = append(results, finding)
	}

	return results, nil
}
