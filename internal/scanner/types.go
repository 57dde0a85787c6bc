package scanner

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RawFinding is one detection as the source tool reported it, before
// severity mapping and identity assignment
type RawFinding struct {
	Scanner        string
	RuleID         string
	Title          string
	Description    string
	Recommendation string
	Severity       string
	FilePath       string
	Line           int
	Tags           []string
	Format         string // FormatSARIF when Severity uses SARIF vocabulary
}

// FormatSARIF marks records parsed from a SARIF log
const FormatSARIF = "sarif"

// Adapter parses one scanner family's native report format
type Adapter interface {
	// Name returns the scanner name
	Name() string

	// Matches reports whether a report file belongs to this adapter
	Matches(filename string) bool

	// Parse converts a raw report into raw findings. It performs no I/O.
	Parse(raw []byte) ([]RawFinding, error)
}

// AdapterParseError is returned when a report cannot be parsed. The run
// continues with an empty result for that report.
type AdapterParseError struct {
	Scanner string
	File    string
	Err     error
}

func (e *AdapterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: failed to parse %s: %v", e.Scanner, e.File, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse report: %v", e.Scanner, e.Err)
}

func (e *AdapterParseError) Unwrap() error {
	return e.Err
}

// ScannerStatus represents the outcome of processing one report file
type ScannerStatus struct {
	Name    string
	File    string
	Skipped bool
	Reason  string // Why it was skipped
	Ran     bool   // Whether it parsed successfully
	Found   int    // Number of raw findings
	Error   error  // Error if parsing failed
}

// ParseResult contains results from one report
type ParseResult struct {
	Scanner  string
	File     string
	Findings []RawFinding
	Error    error
}

// errEmptyReport is wrapped in an AdapterParseError for blank input
var errEmptyReport = fmt.Errorf("empty report")

func parseError(scanner string, err error) error {
	return &AdapterParseError{Scanner: scanner, Err: err}
}

// checkEmpty rejects whitespace-only reports
func checkEmpty(scanner string, raw []byte) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return parseError(scanner, errEmptyReport)
	}
	return nil
}

// matchesJSONReport matches <...name...>.json report files. SARIF logs named
// after a tool (semgrep.sarif.json) belong to the SARIF adapter.
func matchesJSONReport(filename, name string) bool {
	base := strings.ToLower(filepath.Base(filename))
	if strings.HasSuffix(base, ".sarif.json") {
		return false
	}
	return strings.HasSuffix(base, ".json") && strings.Contains(base, name)
}

func cweTag(id string) string {
	id = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(id), "CWE-"))
	if id == "" || id == "0" {
		return ""
	}
	return "cwe:" + id
}
