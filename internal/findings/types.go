package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// Severity is the common five-level scale every scanner is mapped onto
type Severity string

// Severity levels
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists the levels from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank returns an integer rank for comparison (critical=5, info=1, unknown=0)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return sev, nil
}

// ValidateSeverity checks if a severity string is valid
func ValidateSeverity(severity string) bool {
	_, err := ParseSeverity(severity)
	return err == nil
}

// IdentityKey identifies logically equivalent findings.
// All components are stored in canonical form; use NewIdentityKey to build one.
type IdentityKey struct {
	Scanner  string `json:"scanner"`
	Title    string `json:"title"`
	FilePath string `json:"file_path"`
	Line     int    `json:"line,omitempty"`
}

// NewIdentityKey canonicalizes the tuple (lowercase, trimmed, collapsed whitespace)
func NewIdentityKey(scanner, title, filePath string, line int) IdentityKey {
	if line < 0 {
		line = 0
	}
	return IdentityKey{
		Scanner:  strings.ToLower(strings.TrimSpace(scanner)),
		Title:    strings.ToLower(CollapseWhitespace(title)),
		FilePath: strings.ToLower(NormalizePath(filePath)),
		Line:     line,
	}
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Scanner, k.Title, k.FilePath, k.Line)
}

// Fingerprint returns a short stable hash of the key
func (k IdentityKey) Fingerprint() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:16])
}

// CollapseWhitespace trims s and replaces internal whitespace runs with one space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePath converts a report path to a clean slash-separated relative form
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}

// SourceContext is the snippet of source surrounding a finding.
// Lines[Highlight] is the offending line; StartLine is the 1-based number of Lines[0].
type SourceContext struct {
	Ref       string   `json:"ref,omitempty"`
	StartLine int      `json:"start_line"`
	Lines     []string `json:"lines"`
	Highlight int      `json:"highlight"`
}

// LineNumber returns the 1-based line the snippet is centered on
func (c *SourceContext) LineNumber() int {
	return c.StartLine + c.Highlight
}

// Contains reports whether the snippet covers the given line
func (c *SourceContext) Contains(line int) bool {
	if c == nil || line <= 0 {
		return false
	}
	idx := line - c.StartLine
	return idx >= 0 && idx < len(c.Lines) && idx == c.Highlight
}

// Finding represents a single normalized detection
type Finding struct {
	IdentityKey      IdentityKey    `json:"identity_key"`
	Fingerprint      string         `json:"fingerprint"`
	Scanner          string         `json:"scanner"`
	RuleID           string         `json:"rule_id,omitempty"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Recommendation   string         `json:"recommendation,omitempty"`
	Severity         Severity       `json:"severity"`
	RawSeverity      string         `json:"raw_severity,omitempty"`
	SeverityUnmapped bool           `json:"severity_unmapped,omitempty"`
	FilePath         string         `json:"file_path,omitempty"`
	Line             int            `json:"line,omitempty"`
	Tags             []string       `json:"tags"`
	SourceContext    *SourceContext `json:"source_context,omitempty"`
	RiskWeight       float64        `json:"risk_weight"`
	FirstSeenRunID   string         `json:"first_seen_run_id,omitempty"`
	LastSeenRunID    string         `json:"last_seen_run_id,omitempty"`
	Occurrences      int            `json:"occurrences"`
}

// HasTag reports whether the finding carries the exact tag
func (f Finding) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagValues returns the values of all tags in a taxonomy ("domain" -> ["secrets"])
func (f Finding) TagValues(taxonomy string) []string {
	prefix := taxonomy + ":"
	var values []string
	for _, t := range f.Tags {
		if strings.HasPrefix(t, prefix) {
			values = append(values, strings.TrimPrefix(t, prefix))
		}
	}
	return values
}

// Location renders file:line, or just the file when there is no line
func (f Finding) Location() string {
	if f.FilePath == "" {
		return "(no file)"
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.FilePath, f.Line)
	}
	return f.FilePath
}

// BySeverity implements sort.Interface for []Finding, most severe first
type BySeverity []Finding

func (a BySeverity) Len() int      { return len(a) }
func (a BySeverity) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a BySeverity) Less(i, j int) bool {
	return a[i].Severity.Rank() > a[j].Severity.Rank()
}
