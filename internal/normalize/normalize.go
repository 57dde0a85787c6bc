// Package normalize converts raw scanner records into canonical findings.
package normalize

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/scanner"
)

// Normalizer maps raw findings onto the canonical model
type Normalizer struct {
	logger zerolog.Logger
}

// New creates a normalizer
func New(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With().Str("component", "normalize").Logger()}
}

// Normalize converts raw findings, returning one audit diagnostic per
// (scanner, raw severity) pair that had no mapping
func (n *Normalizer) Normalize(raws []scanner.RawFinding) ([]findings.Finding, []findings.Diagnostic) {
	out := make([]findings.Finding, 0, len(raws))
	var diags []findings.Diagnostic
	reported := make(map[string]bool)

	for _, raw := range raws {
		f := Finding(raw)
		out = append(out, f)

		if !f.SeverityUnmapped {
			continue
		}
		key := f.Scanner + "|" + lower(raw.Severity)
		if reported[key] {
			continue
		}
		reported[key] = true

		n.logger.Warn().Str("scanner", f.Scanner).Str("raw_severity", raw.Severity).Msg("unmapped severity, defaulting to medium")
		diags = append(diags, findings.Diagnostic{
			Stage:   "normalize",
			Code:    findings.CodeSeverityUnmapped,
			Level:   findings.LevelWarning,
			Subject: f.Scanner,
			Message: fmt.Sprintf("severity %q from %s has no mapping; used %s", raw.Severity, f.Scanner, DefaultSeverity),
		})
	}

	return out, diags
}

// Finding normalizes a single raw record
func Finding(raw scanner.RawFinding) findings.Finding {
	scannerName := lower(raw.Scanner)
	sev, mapped := MapSeverity(scannerName, raw.Severity)
	if raw.Format == scanner.FormatSARIF {
		sev, mapped = MapSARIFSeverity(raw.Severity)
	}

	title := findings.CollapseWhitespace(raw.Title)
	if title == "" {
		title = findings.CollapseWhitespace(raw.RuleID)
	}
	path := findings.NormalizePath(raw.FilePath)
	line := raw.Line
	if line < 0 {
		line = 0
	}

	key := findings.NewIdentityKey(scannerName, title, path, line)
	tags := append([]string{"scanner:" + scannerName}, raw.Tags...)

	return findings.Finding{
		IdentityKey:      key,
		Fingerprint:      key.Fingerprint(),
		Scanner:          scannerName,
		RuleID:           raw.RuleID,
		Title:            title,
		Description:      findings.CollapseWhitespace(raw.Description),
		Recommendation:   strings.TrimSpace(raw.Recommendation),
		Severity:         sev,
		RawSeverity:      raw.Severity,
		SeverityUnmapped: !mapped,
		FilePath:         path,
		Line:             line,
		Tags:             findings.MergeTags(tags),
		Occurrences:      1,
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
