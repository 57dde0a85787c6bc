package normalize

import "github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"

// severityTables maps each scanner's severity vocabulary onto the common
// scale. Keys are lowercase. Scanners without a table use genericSeverity.
var severityTables = map[string]map[string]findings.Severity{
	"bandit": {
		"high":   findings.SeverityHigh,
		"medium": findings.SeverityMedium,
		"low":    findings.SeverityLow,
	},
	"semgrep": {
		"error":   findings.SeverityHigh,
		"warning": findings.SeverityMedium,
		"info":    findings.SeverityLow,
	},
	"gitleaks": {
		"high": findings.SeverityHigh,
	},
	"checkov": {
		"critical": findings.SeverityCritical,
		"high":     findings.SeverityHigh,
		"medium":   findings.SeverityMedium,
		"low":      findings.SeverityLow,
		"info":     findings.SeverityInfo,
	},
	"trivy": {
		"critical": findings.SeverityCritical,
		"high":     findings.SeverityHigh,
		"medium":   findings.SeverityMedium,
		"low":      findings.SeverityLow,
		"unknown":  findings.SeverityInfo,
	},
	"grype": {
		"critical":   findings.SeverityCritical,
		"high":       findings.SeverityHigh,
		"medium":     findings.SeverityMedium,
		"low":        findings.SeverityLow,
		"negligible": findings.SeverityInfo,
		"unknown":    findings.SeverityInfo,
	},
}

// genericSeverity covers SARIF levels and the common five-level words
var genericSeverity = map[string]findings.Severity{
	"critical": findings.SeverityCritical,
	"high":     findings.SeverityHigh,
	"error":    findings.SeverityHigh,
	"medium":   findings.SeverityMedium,
	"moderate": findings.SeverityMedium,
	"warning":  findings.SeverityMedium,
	"low":      findings.SeverityLow,
	"note":     findings.SeverityLow,
	"info":     findings.SeverityInfo,
	"none":     findings.SeverityInfo,
}

// DefaultSeverity is assigned to unmapped raw severities
const DefaultSeverity = findings.SeverityMedium

// MapSeverity maps a scanner's raw severity. The second return is false when
// no table entry matched and the default was used.
func MapSeverity(scanner, raw string) (findings.Severity, bool) {
	table, ok := severityTables[scanner]
	if !ok {
		table = genericSeverity
	}
	if sev, ok := table[lower(raw)]; ok {
		return sev, true
	}
	return DefaultSeverity, false
}

// MapSARIFSeverity maps a severity taken from a SARIF log. SARIF levels and
// security-severity bands share one vocabulary whatever tool wrote the log.
func MapSARIFSeverity(raw string) (findings.Severity, bool) {
	if sev, ok := genericSeverity[lower(raw)]; ok {
		return sev, true
	}
	return DefaultSeverity, false
}
