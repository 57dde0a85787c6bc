package findings

import (
	"strings"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
)

// Filter filters findings based on ignore configuration
func Filter(findings []Finding, cfg *config.IgnoreConfig) (filtered []Finding, ignoredCount int) {
	if cfg == nil {
		return findings, 0
	}

	acceptedFingerprints := cfg.GetAcceptedFingerprints()
	acceptedTitles := cfg.GetAcceptedTitles()
	filtered = make([]Finding, 0, len(findings))

	for _, finding := range findings {
		if shouldIgnore(finding, cfg, acceptedFingerprints, acceptedTitles) {
			ignoredCount++
			continue
		}
		filtered = append(filtered, finding)
	}

	return filtered, ignoredCount
}

// FilterBySeverity returns only findings at or above the minimum severity.
// An empty or invalid minimum keeps everything.
func FilterBySeverity(findings []Finding, minSeverity string) []Finding {
	min, err := ParseSeverity(minSeverity)
	if err != nil || min == SeverityInfo {
		return findings
	}

	filtered := make([]Finding, 0, len(findings))
	for _, finding := range findings {
		if finding.Severity.Rank() >= min.Rank() {
			filtered = append(filtered, finding)
		}
	}

	return filtered
}

// shouldIgnore determines if a finding should be ignored based on config
func shouldIgnore(finding Finding, cfg *config.IgnoreConfig, fingerprints, titles map[string]bool) bool {
	if fingerprints[finding.Fingerprint] {
		return true
	}
	if titles[strings.ToLower(CollapseWhitespace(finding.Title))] {
		return true
	}

	if matchesTitlePattern(finding.Title, cfg.IgnorePatterns) {
		return true
	}

	if finding.FilePath != "" && cfg.MatchesPath(NormalizePath(finding.FilePath)) {
		return true
	}

	return false
}

// matchesTitlePattern applies simple glob patterns: *x*, *x, x*, or substring
func matchesTitlePattern(title string, patterns []string) bool {
	titleLower := strings.ToLower(title)
	for _, pattern := range patterns {
		patternLower := strings.ToLower(strings.TrimSpace(pattern))
		if patternLower == "" {
			continue
		}

		switch {
		case strings.HasPrefix(patternLower, "*") && strings.HasSuffix(patternLower, "*"):
			if strings.Contains(titleLower, strings.Trim(patternLower, "*")) {
				return true
			}
		case strings.HasPrefix(patternLower, "*"):
			if strings.HasSuffix(titleLower, strings.TrimPrefix(patternLower, "*")) {
				return true
			}
		case strings.HasSuffix(patternLower, "*"):
			if strings.HasPrefix(titleLower, strings.TrimSuffix(patternLower, "*")) {
				return true
			}
		default:
			if strings.Contains(titleLower, patternLower) {
				return true
			}
		}
	}
	return false
}
