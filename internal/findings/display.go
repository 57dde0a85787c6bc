package findings

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// DisplayOptions controls how findings are displayed
type DisplayOptions struct {
	ShowTags        bool
	ShowDescription bool
	TruncateDesc    int
	ShowAll         bool
	MaxDisplay      int
}

// DefaultDisplayOptions returns default display settings
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		MaxDisplay: 5,
	}
}

// DetailedDisplayOptions returns settings for detailed display
func DetailedDisplayOptions() DisplayOptions {
	return DisplayOptions{
		ShowTags:        true,
		ShowDescription: true,
		TruncateDesc:    150,
		ShowAll:         true,
	}
}

// DisplayFindings writes a list of findings with the given options
func DisplayFindings(w io.Writer, findings []Finding, opts DisplayOptions) {
	maxDisplay := opts.MaxDisplay
	if opts.ShowAll || len(findings) < maxDisplay {
		maxDisplay = len(findings)
	}

	for i := 0; i < maxDisplay; i++ {
		f := findings[i]
		fmt.Fprintf(w, "%d. %s %s\n", i+1, SeverityEmoji(f.Severity), f.Title)
		fmt.Fprintf(w, "   Scanner: %s  Location: %s\n", f.Scanner, f.Location())

		if opts.ShowTags && len(f.Tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(f.Tags, ", "))
		}

		if opts.ShowDescription && f.Description != "" {
			desc := f.Description
			if opts.TruncateDesc > 0 && len(desc) > opts.TruncateDesc {
				desc = desc[:opts.TruncateDesc] + "..."
			}
			fmt.Fprintf(w, "   Description: %s\n", desc)
		}

		if opts.ShowAll {
			fmt.Fprintln(w)
		}
	}

	if !opts.ShowAll && len(findings) > maxDisplay {
		fmt.Fprintf(w, "\n... and %d more finding(s)\n", len(findings)-maxDisplay)
	}
}

// DisplaySummary writes a summary of findings by severity and scanner
func DisplaySummary(w io.Writer, run *Run) {
	counts := CountBySeverity(run.Findings)

	fmt.Fprintf(w, "Summary: 🟣 Critical: %d  🔴 High: %d  🟡 Medium: %d  🟢 Low: %d  🔵 Info: %d  (Total: %d)\n",
		counts[SeverityCritical], counts[SeverityHigh], counts[SeverityMedium],
		counts[SeverityLow], counts[SeverityInfo], len(run.Findings))
	fmt.Fprintf(w, "📈 Aggregate risk score: %.1f\n", run.AggregateRiskScore())

	byScanner := CountByScanner(run.Findings)
	if len(byScanner) > 0 {
		fmt.Fprintln(w)
		for _, name := range sortedKeys(byScanner) {
			fmt.Fprintf(w, "🔍 %-12s %d finding(s)\n", name+":", byScanner[name])
		}
	}

	if run.Partial {
		fmt.Fprintln(w, "\n⚠️  Source enrichment was partial")
	}
	if len(run.Diagnostics) > 0 {
		fmt.Fprintf(w, "⚠️  %d diagnostic(s) recorded\n", len(run.Diagnostics))
	}
}

// SeverityEmoji returns the emoji for a severity level
func SeverityEmoji(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "🟣"
	case SeverityHigh:
		return "🔴"
	case SeverityMedium:
		return "🟡"
	case SeverityLow:
		return "🟢"
	case SeverityInfo:
		return "🔵"
	default:
		return "⚪"
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
