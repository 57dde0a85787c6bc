package guide

import (
	"fmt"
	"strings"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

// findingBody formats a single-finding guide
func findingBody(f findings.Finding, remediation string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", findings.SeverityEmoji(f.Severity), f.Title)
	writeHeader(&b, f)

	if f.Description != "" {
		fmt.Fprintf(&b, "## Summary\n%s\n\n", f.Description)
	}

	if f.SourceContext != nil {
		b.WriteString("## Source\n")
		writeSnippet(&b, f.SourceContext)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Remediation\n%s\n\n", remediation)

	if f.Recommendation != "" && !strings.Contains(remediation, f.Recommendation) {
		fmt.Fprintf(&b, "## Recommendation\n%s\n\n", f.Recommendation)
	}

	writeFooter(&b, f.Fingerprint)
	return b.String()
}

// groupBody formats a guide covering several findings
func groupBody(title string, group []findings.Finding, remediation string) string {
	var b strings.Builder

	rep := representative(group)
	fmt.Fprintf(&b, "# %s %s\n\n", findings.SeverityEmoji(rep.Severity), title)
	fmt.Fprintf(&b, "## Remediation\n%s\n\n", remediation)
	b.WriteString("## Findings\n\n")

	for _, f := range group {
		fmt.Fprintf(&b, "### %s %s\n\n", findings.SeverityEmoji(f.Severity), f.Title)
		writeHeader(&b, f)
		if f.SourceContext != nil {
			writeSnippet(&b, f.SourceContext)
			b.WriteString("\n")
		}
	}

	writeFooter(&b, fmt.Sprintf("%d finding(s)", len(group)))
	return b.String()
}

func writeHeader(b *strings.Builder, f findings.Finding) {
	fmt.Fprintf(b, "**Severity:** %s · **Scanner:** %s", f.Severity, f.Scanner)
	if f.RuleID != "" {
		fmt.Fprintf(b, " · **Rule:** `%s`", f.RuleID)
	}
	b.WriteString("\n")
	if loc := f.Location(); loc != "" {
		fmt.Fprintf(b, "**Location:** `%s`\n", loc)
	}
	if len(f.Tags) > 0 {
		fmt.Fprintf(b, "**Tags:** `%s`\n", strings.Join(f.Tags, "`, `"))
	}
	b.WriteString("\n")
}

// writeSnippet renders the context lines with the offending line marked >>
func writeSnippet(b *strings.Builder, sc *findings.SourceContext) {
	last := sc.StartLine + len(sc.Lines) - 1
	width := len(fmt.Sprint(last))

	fence := snippetFence(sc.Lines)
	b.WriteString(fence + "\n")
	for i, line := range sc.Lines {
		marker := "  "
		if i == sc.Highlight {
			marker = ">>"
		}
		fmt.Fprintf(b, "%s %*d | %s\n", marker, width, sc.StartLine+i, line)
	}
	b.WriteString(fence + "\n")
}

// snippetFence returns a backtick fence longer than any backtick run in lines
func snippetFence(lines []string) string {
	longest := 0
	for _, line := range lines {
		run := 0
		for _, r := range line {
			if r == '`' {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func writeFooter(b *strings.Builder, ref string) {
	fmt.Fprintf(b, "---\n*Generated by gpscore · %s*\n", ref)
}
