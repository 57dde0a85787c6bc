// Package report persists a run's findings, guides and summary to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/guide"
)

const (
	FindingsFile = "findings.json"
	SummaryFile  = "summary.md"
	GuidesDir    = "guides"
	IndexFile    = "index.json"

	topFindingsLimit = 30
)

// Index is the machine-readable list of guides written for a run
type Index struct {
	RunID  string           `json:"run_id"`
	Guides []guide.Document `json:"guides"`
}

// Write stores findings.json, summary.md and guides/ under dir. Guides left
// from an earlier run are removed first.
func Write(dir string, run *findings.Run, docs []guide.Document) error {
	if run == nil {
		return fmt.Errorf("no run to write")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, FindingsFile), data); err != nil {
		return err
	}

	if err := writeGuides(filepath.Join(dir, GuidesDir), run.ID, docs); err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(dir, SummaryFile), []byte(Summary(run, docs)))
}

func writeGuides(dir, runID string, docs []guide.Document) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear stale guides: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create guides dir: %w", err)
	}

	for _, doc := range docs {
		name := filepath.Base(doc.FileName)
		if name == "." || name == string(filepath.Separator) || name == IndexFile {
			return fmt.Errorf("invalid guide file name %q", doc.FileName)
		}
		if err := writeFileAtomic(filepath.Join(dir, name), []byte(doc.Body)); err != nil {
			return err
		}
	}

	index := Index{RunID: runID, Guides: docs}
	if index.Guides == nil {
		index.Guides = []guide.Document{}
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode guide index: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, IndexFile), data)
}

// writeFileAtomic writes through a temp file in the same directory and renames
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Summary renders the markdown overview of a run
func Summary(run *findings.Run, docs []guide.Document) string {
	var sb strings.Builder

	sb.WriteString("# gpscore Report\n\n")
	fmt.Fprintf(&sb, "**Run:** `%s`\n", run.ID)
	fmt.Fprintf(&sb, "**Timestamp:** %s\n", run.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	if run.Repository != "" {
		fmt.Fprintf(&sb, "**Repository:** %s", run.Repository)
		if run.Ref != "" {
			fmt.Fprintf(&sb, "@%s", run.Ref)
		}
		sb.WriteString("\n")
	}
	if run.SourceEvent != "" {
		fmt.Fprintf(&sb, "**Source event:** %s\n", run.SourceEvent)
	}
	fmt.Fprintf(&sb, "**Aggregate risk score:** %.1f\n", run.AggregateRiskScore())
	if run.Partial {
		sb.WriteString("\n> ⚠️ Source enrichment was interrupted; some findings have no source context.\n")
	}
	sb.WriteString("\n")

	counts := findings.CountBySeverity(run.Findings)
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	for _, sev := range findings.Severities {
		fmt.Fprintf(&sb, "| %s %s | %d |\n", findings.SeverityEmoji(sev), titleCase(string(sev)), counts[sev])
	}
	fmt.Fprintf(&sb, "| Total | %d |\n\n", len(run.Findings))

	if c := run.Comparison; c != nil {
		sb.WriteString("## Changes\n\n")
		if c.PreviousRunID != "" {
			fmt.Fprintf(&sb, "Compared with run `%s`.\n\n", c.PreviousRunID)
		}
		fmt.Fprintf(&sb, "- New: %d\n- Resolved: %d\n- Persisting: %d\n\n", len(c.New), len(c.Resolved), len(c.Persisting))
	}

	guideFor := make(map[string]string)
	for _, d := range docs {
		for _, fp := range d.Fingerprints {
			guideFor[fp] = d.FileName
		}
	}

	sb.WriteString("## Top Findings\n\n")
	if len(run.Findings) == 0 {
		sb.WriteString("_No findings._\n\n")
	} else {
		sb.WriteString("| Sev | Scanner | Title | Location | Risk | Guide |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")

		limit := topFindingsLimit
		if len(run.Findings) < limit {
			limit = len(run.Findings)
		}
		for _, f := range run.Findings[:limit] {
			link := ""
			if name, ok := guideFor[f.Fingerprint]; ok {
				link = fmt.Sprintf("[guide](%s/%s)", GuidesDir, name)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | `%s` | %.1f | %s |\n",
				f.Severity, f.Scanner, cell(f.Title), f.Location(), f.RiskWeight, link)
		}
		if len(run.Findings) > topFindingsLimit {
			fmt.Fprintf(&sb, "\n*...and %d more findings inside %s*\n", len(run.Findings)-topFindingsLimit, FindingsFile)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Diagnostics\n\n")
	if len(run.Diagnostics) == 0 {
		sb.WriteString("_None._\n")
	} else {
		sb.WriteString("| Level | Stage | Code | Subject | Message |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- |\n")
		for _, d := range run.Diagnostics {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				d.Level, d.Stage, d.Code, cell(d.Subject), cell(d.Message))
		}
	}

	return sb.String()
}

// cell sanitizes text for a markdown table
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
