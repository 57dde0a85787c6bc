package findings

import (
	"encoding/json"
	"sort"
	"time"
)

// Diagnostic levels
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Diagnostic codes attached to a run for soft failures
const (
	CodeAdapterParseError     = "adapter_parse_error"
	CodeSeverityUnmapped      = "severity_unmapped"
	CodeSourceAccessDenied    = "source_access_denied"
	CodeSourceFetchTimeout    = "source_fetch_timeout"
	CodeSourceFetchFailed     = "source_fetch_failed"
	CodeSourceNotFound        = "source_not_found"
	CodeSourceLineOutOfRange  = "source_line_out_of_range"
	CodeEnrichmentCancelled   = "enrichment_cancelled"
	CodeEnrichmentSkipped     = "enrichment_skipped"
	CodeTemplateFallback      = "template_fallback"
	CodeIgnoredFindings       = "ignored_findings"
	CodeSnapshotStoreError    = "snapshot_store_error"
	CodeScannerSkipped        = "scanner_skipped"
	CodeGuideGenerationFailed = "guide_generation_failed"
)

// Diagnostic records a recovered failure so it is surfaced rather than dropped
type Diagnostic struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Level   string `json:"level"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Comparison is the result of comparing two runs by identity
type Comparison struct {
	PreviousRunID string   `json:"previous_run_id,omitempty"`
	New           []string `json:"new"`
	Resolved      []string `json:"resolved"`
	Persisting    []string `json:"persisting"`
}

// Run is one execution of the pipeline over one artifact bundle
type Run struct {
	ID          string       `json:"run_id"`
	Timestamp   time.Time    `json:"timestamp"`
	SourceEvent string       `json:"source_event,omitempty"`
	Repository  string       `json:"repository,omitempty"`
	Ref         string       `json:"ref,omitempty"`
	Findings    []Finding    `json:"findings"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Partial     bool         `json:"partial_enrichment"`
	Comparison  *Comparison  `json:"comparison,omitempty"`
}

// AggregateRiskScore sums the risk weight of every finding. It is always
// computed from the finding set and never stored.
func (r *Run) AggregateRiskScore() float64 {
	var total float64
	for _, f := range r.Findings {
		total += f.RiskWeight
	}
	return total
}

// AddDiagnostic appends a diagnostic to the run
func (r *Run) AddDiagnostic(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// MarshalJSON emits the run with its derived aggregate score
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run
	return json.Marshal(struct {
		plain
		AggregateRiskScore float64 `json:"aggregate_risk_score"`
	}{
		plain:              plain(r),
		AggregateRiskScore: r.AggregateRiskScore(),
	})
}

// ByFingerprint indexes findings by their fingerprint
func ByFingerprint(findings []Finding) map[string]Finding {
	index := make(map[string]Finding, len(findings))
	for _, f := range findings {
		index[f.Fingerprint] = f
	}
	return index
}

// MergeTags unions tag lists, dropping empties and duplicates, sorted
func MergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, list := range lists {
		for _, tag := range list {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			result = append(result, tag)
		}
	}

	sort.Strings(result)
	return result
}

// CountBySeverity returns counts of findings by severity level
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// CountByScanner returns counts of findings per scanner
func CountByScanner(findings []Finding) map[string]int {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[f.Scanner]++
	}
	return counts
}
