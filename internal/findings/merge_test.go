package findings

import (
	"context"
	"reflect"
	"sort"
	"testing"
)

func newFinding(scanner, title, file string, line int, sev Severity, tags ...string) Finding {
	key := NewIdentityKey(scanner, title, file, line)
	return Finding{
		IdentityKey: key,
		Fingerprint: key.Fingerprint(),
		Scanner:     scanner,
		Title:       title,
		FilePath:    file,
		Line:        line,
		Severity:    sev,
		Tags:        tags,
		Occurrences: 1,
	}
}

func TestMerge(t *testing.T) {
	findings1 := []Finding{
		newFinding("bandit", "Hardcoded password", "app.py", 3, SeverityMedium),
		newFinding("bandit", "Use of assert", "app.py", 9, SeverityLow),
	}
	findings2 := []Finding{
		newFinding("semgrep", "SQL injection", "db.py", 12, SeverityHigh),
		newFinding("bandit", "hardcoded  PASSWORD", "./app.py", 3, SeverityHigh),
	}

	merged := Merge(findings1, findings2)

	if len(merged) != 3 {
		t.Fatalf("expected 3 findings after merge, got %d", len(merged))
	}
	if merged[0].Severity != SeverityHigh {
		t.Errorf("first finding should be high severity, got %s", merged[0].Severity)
	}
	if merged[len(merged)-1].Severity != SeverityLow {
		t.Errorf("last finding should be low severity, got %s", merged[len(merged)-1].Severity)
	}
}

func TestDeduplicateHighestSeverityWins(t *testing.T) {
	findings := []Finding{
		newFinding("trivy", "Open bucket", "main.tf", 4, SeverityMedium, "cwe:284"),
		newFinding("trivy", "Open bucket", "main.tf", 4, SeverityCritical, "scanner:trivy"),
		newFinding("trivy", "Open bucket", "main.tf", 4, SeverityLow, "extra"),
	}
	findings[1].Description = "winner"

	result, err := KeyDeduplicator{}.Deduplicate(context.Background(), findings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result))
	}

	got := result[0]
	if got.Severity != SeverityCritical || got.Description != "winner" {
		t.Errorf("expected critical winner, got %s %q", got.Severity, got.Description)
	}
	wantTags := []string{"cwe:284", "extra", "scanner:trivy"}
	if !reflect.DeepEqual(got.Tags, wantTags) {
		t.Errorf("tags = %v, want %v", got.Tags, wantTags)
	}
	if got.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", got.Occurrences)
	}
}

func TestDeduplicateTieBreak(t *testing.T) {
	first := newFinding("gitleaks", "AWS key", "cfg.env", 1, SeverityHigh)
	first.Description = "first"
	last := newFinding("gitleaks", "AWS key", "cfg.env", 1, SeverityHigh)
	last.Description = "last"

	tests := []struct {
		name   string
		policy TieBreak
		want   string
	}{
		{"default keeps first", "", "first"},
		{"first", TieBreakFirst, "first"},
		{"last", TieBreakLast, "last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := KeyDeduplicator{Policy: tt.policy}.Deduplicate(context.Background(), []Finding{first, last})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result[0].Description != tt.want {
				t.Errorf("winner = %q, want %q", result[0].Description, tt.want)
			}
		})
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	findings := []Finding{
		newFinding("semgrep", "XSS", "ui.js", 7, SeverityMedium, "b", "a"),
		newFinding("bandit", "Weak hash", "h.py", 2, SeverityLow),
		newFinding("semgrep", "XSS", "ui.js", 7, SeverityHigh, "c"),
		newFinding("bandit", "Weak hash", "h.py", 0, SeverityLow),
	}

	d := KeyDeduplicator{}
	once, err := d.Deduplicate(context.Background(), findings)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := d.Deduplicate(context.Background(), once)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup not idempotent:\n once=%+v\ntwice=%+v", once, twice)
	}
	if len(once) != 3 {
		t.Errorf("expected 3 unique keys, got %d", len(once))
	}
	if once[0].Scanner != "semgrep" || once[1].Scanner != "bandit" {
		t.Errorf("first-appearance order not preserved: %s, %s", once[0].Scanner, once[1].Scanner)
	}
}

func TestDeduplicateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (KeyDeduplicator{}).Deduplicate(ctx, nil); err == nil {
		t.Error("expected context error")
	}
}

func TestParseTieBreak(t *testing.T) {
	if p, err := ParseTieBreak(""); err != nil || p != TieBreakFirst {
		t.Errorf("ParseTieBreak(\"\") = %v, %v", p, err)
	}
	if p, err := ParseTieBreak("last"); err != nil || p != TieBreakLast {
		t.Errorf("ParseTieBreak(last) = %v, %v", p, err)
	}
	if _, err := ParseTieBreak("random"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestCountBySeverity(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
	}

	counts := CountBySeverity(findings)

	if counts[SeverityCritical] != 1 {
		t.Errorf("expected 1 critical, got %d", counts[SeverityCritical])
	}
	if counts[SeverityHigh] != 2 {
		t.Errorf("expected 2 high, got %d", counts[SeverityHigh])
	}
	if counts[SeverityMedium] != 1 || counts[SeverityLow] != 1 || counts[SeverityInfo] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestBySeverity(t *testing.T) {
	findings := []Finding{
		{Title: "Low", Severity: SeverityLow},
		{Title: "Critical", Severity: SeverityCritical},
		{Title: "Info", Severity: SeverityInfo},
		{Title: "High", Severity: SeverityHigh},
	}

	sort.Sort(BySeverity(findings))

	want := []string{"Critical", "High", "Low", "Info"}
	for i, title := range want {
		if findings[i].Title != title {
			t.Errorf("position %d: got %s, want %s", i, findings[i].Title, title)
		}
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"b", "a", ""}, nil, []string{"a", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeTags = %v, want %v", got, want)
	}
}
