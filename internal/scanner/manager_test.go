package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
)

func copyFixtures(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for _, name := range names {
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, readFixture(t, name), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, dest)
	}
	return files
}

func TestManagerDetectReports(t *testing.T) {
	mgr := NewManager(&config.ScannerConfig{Disabled: []string{"grype"}}, zerolog.Nop())

	files := []string{"/r/trivy.json", "/r/grype.json", "/r/bandit.json", "/r/notes.txt", "/r/codeql.sarif"}
	assignments, skipped := mgr.DetectReports(files)

	var got []string
	for _, a := range assignments {
		got = append(got, a.Adapter.Name())
	}
	want := []string{"bandit", "trivy", "sarif"}
	if len(got) != len(want) {
		t.Fatalf("assignments = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("assignment %d = %s, want %s", i, got[i], want[i])
		}
	}

	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %d", len(skipped))
	}
	reasons := map[string]string{}
	for _, s := range skipped {
		reasons[filepath.Base(s.File)] = s.Reason
	}
	if reasons["grype.json"] != "disabled in config" {
		t.Errorf("grype reason = %q", reasons["grype.json"])
	}
	if reasons["notes.txt"] != "no adapter for report" {
		t.Errorf("notes reason = %q", reasons["notes.txt"])
	}
}

func TestManagerParseAll(t *testing.T) {
	files := copyFixtures(t, "trivy.json", "bandit.json", "gitleaks.json")
	mgr := NewManager(&config.ScannerConfig{}, zerolog.Nop())

	findings, statuses := mgr.ParseAll(context.Background(), files)

	if len(findings) != 6 {
		t.Fatalf("expected 6 raw findings, got %d", len(findings))
	}
	// adapter order: bandit, gitleaks, trivy
	if findings[0].Scanner != "bandit" || findings[2].Scanner != "gitleaks" || findings[3].Scanner != "trivy" {
		t.Errorf("findings not in adapter order: %s %s %s", findings[0].Scanner, findings[2].Scanner, findings[3].Scanner)
	}

	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Ran || s.Error != nil {
			t.Errorf("status %s: expected success, got %+v", s.Name, s)
		}
	}
}

func TestManagerParseAllRecoversFromBrokenReport(t *testing.T) {
	files := copyFixtures(t, "bandit-malformed.json", "semgrep.json")
	mgr := NewManager(nil, zerolog.Nop())

	findings, statuses := mgr.ParseAll(context.Background(), files)

	if len(findings) != 1 || findings[0].Scanner != "semgrep" {
		t.Fatalf("expected only the semgrep finding, got %+v", findings)
	}

	var failed *ScannerStatus
	for i := range statuses {
		if statuses[i].Name == "bandit" {
			failed = &statuses[i]
		}
	}
	if failed == nil {
		t.Fatal("missing bandit status")
	}
	if failed.Ran {
		t.Error("bandit should not be marked as ran")
	}
	var parseErr *AdapterParseError
	if !errors.As(failed.Error, &parseErr) {
		t.Fatalf("expected *AdapterParseError, got %T", failed.Error)
	}
	if parseErr.File != files[0] {
		t.Errorf("error file = %q, want %q", parseErr.File, files[0])
	}
}

func TestManagerParseAllNoReports(t *testing.T) {
	mgr := NewManager(nil, zerolog.Nop())
	findings, statuses := mgr.ParseAll(context.Background(), nil)
	if findings == nil || len(findings) != 0 || len(statuses) != 0 {
		t.Errorf("expected empty results, got %v %v", findings, statuses)
	}
}

func TestManagerParseAllCancelled(t *testing.T) {
	files := copyFixtures(t, "semgrep.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	findings, statuses := NewManager(nil, zerolog.Nop()).ParseAll(ctx, files)
	if len(findings) != 0 {
		t.Errorf("expected no findings after cancellation, got %d", len(findings))
	}
	if len(statuses) != 1 || statuses[0].Error == nil {
		t.Errorf("expected cancelled status, got %+v", statuses)
	}
}

func TestManagerParseAllToolNamedSARIF(t *testing.T) {
	dir := t.TempDir()
	log := readFixture(t, "results.sarif")
	var files []string
	for _, name := range []string{"codeql.sarif", "semgrep.sarif.json", "trivy.sarif.json"} {
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, log, 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, dest)
	}

	findings, statuses := NewManager(nil, zerolog.Nop()).ParseAll(context.Background(), files)

	if len(findings) != 6 {
		t.Fatalf("expected 6 raw findings, got %d", len(findings))
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if s.Name != "sarif" || !s.Ran || s.Found != 2 {
			t.Errorf("%s: expected sarif adapter with 2 findings, got %+v", filepath.Base(s.File), s)
		}
	}
}
