package tagging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

func newTestTagger(t *testing.T) *Tagger {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return New(rules, zerolog.Nop())
}

func countPrefix(tags []string, prefix string) int {
	n := 0
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix+":") {
			n++
		}
	}
	return n
}

func TestDefaultRulesValid(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Domains)
	assert.NotEmpty(t, rules.FileTypes)
}

func TestPriorityMapping(t *testing.T) {
	tagger := newTestTagger(t)

	tests := []struct {
		severity findings.Severity
		want     string
	}{
		{findings.SeverityCritical, "priority:urgent"},
		{findings.SeverityHigh, "priority:urgent"},
		{findings.SeverityMedium, "priority:medium"},
		{findings.SeverityLow, "priority:low"},
		{findings.SeverityInfo, "priority:low"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			tags := tagger.Tag(findings.Finding{Scanner: "bandit", Severity: tt.severity})
			assert.Contains(t, tags, tt.want)
			assert.Equal(t, 1, countPrefix(tags, TaxonomyPriority))
		})
	}
}

func TestTagReplacesStalePriority(t *testing.T) {
	tagger := newTestTagger(t)
	f := findings.Finding{Scanner: "trivy", Severity: findings.SeverityCritical, Tags: []string{"priority:low", "scanner:trivy"}}

	tags := tagger.Tag(f)

	assert.Contains(t, tags, "priority:urgent")
	assert.NotContains(t, tags, "priority:low")
	assert.Equal(t, 1, countPrefix(tags, TaxonomyScanner))
}

func TestTagSecretInEnvFile(t *testing.T) {
	tagger := newTestTagger(t)
	f := findings.Finding{
		Scanner:  "gitleaks",
		Title:    "AWS Access Key",
		FilePath: "deploy/.env",
		Severity: findings.SeverityHigh,
		Tags:     []string{"cwe:798", "scanner:gitleaks"},
	}

	tags := tagger.Tag(f)

	for _, want := range []string{
		"scanner:gitleaks",
		"priority:urgent",
		"domain:secrets",
		"file-type:environment",
		"platform:aws",
		"category:secrets",
		"compliance:pci-dss",
		"cwe:798",
	} {
		assert.Contains(t, tags, want)
	}
}

func TestTagTerraformMisconfig(t *testing.T) {
	tagger := newTestTagger(t)
	f := findings.Finding{
		Scanner:  "checkov",
		Title:    "S3 Bucket has an ACL defined which allows public READ access.",
		FilePath: "infra/s3.tf",
		Severity: findings.SeverityHigh,
	}

	tags := tagger.Tag(f)

	assert.Contains(t, tags, "file-type:terraform")
	assert.Contains(t, tags, "domain:access-control")
	assert.Contains(t, tags, "platform:aws")
	assert.Contains(t, tags, "category:iac")
	assert.Contains(t, tags, "compliance:cis")
}

func TestFileTypeMatching(t *testing.T) {
	tagger := newTestTagger(t)

	tests := map[string]string{
		"Dockerfile":               "dockerfile",
		"build/Dockerfile.prod":    "dockerfile",
		"k8s/deploy.yaml":          "kubernetes",
		"deploy/k8s/svc.yml":       "kubernetes",
		".github/workflows/ci.yml": "ci-pipeline",
		"requirements.txt":         "dependency-manifest",
		"web/package.json":         "dependency-manifest",
		"app/main.py":              "python",
		"config/settings.yaml":     "config",
		"README":                   "",
		"":                         "",
	}

	for p, want := range tests {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, want, tagger.matchFileType(p))
		})
	}
}

func TestKeywordsMatchWholeWords(t *testing.T) {
	text := wordText("Use of insecure MD5 hash; api_key leaked")
	assert.True(t, anyKeyword(text, []string{"md5"}))
	assert.True(t, anyKeyword(text, []string{"api key"}))
	assert.False(t, anyKeyword(text, []string{"md"}))
	assert.False(t, anyKeyword(text, []string{""}))
}

func TestTagEveryFindingHasScannerAndPriority(t *testing.T) {
	tagger := newTestTagger(t)
	in := []findings.Finding{
		{Scanner: "bandit", Severity: findings.SeverityLow, Title: "assert used"},
		{Scanner: "grype", Severity: findings.SeverityInfo, Title: "GHSA-1 in flask", Tags: []string{"class:vulnerability"}},
		{Scanner: "codeql", Severity: findings.SeverityMedium},
	}

	out := tagger.Apply(in)

	require.Len(t, out, 3)
	for _, f := range out {
		assert.GreaterOrEqual(t, countPrefix(f.Tags, TaxonomyScanner), 1)
		assert.Equal(t, 1, countPrefix(f.Tags, TaxonomyPriority))
	}
	assert.Contains(t, out[1].Tags, "category:dependency")
	assert.Nil(t, in[0].Tags, "input must not be modified")
}

func TestTagIsIdempotent(t *testing.T) {
	tagger := newTestTagger(t)
	f := findings.Finding{Scanner: "semgrep", Severity: findings.SeverityHigh, Title: "formatted sql query", FilePath: "app/db.py"}

	once := tagger.Tag(f)
	f.Tags = once
	assert.Equal(t, once, tagger.Tag(f))
}

func TestLoadRulesMergesExtraFile(t *testing.T) {
	extra := `
priority:
  urgent: [medium]
domains:
  - name: payments
    keywords: [stripe, card]
compliance:
  payments: [pci-dss]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(extra), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	tagger := New(rules, zerolog.Nop())
	tags := tagger.Tag(findings.Finding{Scanner: "semgrep", Severity: findings.SeverityMedium, Title: "Stripe card logged"})

	assert.Contains(t, tags, "priority:urgent")
	assert.Contains(t, tags, "domain:payments")
	assert.Contains(t, tags, "compliance:pci-dss")
	assert.Equal(t, 1, countPrefix(tags, TaxonomyPriority))
}

func TestValidateRejectsIncompletePriority(t *testing.T) {
	_, err := ParseRules([]byte("priority:\n  urgent: [critical]\n"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("priority:\n  a: [critical, high, medium, low, info]\n  b: [high]\n"))
	assert.Error(t, err)
}
