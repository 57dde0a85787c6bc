// Package tagging assigns multi-taxonomy classification tags to findings.
package tagging

import (
	"path"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

// Taxonomy prefixes
const (
	TaxonomyScanner    = "scanner"
	TaxonomyPriority   = "priority"
	TaxonomyDomain     = "domain"
	TaxonomyFileType   = "file-type"
	TaxonomyPlatform   = "platform"
	TaxonomyCategory   = "category"
	TaxonomyCompliance = "compliance"
)

// Tagger applies Rules to findings
type Tagger struct {
	rules      *Rules
	priorities map[findings.Severity]string
	logger     zerolog.Logger
}

// New creates a tagger over a validated rule set
func New(rules *Rules, logger zerolog.Logger) *Tagger {
	return &Tagger{
		rules:      rules,
		priorities: rules.priorityIndex(),
		logger:     logger.With().Str("component", "tagging").Logger(),
	}
}

// Apply returns tagged copies of the findings
func (t *Tagger) Apply(in []findings.Finding) []findings.Finding {
	out := make([]findings.Finding, len(in))
	for i, f := range in {
		f.Tags = t.Tag(f)
		out[i] = f
	}
	t.logger.Debug().Int("findings", len(out)).Msg("tags applied")
	return out
}

// Tag computes the full tag set for a finding. Existing tags are kept except
// priority, which is recomputed so exactly one is present.
func (t *Tagger) Tag(f findings.Finding) []string {
	var tags []string
	for _, tag := range f.Tags {
		if !strings.HasPrefix(tag, TaxonomyPriority+":") {
			tags = append(tags, tag)
		}
	}

	tags = append(tags, TaxonomyScanner+":"+f.Scanner)

	priority, ok := t.priorities[f.Severity]
	if !ok {
		priority = t.priorities[findings.SeverityMedium]
	}
	tags = append(tags, TaxonomyPriority+":"+priority)

	text := wordText(f.Title + " " + f.Description + " " + f.RuleID)

	domains := t.matchDomains(f, text)
	for _, d := range domains {
		tags = append(tags, TaxonomyDomain+":"+d)
	}

	fileType := t.matchFileType(f.FilePath)
	if fileType != "" {
		tags = append(tags, TaxonomyFileType+":"+fileType)
	}

	for _, p := range t.rules.Platforms {
		if contains(p.FileTypes, fileType) || anyKeyword(text, p.Keywords) {
			tags = append(tags, TaxonomyPlatform+":"+p.Name)
		}
	}

	for _, c := range t.rules.Categories {
		if contains(c.Scanners, f.Scanner) || contains(c.FileTypes, fileType) ||
			intersects(c.Domains, domains) || intersects(c.Tags, f.Tags) {
			tags = append(tags, TaxonomyCategory+":"+c.Name)
		}
	}

	for _, d := range domains {
		for _, framework := range t.rules.Compliance[d] {
			tags = append(tags, TaxonomyCompliance+":"+framework)
		}
	}

	return findings.MergeTags(tags)
}

func (t *Tagger) matchDomains(f findings.Finding, text string) []string {
	cwes := f.TagValues("cwe")
	var domains []string
	for _, d := range t.rules.Domains {
		if anyKeyword(text, d.Keywords) || contains(d.Scanners, f.Scanner) ||
			intersects(d.CWEs, cwes) || intersects(d.Tags, f.Tags) {
			if !contains(domains, d.Name) {
				domains = append(domains, d.Name)
			}
		}
	}
	return domains
}

// matchFileType returns the first file-type rule matching the path
func (t *Tagger) matchFileType(filePath string) string {
	if filePath == "" {
		return ""
	}
	p := strings.ToLower(findings.NormalizePath(filePath))
	base := path.Base(p)
	ext := path.Ext(base)

	for _, rule := range t.rules.FileTypes {
		if len(rule.PathMarkers) > 0 {
			if !hasMarker(p, rule.PathMarkers) {
				continue
			}
			if len(rule.Extensions) == 0 || contains(rule.Extensions, ext) {
				return rule.Name
			}
			continue
		}
		if contains(rule.Extensions, ext) {
			return rule.Name
		}
		for _, prefix := range rule.BasenamePrefixes {
			if strings.HasPrefix(base, prefix) {
				return rule.Name
			}
		}
	}
	return ""
}

func hasMarker(p string, markers []string) bool {
	for _, m := range markers {
		if strings.HasPrefix(p, m) || strings.Contains(p, "/"+m) {
			return true
		}
	}
	return false
}

// wordText lowercases s and reduces it to space-separated alphanumeric words
// with a leading and trailing space, so keywords can be matched as " kw "
func wordText(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

func anyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		w := wordText(kw)
		if w != "  " && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
