// Package guide renders remediation documents for findings.
package guide

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

const stageGuides = "guides"

// Mode selects one document per finding or per (scanner, category) group
type Mode string

const (
	ModePerFinding Mode = "per-finding"
	ModeGroup      Mode = "group"
)

// ParseMode parses a guide mode; empty means per-finding
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePerFinding:
		return ModePerFinding, nil
	case ModeGroup:
		return ModeGroup, nil
	default:
		return "", fmt.Errorf("invalid guide mode %q", s)
	}
}

const uncategorized = "uncategorized"

// Document is one rendered remediation guide
type Document struct {
	ID           string            `json:"id"`
	FileName     string            `json:"file"`
	Title        string            `json:"title"`
	Severity     findings.Severity `json:"severity"`
	Scanner      string            `json:"scanner"`
	Category     string            `json:"category,omitempty"`
	TemplateID   string            `json:"template_id"`
	Fingerprints []string          `json:"fingerprints"`
	Body         string            `json:"-"`
}

type templateData struct {
	Finding  findings.Finding
	Findings []findings.Finding
	Files    []string
	Scanner  string
	Domain   string
	Category string
	Severity findings.Severity
}

// Generator renders documents from a catalog
type Generator struct {
	catalog *Catalog
	logger  zerolog.Logger
}

// New creates a generator
func New(catalog *Catalog, logger zerolog.Logger) *Generator {
	return &Generator{
		catalog: catalog,
		logger:  logger.With().Str("component", "guide").Logger(),
	}
}

// Generate renders one document per finding or per group. Missing templates
// fall back to the severity template and are reported once per
// (scanner, domains) combination.
func (g *Generator) Generate(in []findings.Finding, mode Mode) ([]Document, []findings.Diagnostic) {
	var groups [][]findings.Finding
	switch mode {
	case ModeGroup:
		groups = groupFindings(in)
	default:
		for _, f := range in {
			groups = append(groups, []findings.Finding{f})
		}
	}

	var docs []Document
	var diags []findings.Diagnostic
	fallbackSeen := make(map[string]bool)
	usedNames := make(map[string]int)

	for _, group := range groups {
		rep := representative(group)
		domains := rep.TagValues("domain")

		tmpl, err := g.catalog.Select(rep.Scanner, domains)
		if err != nil {
			key := err.Error()
			if !fallbackSeen[key] {
				fallbackSeen[key] = true
				diags = append(diags, findings.Diagnostic{
					Stage:   stageGuides,
					Code:    findings.CodeTemplateFallback,
					Level:   findings.LevelInfo,
					Subject: rep.Scanner + "|" + strings.Join(domains, ","),
					Message: err.Error() + ", using severity fallback",
				})
			}
			tmpl = g.catalog.Fallback(rep.Severity)
		}

		data := templateData{
			Finding:  rep,
			Findings: group,
			Files:    distinctFiles(group),
			Scanner:  rep.Scanner,
			Domain:   firstOr(domains, ""),
			Category: category(rep),
			Severity: rep.Severity,
		}

		remediation, templateID, rerr := render(tmpl, data)
		if rerr != nil {
			diags = append(diags, findings.Diagnostic{
				Stage:   stageGuides,
				Code:    findings.CodeGuideGenerationFailed,
				Level:   findings.LevelWarning,
				Subject: templateID,
				Message: rerr.Error(),
			})
			g.logger.Warn().Err(rerr).Str("template", templateID).Msg("template render failed")
		}

		doc := Document{
			Severity:     rep.Severity,
			Scanner:      rep.Scanner,
			TemplateID:   templateID,
			Fingerprints: fingerprints(group),
		}
		if mode == ModeGroup {
			doc.Category = data.Category
			doc.ID = "group-" + slug(rep.Scanner) + "-" + slug(data.Category)
			doc.Title = fmt.Sprintf("%s %s findings (%d)", rep.Scanner, data.Category, len(group))
			doc.Body = groupBody(doc.Title, group, remediation)
		} else {
			doc.ID = rep.Fingerprint
			doc.Title = rep.Title
			doc.Body = findingBody(rep, remediation)
		}
		doc.FileName = uniqueName(usedNames, baseName(doc, rep, mode))

		docs = append(docs, doc)
	}

	g.logger.Debug().Int("documents", len(docs)).Str("mode", string(mode)).Msg("guides generated")
	return docs, diags
}

// render executes tmpl, falling back to the finding's own recommendation
func render(tmpl *Template, data templateData) (string, string, error) {
	if tmpl == nil || tmpl.tmpl == nil {
		return plainRemediation(data.Finding), "builtin", nil
	}

	var buf bytes.Buffer
	if err := tmpl.tmpl.Execute(&buf, data); err != nil {
		return plainRemediation(data.Finding), tmpl.ID, fmt.Errorf("failed to render template %s: %w", tmpl.ID, err)
	}
	return strings.TrimSpace(buf.String()), tmpl.ID, nil
}

func plainRemediation(f findings.Finding) string {
	if f.Recommendation != "" {
		return f.Recommendation
	}
	return "Review the flagged code and apply the scanner's guidance."
}

// groupFindings groups by (scanner, category) keeping first-appearance order
func groupFindings(in []findings.Finding) [][]findings.Finding {
	index := make(map[string]int)
	var groups [][]findings.Finding
	for _, f := range in {
		key := f.Scanner + "|" + category(f)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], f)
	}
	return groups
}

// representative is the most severe finding, first on ties
func representative(group []findings.Finding) findings.Finding {
	rep := group[0]
	for _, f := range group[1:] {
		if f.Severity.Rank() > rep.Severity.Rank() {
			rep = f
		}
	}
	return rep
}

func category(f findings.Finding) string {
	cats := f.TagValues("category")
	sort.Strings(cats)
	return firstOr(cats, uncategorized)
}

func firstOr(list []string, def string) string {
	if len(list) == 0 {
		return def
	}
	return list[0]
}

func distinctFiles(group []findings.Finding) []string {
	seen := make(map[string]bool)
	var files []string
	for _, f := range group {
		if f.FilePath != "" && !seen[f.FilePath] {
			seen[f.FilePath] = true
			files = append(files, f.FilePath)
		}
	}
	return files
}

func fingerprints(group []findings.Finding) []string {
	out := make([]string, len(group))
	for i, f := range group {
		out[i] = f.Fingerprint
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		return "finding"
	}
	return s
}

func baseName(doc Document, rep findings.Finding, mode Mode) string {
	if mode == ModeGroup {
		return slug(rep.Scanner) + "-" + slug(doc.Category)
	}
	name := slug(rep.Scanner) + "-" + slug(rep.Title)
	if len(rep.Fingerprint) >= 8 {
		name += "-" + rep.Fingerprint[:8]
	}
	return name
}

func uniqueName(used map[string]int, base string) string {
	used[base]++
	if n := used[base]; n > 1 {
		return fmt.Sprintf("%s-%d.md", base, n)
	}
	return base + ".md"
}
