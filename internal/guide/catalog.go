package guide

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Wildcard matches any scanner or any domain
const Wildcard = "*"

// Template is one remediation entry in the catalog
type Template struct {
	ID       string `yaml:"id"`
	Scanner  string `yaml:"scanner"`
	Domain   string `yaml:"domain"`
	Severity string `yaml:"severity"`
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`

	tmpl *template.Template
}

// TemplateNotFoundError means no scanner/domain specific template matched
type TemplateNotFoundError struct {
	Scanner string
	Domains []string
}

func (e *TemplateNotFoundError) Error() string {
	domains := "none"
	if len(e.Domains) > 0 {
		domains = strings.Join(e.Domains, ",")
	}
	return fmt.Sprintf("no remediation template for scanner %q with domains %s", e.Scanner, domains)
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
	Fallbacks []Template `yaml:"fallbacks"`
}

// Catalog holds remediation templates keyed by (scanner, domain) plus one
// fallback per severity
type Catalog struct {
	templates map[string]*Template
	fallbacks map[findings.Severity]*Template
}

func catalogKey(scanner, domain string) string {
	return strings.ToLower(scanner) + "|" + strings.ToLower(domain)
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultTemplatesYAML)
}

// ParseCatalog parses a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{
		templates: make(map[string]*Template),
		fallbacks: make(map[findings.Severity]*Template),
	}
	if err := c.add(data); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir merges every .yaml/.yml file in dir into the catalog, in file name
// order. Entries with an existing (scanner, domain) or severity replace it.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read templates dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := c.add(data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Catalog) add(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	for i := range file.Templates {
		t := file.Templates[i]
		if t.Scanner == "" || t.Domain == "" {
			return fmt.Errorf("template %q needs scanner and domain (use %q for any)", t.ID, Wildcard)
		}
		if t.Scanner == Wildcard && t.Domain == Wildcard {
			return fmt.Errorf("template %q: use a severity fallback instead of */*", t.ID)
		}
		if err := t.compile(); err != nil {
			return err
		}
		c.templates[catalogKey(t.Scanner, t.Domain)] = &t
	}

	for i := range file.Fallbacks {
		t := file.Fallbacks[i]
		sev, err := findings.ParseSeverity(t.Severity)
		if err != nil {
			return fmt.Errorf("fallback %q: %w", t.ID, err)
		}
		if err := t.compile(); err != nil {
			return err
		}
		c.fallbacks[sev] = &t
	}
	return nil
}

func (t *Template) compile() error {
	if t.ID == "" {
		return fmt.Errorf("template without id")
	}
	tmpl, err := template.New(t.ID).Funcs(funcs).Option("missingkey=zero").Parse(t.Body)
	if err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	t.tmpl = tmpl
	return nil
}

// Select finds the most specific template for a scanner and its domain tags:
// (scanner, domain), then (scanner, *), then (*, domain). Domains are tried
// in sorted order so selection is deterministic.
func (c *Catalog) Select(scanner string, domains []string) (*Template, error) {
	sorted := append([]string(nil), domains...)
	sort.Strings(sorted)

	for _, d := range sorted {
		if t, ok := c.templates[catalogKey(scanner, d)]; ok {
			return t, nil
		}
	}
	if t, ok := c.templates[catalogKey(scanner, Wildcard)]; ok {
		return t, nil
	}
	for _, d := range sorted {
		if t, ok := c.templates[catalogKey(Wildcard, d)]; ok {
			return t, nil
		}
	}
	return nil, &TemplateNotFoundError{Scanner: scanner, Domains: sorted}
}

// Fallback returns the generic template for a severity
func (c *Catalog) Fallback(sev findings.Severity) *Template {
	if t, ok := c.fallbacks[sev]; ok {
		return t
	}
	return c.fallbacks[findings.SeverityMedium]
}

// Len returns the number of specific templates
func (c *Catalog) Len() int {
	return len(c.templates)
}
