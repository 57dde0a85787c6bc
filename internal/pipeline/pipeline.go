// Package pipeline wires the stages that turn a bundle of scanner reports
// into an enriched, scored and documented run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/guide"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/normalize"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/progress"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/report"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/risk"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/scanner"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/sourcectx"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/store"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/tagging"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/workspace"
)

// Stages in execution order, as shown by the stage tracker
var Stages = []string{"parse", "dedup", "tag", "enrich", "score", "guides"}

// Input describes one run
type Input struct {
	Bundle      string
	RunID       string
	SourceEvent string
	Repository  string // overrides source.repository
	Ref         string // overrides source.ref
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithSource replaces the code host client used for enrichment
func WithSource(source sourcectx.Source) Option {
	return func(p *Pipeline) { p.source = source }
}

// WithIgnore applies an ignore configuration before deduplication
func WithIgnore(cfg *config.IgnoreConfig) Option {
	return func(p *Pipeline) { p.ignore = cfg }
}

// WithStore enables cross-run comparison and snapshot persistence
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithProgress prints stage lines and an enrichment bar to out
func WithProgress(out io.Writer) Option {
	return func(p *Pipeline) { p.progressOut = out }
}

// WithClock overrides the run timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs the stages for one run at a time
type Pipeline struct {
	cfg    *config.FullConfig
	logger zerolog.Logger

	workspace  *workspace.Manager
	scanners   *scanner.Manager
	normalizer *normalize.Normalizer
	dedup      findings.Deduplicator
	tagger     *tagging.Tagger
	scorer     *risk.Scorer
	generator  *guide.Generator
	mode       guide.Mode

	source      sourcectx.Source
	sourceErr   error
	ignore      *config.IgnoreConfig
	store       *store.Store
	progressOut io.Writer
	now         func() time.Time
}

// New builds a pipeline from configuration
func New(cfg *config.FullConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()

	ws, err := workspace.NewManager(cfg.Workspace.Root, p.logger)
	if err != nil {
		return nil, err
	}
	p.workspace = ws
	p.scanners = scanner.NewManager(cfg.Scanners, p.logger)
	p.normalizer = normalize.New(p.logger)

	policy, err := findings.ParseTieBreak(cfg.Dedup.TieBreak)
	if err != nil {
		return nil, err
	}
	p.dedup = findings.KeyDeduplicator{Policy: policy}

	rules, err := tagging.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	p.tagger = tagging.New(rules, p.logger)

	if p.scorer, err = risk.New(cfg.Scoring, p.logger); err != nil {
		return nil, err
	}
	p.logger.Debug().Strs("multipliers", p.scorer.Multipliers()).Msg("risk scorer configured")

	catalog, err := guide.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if cfg.Guides.TemplatesDir != "" {
		if err := catalog.LoadDir(cfg.Guides.TemplatesDir); err != nil {
			return nil, err
		}
	}
	p.generator = guide.New(catalog, p.logger)
	if p.mode, err = guide.ParseMode(cfg.Guides.Mode); err != nil {
		return nil, err
	}

	if p.source == nil && cfg.Source.IsEnabled() {
		p.source, p.sourceErr = newSource(cfg.Source)
	}

	return p, nil
}

func newSource(cfg config.SourceConfig) (sourcectx.Source, error) {
	token := cfg.Token()
	if token == "" {
		return nil, fmt.Errorf("no token in $%s", cfg.TokenEnv)
	}
	return sourcectx.NewSource(context.Background(), sourcectx.SourceOptions{
		API:       cfg.API,
		Host:      cfg.Host,
		Token:     token,
		Timeout:   cfg.Timeout,
		UserAgent: "gpscore",
	})
}

// Run executes every stage. Only workspace failures and cancellation before
// findings exist are returned as errors; every other failure is recorded as
// a diagnostic on the returned run. A report write failure returns the run
// together with the error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*findings.Run, error) {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With().Str("run_id", runID).Logger()

	var stages *progress.StageTracker
	if p.progressOut != nil {
		stages = progress.NewStageTracker(p.progressOut, Stages)
	}

	if err := p.cfg.CheckProtected("bundle", in.Bundle); err != nil {
		return nil, err
	}

	ws, err := p.workspace.Prepare(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	files, err := ws.Extract(in.Bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to extract bundle: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &findings.Run{
		ID:          runID,
		Timestamp:   p.now().UTC(),
		SourceEvent: in.SourceEvent,
		Repository:  firstNonEmpty(in.Repository, p.cfg.Source.Repository),
		Ref:         firstNonEmpty(in.Ref, p.cfg.Source.Ref),
		Findings:    []findings.Finding{},
		Diagnostics: []findings.Diagnostic{},
	}

	// parse
	raws, statuses := p.scanners.ParseAll(ctx, files)
	for _, d := range statusDiagnostics(statuses) {
		run.AddDiagnostic(d)
	}
	normalized, diags := p.normalizer.Normalize(raws)
	run.Diagnostics = append(run.Diagnostics, diags...)
	stages.Complete("parse", len(normalized))

	kept, ignored := findings.Filter(normalized, p.ignore)
	if ignored > 0 {
		run.AddDiagnostic(findings.Diagnostic{
			Stage:   "dedup",
			Code:    findings.CodeIgnoredFindings,
			Level:   findings.LevelInfo,
			Message: fmt.Sprintf("%d finding(s) ignored by configuration", ignored),
		})
	}

	// dedup
	merged, err := findings.MergeWithContext(ctx, p.dedup, kept)
	if err != nil {
		stages.Fail("dedup", err)
		return nil, err
	}
	stages.Complete("dedup", len(merged))

	// tag
	tagged := p.tagger.Apply(merged)
	stages.Complete("tag", len(tagged))

	var prev *findings.Run
	if p.store != nil {
		if prev, err = p.store.Latest(); err != nil {
			run.AddDiagnostic(storeDiagnostic(err))
			prev = nil
		}
	}
	tagged = findings.ApplyProvenance(prev, tagged, runID)

	// enrich
	enriched := p.enrich(ctx, run, tagged, logger)
	stages.Complete("enrich", countEnriched(enriched))

	// score
	run.Findings = p.scorer.Apply(enriched)
	stages.Complete("score", len(run.Findings))

	if p.store != nil {
		cmp := findings.Compare(prev, run)
		run.Comparison = &cmp
	}

	// guides
	docs, gdiags := p.generator.Generate(run.Findings, p.mode)
	run.Diagnostics = append(run.Diagnostics, gdiags...)
	stages.Complete("guides", len(docs))

	if p.store != nil {
		if err := p.store.Save(run); err != nil {
			run.AddDiagnostic(storeDiagnostic(err))
		}
	}

	if err := report.Write(p.cfg.Reports.Dir, run, docs); err != nil {
		return run, fmt.Errorf("failed to write reports: %w", err)
	}

	logger.Info().
		Int("findings", len(run.Findings)).
		Int("diagnostics", len(run.Diagnostics)).
		Bool("partial", run.Partial).
		Float64("aggregate_risk_score", run.AggregateRiskScore()).
		Msg("run complete")
	return run, nil
}

// ReportsDir is where Run writes its output
func (p *Pipeline) ReportsDir() string {
	return p.cfg.Reports.Dir
}

func (p *Pipeline) enrich(ctx context.Context, run *findings.Run, in []findings.Finding, logger zerolog.Logger) []findings.Finding {
	if p.source == nil || run.Repository == "" {
		reason := "source enrichment disabled"
		switch {
		case p.sourceErr != nil:
			reason = "source enrichment unavailable: " + p.sourceErr.Error()
		case p.cfg.Source.IsEnabled() && run.Repository == "":
			reason = "no repository configured for source enrichment"
		}
		run.AddDiagnostic(findings.Diagnostic{
			Stage:   "enrich",
			Code:    findings.CodeEnrichmentSkipped,
			Level:   findings.LevelInfo,
			Message: reason,
		})
		return in
	}

	src := p.cfg.Source
	fetcher := sourcectx.NewFetcher(p.source, sourcectx.Options{
		Repository:        run.Repository,
		Ref:               run.Ref,
		Window:            src.Window,
		Concurrency:       src.Concurrency,
		Retries:           src.Retries,
		InitialBackoff:    src.InitialBackoff,
		MaxBackoff:        src.MaxBackoff,
		Timeout:           src.Timeout,
		RequestsPerSecond: src.RequestsPerSecond,
	}, logger)

	var bar sourcectx.Progress
	if p.progressOut != nil {
		bar = progress.NewTracker(p.progressOut, "🔎 Fetching source", countWithLine(in))
	}

	res := fetcher.Enrich(ctx, in, bar)
	run.Diagnostics = append(run.Diagnostics, res.Diagnostics...)
	run.Partial = res.Partial
	if res.AccessErr != nil {
		logger.Warn().Err(res.AccessErr).Msg("source access denied, continuing without source context")
	}
	return res.Findings
}

// statusDiagnostics turns failed and skipped reports into diagnostics
func statusDiagnostics(statuses []scanner.ScannerStatus) []findings.Diagnostic {
	var diags []findings.Diagnostic
	for _, s := range statuses {
		switch {
		case s.Error != nil:
			diags = append(diags, findings.Diagnostic{
				Stage:   "parse",
				Code:    findings.CodeAdapterParseError,
				Level:   findings.LevelWarning,
				Subject: s.Name,
				Message: s.Error.Error(),
			})
		case s.Skipped:
			subject := s.Name
			if subject == "" {
				subject = s.File
			}
			diags = append(diags, findings.Diagnostic{
				Stage:   "parse",
				Code:    findings.CodeScannerSkipped,
				Level:   findings.LevelInfo,
				Subject: subject,
				Message: fmt.Sprintf("%s skipped: %s", s.File, s.Reason),
			})
		}
	}
	return diags
}

func storeDiagnostic(err error) findings.Diagnostic {
	return findings.Diagnostic{
		Stage:   "store",
		Code:    findings.CodeSnapshotStoreError,
		Level:   findings.LevelWarning,
		Message: err.Error(),
	}
}

func countWithLine(in []findings.Finding) int {
	n := 0
	for _, f := range in {
		if f.Line > 0 && f.FilePath != "" {
			n++
		}
	}
	return n
}

func countEnriched(in []findings.Finding) int {
	n := 0
	for _, f := range in {
		if f.SourceContext != nil {
			n++
		}
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
