package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/pipeline"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/store"
)

const (
	version = "1.0.0"
)

type options struct {
	dir         string
	configFile  string
	ignoreFile  string
	runID       string
	event       string
	repo        string
	ref         string
	api         string
	reportsDir  string
	workspace   string
	storePath   string
	guidesMode  string
	minSeverity string
	failOn      string
	noSource    bool
	noStore     bool
	noProgress  bool
	detailed    bool
	verbose     bool
	version     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "gpscore [bundle]",
		Short: "gpscore - aggregate, enrich and score security scanner findings",
		Long: `gpscore v` + version + ` - aggregate, enrich and score security scanner findings

gpscore takes a bundle of scanner reports (directory, .tar.gz or .zip) and turns it
into one deduplicated, tagged and risk-scored set of findings with fix guides.

WORKFLOW:
    1. 📥 PARSE    - Bandit, Semgrep, Gitleaks, Checkov, Trivy, Grype and SARIF reports
    2. 🧹 DEDUP    - Collapse duplicates by scanner, title, file and line
    3. 🏷️  TAG      - Priority, domain, file type, platform, category and compliance tags
    4. 🔎 ENRICH   - Fetch the surrounding source lines from GitHub
    5. 📈 SCORE    - Weight by severity and tag multipliers
    6. 📝 GUIDES   - Write remediation guides and a summary report`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&opts.dir, "dir", ".", "Repository directory holding .github/gpscore.yaml")
	f.StringVar(&opts.configFile, "config", "", "Explicit config file (overrides --dir lookup)")
	f.StringVar(&opts.ignoreFile, "ignore-file", "", "Explicit ignore file (overrides --dir lookup)")
	f.StringVar(&opts.runID, "run-id", "", "Run identifier (default: random UUID)")
	f.StringVar(&opts.event, "event", "", "Source event that triggered the run (push, pull_request, schedule...)")
	f.StringVar(&opts.repo, "repo", "", "Repository as owner/name (default: config, $GITHUB_REPOSITORY, then git remote)")
	f.StringVar(&opts.ref, "ref", "", "Git ref to fetch source at (default: config, then $GITHUB_SHA)")
	f.StringVar(&opts.api, "api", "", "GitHub API for source fetches (rest|graphql)")
	f.StringVar(&opts.reportsDir, "output", "", "Reports directory")
	f.StringVar(&opts.workspace, "workspace", "", "Workspace root (cleared on every run)")
	f.StringVar(&opts.storePath, "store", "", "Run snapshot database")
	f.StringVar(&opts.guidesMode, "guides", "", "Guide mode (per-finding|group)")
	f.StringVar(&opts.minSeverity, "min-severity", "info", "Only display findings at or above this severity")
	f.StringVar(&opts.failOn, "fail-on", "", "Exit non-zero if any finding is at or above this severity")
	f.BoolVar(&opts.noSource, "no-source", false, "Skip source context enrichment")
	f.BoolVar(&opts.noStore, "no-store", false, "Do not read or write run snapshots")
	f.BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	f.BoolVar(&opts.detailed, "detailed", false, "Show every finding with tags and description")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	f.BoolVar(&opts.version, "version", false, "Show version")

	rootCmd.AddCommand(newDiffCmd())
	return rootCmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	out := cmd.OutOrStdout()

	if opts.version {
		fmt.Fprintf(out, "gpscore v%s\n", version)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("a report bundle is required")
	}

	for name, sev := range map[string]string{"--min-severity": opts.minSeverity, "--fail-on": opts.failOn} {
		if sev != "" && !findings.ValidateSeverity(sev) {
			return fmt.Errorf("invalid %s: %s (must be critical, high, medium, low, or info)", name, sev)
		}
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ignoreCfg, err := loadIgnore(opts)
	if err != nil {
		return fmt.Errorf("failed to load ignore config: %w", err)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CheckProtected("--dir", opts.dir); err != nil {
		return err
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithIgnore(ignoreCfg),
	}
	if !opts.noProgress {
		pipelineOpts = append(pipelineOpts, pipeline.WithProgress(cmd.ErrOrStderr()))
	}
	if !opts.noStore {
		s, err := store.Open(cfg.Store.Path, logger)
		if err != nil {
			fmt.Fprintf(out, "⚠️  Warning: run history unavailable: %v\n", err)
		} else {
			defer s.Close()
			pipelineOpts = append(pipelineOpts, pipeline.WithStore(s))
		}
	}

	p, err := pipeline.New(cfg, pipelineOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(out, "\n🔍 Processing scanner reports...")
	result, err := p.Run(ctx, pipeline.Input{
		Bundle:      args[0],
		RunID:       opts.runID,
		SourceEvent: opts.event,
	})
	if result == nil {
		return fmt.Errorf("run failed: %w", err)
	}

	displayRun(out, result, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n💡 Reports written to %s\n", p.ReportsDir())

	return checkFailOn(result.Findings, opts.failOn)
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig(opts *options) (*config.FullConfig, error) {
	if opts.configFile != "" {
		return config.LoadConfigFile(opts.configFile)
	}
	return config.LoadConfig(opts.dir)
}

func loadIgnore(opts *options) (*config.IgnoreConfig, error) {
	if opts.ignoreFile != "" {
		return config.LoadIgnoreConfigFile(opts.ignoreFile)
	}
	return config.LoadIgnoreConfig(opts.dir)
}

// applyOverrides lets flags and CI environment variables win over file values
func applyOverrides(cfg *config.FullConfig, opts *options) {
	if opts.api != "" {
		cfg.Source.API = strings.ToLower(opts.api)
	}
	if opts.reportsDir != "" {
		cfg.Reports.Dir = opts.reportsDir
	}
	if opts.workspace != "" {
		cfg.Workspace.Root = opts.workspace
	}
	if opts.storePath != "" {
		cfg.Store.Path = opts.storePath
	}
	if opts.guidesMode != "" {
		cfg.Guides.Mode = strings.ToLower(opts.guidesMode)
	}
	if opts.noSource {
		disabled := false
		cfg.Source.Enabled = &disabled
	}

	cfg.Source.Repository = firstNonEmpty(opts.repo, cfg.Source.Repository, os.Getenv("GITHUB_REPOSITORY"))
	if cfg.Source.Repository == "" && cfg.Source.IsEnabled() {
		if owner, repo, err := getRepoInfo(opts.dir); err == nil {
			cfg.Source.Repository = owner + "/" + repo
		}
	}
	cfg.Source.Ref = firstNonEmpty(opts.ref, cfg.Source.Ref, os.Getenv("GITHUB_SHA"))
}

func displayRun(w io.Writer, run *findings.Run, opts *options) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "📋 RUN %s\n", run.ID)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	findings.DisplaySummary(w, run)

	if c := run.Comparison; c != nil && c.PreviousRunID != "" {
		fmt.Fprintf(w, "\n🆕 New: %d  ✅ Resolved: %d  🔁 Persisting: %d (since %s)\n",
			len(c.New), len(c.Resolved), len(c.Persisting), c.PreviousRunID)
	}

	shown := findings.FilterBySeverity(run.Findings, opts.minSeverity)
	if len(shown) == 0 {
		fmt.Fprintln(w, "\n✅ No findings to report!")
		return
	}

	displayOpts := findings.DefaultDisplayOptions()
	if opts.detailed {
		displayOpts = findings.DetailedDisplayOptions()
	}
	fmt.Fprintln(w)
	findings.DisplayFindings(w, shown, displayOpts)

	if opts.verbose && len(run.Diagnostics) > 0 {
		fmt.Fprintln(w, "\n⚠️  Diagnostics:")
		for _, d := range run.Diagnostics {
			fmt.Fprintf(w, "   [%s] %s %s: %s\n", d.Level, d.Stage, d.Code, d.Message)
		}
	}
}

// checkFailOn returns an error when any finding meets the threshold
func checkFailOn(all []findings.Finding, failOn string) error {
	if failOn == "" {
		return nil
	}
	threshold, err := findings.ParseSeverity(failOn)
	if err != nil {
		return err
	}
	count := 0
	for _, f := range all {
		if f.Severity.Rank() >= threshold.Rank() {
			count++
		}
	}
	if count > 0 {
		return fmt.Errorf("%d finding(s) at or above %s", count, threshold)
	}
	return nil
}

// loadRunFile reads a findings.json written by a previous run
func loadRunFile(path string) (*findings.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("findings file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read findings file: %w", err)
	}

	var run findings.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse findings file: %w", err)
	}
	return &run, nil
}

// getRepoInfo reads owner/repo from the git remote of dir
func getRepoInfo(dir string) (owner, repo string, err error) {
	cmd := exec.Command("git", "config", "--get", "remote.origin.url")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", "", err
	}
	return parseRemoteURL(strings.TrimSpace(string(output)))
}

// parseRemoteURL handles git@github.com:owner/repo.git and https://github.com/owner/repo.git
func parseRemoteURL(url string) (owner, repo string, err error) {
	switch {
	case strings.HasPrefix(url, "git@"):
		if i := strings.Index(url, ":"); i >= 0 {
			url = url[i+1:]
		}
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		url = url[strings.Index(url, "://")+3:]
		if i := strings.Index(url, "/"); i >= 0 {
			url = url[i+1:]
		}
	}

	url = strings.TrimSuffix(url, ".git")
	parts := strings.Split(url, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid git remote URL")
	}
	return parts[0], parts[1], nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && filepath.Ext(path) == ".json"
}
