package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
)

// Manager assigns report files to adapters and parses them in parallel
type Manager struct {
	adapters []Adapter
	config   *config.ScannerConfig
	logger   zerolog.Logger
}

// Assignment pairs a report file with the adapter that parses it
type Assignment struct {
	Adapter Adapter
	File    string
	order   int
}

// DefaultAdapters returns every built-in adapter in processing order.
// JSON adapters never claim *.sarif.json files, so tool-named SARIF logs
// reach the SARIF adapter.
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewBanditAdapter(),
		NewSemgrepAdapter(),
		NewGitleaksAdapter(),
		NewCheckovAdapter(),
		NewTrivyAdapter(),
		NewGrypeAdapter(),
		NewSARIFAdapter(),
	}
}

// NewManager creates a new manager with the default adapters
func NewManager(cfg *config.ScannerConfig, logger zerolog.Logger) *Manager {
	return NewManagerWithAdapters(cfg, logger, DefaultAdapters()...)
}

// NewManagerWithAdapters creates a manager with an explicit adapter list
func NewManagerWithAdapters(cfg *config.ScannerConfig, logger zerolog.Logger, adapters ...Adapter) *Manager {
	return &Manager{
		adapters: adapters,
		config:   cfg,
		logger:   logger.With().Str("component", "scanner").Logger(),
	}
}

// Adapters returns the registered adapters in processing order
func (m *Manager) Adapters() []Adapter {
	return m.adapters
}

// DetectReports assigns each file to the first matching adapter. Files for
// disabled scanners and unrecognized files are reported as skipped.
// Assignments are ordered by adapter registration order, then file name.
func (m *Manager) DetectReports(files []string) ([]Assignment, []ScannerStatus) {
	var assignments []Assignment
	var skipped []ScannerStatus

	for _, file := range files {
		matched := false
		for i, adapter := range m.adapters {
			if !adapter.Matches(file) {
				continue
			}
			matched = true

			if !m.config.Allows(adapter.Name()) {
				skipped = append(skipped, ScannerStatus{
					Name:    adapter.Name(),
					File:    file,
					Skipped: true,
					Reason:  "disabled in config",
				})
				break
			}

			assignments = append(assignments, Assignment{Adapter: adapter, File: file, order: i})
			break
		}

		if !matched {
			skipped = append(skipped, ScannerStatus{
				File:    file,
				Skipped: true,
				Reason:  "no adapter for report",
			})
		}
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].order != assignments[j].order {
			return assignments[i].order < assignments[j].order
		}
		return filepath.Base(assignments[i].File) < filepath.Base(assignments[j].File)
	})

	return assignments, skipped
}

// ParseAll parses every recognized report in parallel and waits for all of
// them. Findings are returned in adapter-processing order regardless of
// completion order. A report that fails to parse contributes no findings and
// its status carries the *AdapterParseError.
func (m *Manager) ParseAll(ctx context.Context, files []string) ([]RawFinding, []ScannerStatus) {
	assignments, skipped := m.DetectReports(files)

	if len(assignments) == 0 {
		return []RawFinding{}, skipped
	}

	results := make([]ParseResult, len(assignments))
	var wg sync.WaitGroup

	for i, a := range assignments {
		wg.Add(1)
		go func(i int, a Assignment) {
			defer wg.Done()
			results[i] = m.parseFile(ctx, a)
		}(i, a)
	}

	wg.Wait()

	allFindings := []RawFinding{}
	statuses := make([]ScannerStatus, 0, len(assignments)+len(skipped))

	for _, result := range results {
		status := ScannerStatus{
			Name:  result.Scanner,
			File:  result.File,
			Ran:   result.Error == nil,
			Found: len(result.Findings),
			Error: result.Error,
		}
		statuses = append(statuses, status)

		if result.Error != nil {
			m.logger.Warn().Err(result.Error).Str("scanner", result.Scanner).Str("file", result.File).Msg("report parse failed")
			continue
		}
		m.logger.Debug().Str("scanner", result.Scanner).Str("file", result.File).Int("found", len(result.Findings)).Msg("report parsed")
		allFindings = append(allFindings, result.Findings...)
	}

	return allFindings, append(statuses, skipped...)
}

func (m *Manager) parseFile(ctx context.Context, a Assignment) ParseResult {
	result := ParseResult{Scanner: a.Adapter.Name(), File: a.File}

	if err := ctx.Err(); err != nil {
		result.Error = fmt.Errorf("parse cancelled: %w", err)
		return result
	}

	raw, err := os.ReadFile(a.File)
	if err != nil {
		result.Error = &AdapterParseError{Scanner: result.Scanner, File: a.File, Err: err}
		return result
	}

	parsed, err := a.Adapter.Parse(raw)
	if err != nil {
		var parseErr *AdapterParseError
		if errors.As(err, &parseErr) {
			parseErr.File = a.File
		} else {
			err = &AdapterParseError{Scanner: result.Scanner, File: a.File, Err: err}
		}
		result.Error = err
		return result
	}

	result.Findings = parsed
	return result
}
