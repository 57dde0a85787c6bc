// Package workspace manages the per-run scratch area where report bundles are unpacked.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ErrInvalidRunID is returned when a run id cannot be used as a directory name
var ErrInvalidRunID = errors.New("invalid run id")

// WorkspaceConflictError is returned when residual content from an earlier run
// cannot be removed. The run must not proceed.
type WorkspaceConflictError struct {
	Path string
	Err  error
}

func (e *WorkspaceConflictError) Error() string {
	return fmt.Sprintf("workspace conflict: cannot clear %s: %v", e.Path, e.Err)
}

func (e *WorkspaceConflictError) Unwrap() error {
	return e.Err
}

// Manager owns a workspace root directory
type Manager struct {
	root   string
	logger zerolog.Logger
}

// Workspace is the prepared area for a single run
type Workspace struct {
	RunID      string
	Dir        string
	ReportsDir string
	root       string
	logger     zerolog.Logger
}

// NewManager creates a manager for root. The root may not be empty or the
// filesystem root.
func NewManager(root string, logger zerolog.Logger) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if abs == filepath.Dir(abs) {
		return nil, fmt.Errorf("workspace root must not be the filesystem root")
	}

	return &Manager{
		root:   abs,
		logger: logger.With().Str("component", "workspace").Logger(),
	}, nil
}

// Root returns the absolute workspace root
func (m *Manager) Root() string {
	return m.root
}

// Prepare clears all residual content under the root and creates
// <root>/<runID>/reports. The root itself is never removed.
func (m *Manager) Prepare(runID string) (*Workspace, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.root, 0750); err != nil {
		return nil, &WorkspaceConflictError{Path: m.root, Err: err}
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, &WorkspaceConflictError{Path: m.root, Err: err}
	}

	for _, entry := range entries {
		target := filepath.Join(m.root, entry.Name())
		if !within(m.root, target) {
			return nil, &WorkspaceConflictError{Path: target, Err: fmt.Errorf("path escapes workspace root")}
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, &WorkspaceConflictError{Path: target, Err: err}
		}
		m.logger.Debug().Str("path", target).Msg("removed residual workspace entry")
	}

	dir := filepath.Join(m.root, runID)
	reports := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reports, 0750); err != nil {
		return nil, &WorkspaceConflictError{Path: reports, Err: err}
	}

	m.logger.Info().Str("run_id", runID).Str("dir", dir).Msg("workspace prepared")

	return &Workspace{
		RunID:      runID,
		Dir:        dir,
		ReportsDir: reports,
		root:       m.root,
		logger:     m.logger,
	}, nil
}

// Files lists every regular file currently under the reports directory, sorted
func (w *Workspace) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.ReportsDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func validateRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// within reports whether p is strictly inside root
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
