package sourcectx

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

const stageEnrich = "enrich"

// Progress receives one tick per completed fetch task
type Progress interface {
	Increment()
	Finish()
}

// EnrichResult is the outcome of enriching a finding set
type EnrichResult struct {
	Findings    []findings.Finding
	Diagnostics []findings.Diagnostic
	Partial     bool
	AccessErr   error
	Enriched    int
}

// Enrich attaches source context to every finding that has a file and line.
// Fetches run on a bounded pool; a failed fetch never cancels its siblings.
// Results are written back by index so output order matches input order.
// Cancelling ctx abandons outstanding fetches and marks the result partial.
func (f *Fetcher) Enrich(ctx context.Context, in []findings.Finding, progress Progress) EnrichResult {
	out := make([]findings.Finding, len(in))
	copy(out, in)

	var tasks []int
	for i, finding := range in {
		if finding.Line > 0 && finding.FilePath != "" {
			tasks = append(tasks, i)
		}
	}

	contexts := make([]*findings.SourceContext, len(in))
	errs := make([]error, len(in))
	var cancelled atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(f.opts.Concurrency)

	for _, idx := range tasks {
		if ctx.Err() != nil {
			cancelled.Store(true)
			break
		}
		idx := idx
		g.Go(func() error {
			defer progressTick(progress)
			if ctx.Err() != nil {
				cancelled.Store(true)
				return nil
			}

			finding := in[idx]
			sc, err := f.Fetch(ctx, finding.FilePath, finding.Line, "")
			if err != nil {
				if ctx.Err() != nil {
					cancelled.Store(true)
				}
				errs[idx] = err
				return nil
			}
			contexts[idx] = sc
			return nil
		})
	}
	_ = g.Wait()
	if progress != nil {
		progress.Finish()
	}

	result := EnrichResult{Findings: out}
	seen := make(map[string]bool)
	add := func(code, level, subject, msg string) {
		key := code + "|" + subject
		if seen[key] {
			return
		}
		seen[key] = true
		result.Diagnostics = append(result.Diagnostics, findings.Diagnostic{
			Stage:   stageEnrich,
			Code:    code,
			Level:   level,
			Subject: subject,
			Message: msg,
		})
	}

	for _, idx := range tasks {
		if sc := contexts[idx]; sc != nil {
			out[idx].SourceContext = sc
			result.Enriched++
			continue
		}

		err := errs[idx]
		finding := in[idx]
		var access *SourceAccessError
		switch {
		case err == nil:
			// task abandoned by cancellation
		case errors.As(err, &access):
			if result.AccessErr == nil {
				result.AccessErr = access
			}
			add(findings.CodeSourceAccessDenied, findings.LevelWarning, f.opts.Repository,
				fmt.Sprintf("source enrichment stopped: %v", access))
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
			// reported once below
		case errors.Is(err, ErrSourceFetchTimeout):
			add(findings.CodeSourceFetchTimeout, findings.LevelWarning, finding.FilePath, err.Error())
		case errors.Is(err, ErrNotFound):
			add(findings.CodeSourceNotFound, findings.LevelWarning, finding.FilePath, err.Error())
		case errors.Is(err, ErrLineOutOfRange):
			add(findings.CodeSourceLineOutOfRange, findings.LevelWarning, finding.Location(), err.Error())
		default:
			add(findings.CodeSourceFetchFailed, findings.LevelWarning, finding.FilePath, err.Error())
		}
	}

	if cancelled.Load() || ctx.Err() != nil {
		result.Partial = true
		add(findings.CodeEnrichmentCancelled, findings.LevelWarning, "",
			fmt.Sprintf("enrichment cancelled: %d of %d findings enriched", result.Enriched, len(tasks)))
	}

	f.logger.Info().Int("tasks", len(tasks)).Int("enriched", result.Enriched).Bool("partial", result.Partial).Msg("source enrichment finished")
	return result
}

func progressTick(p Progress) {
	if p != nil {
		p.Increment()
	}
}
