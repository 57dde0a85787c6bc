package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Tracker renders a progress bar for a counted operation such as source enrichment.
// A nil *Tracker is valid and does nothing.
type Tracker struct {
	bar     *progressbar.ProgressBar
	out     io.Writer
	total   int
	current int
	mu      sync.Mutex
}

// NewTracker creates a new progress tracker writing to out
func NewTracker(out io.Writer, description string, total int) *Tracker {
	if total <= 0 {
		total = 1
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(true),
	)

	return &Tracker{
		bar:     bar,
		out:     out,
		total:   total,
	}
}

// Increment increments the progress by one step. Safe for concurrent use.
func (t *Tracker) Increment() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current++
	_ = t.bar.Add(1)
}

// Finish completes the progress bar
func (t *Tracker) Finish() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < t.total {
		_ = t.bar.Add(t.total - t.current)
	}
	_ = t.bar.Finish()
	fmt.Fprintln(t.out)
}

// StageTracker prints one status line per pipeline stage
type StageTracker struct {
	stages  []string
	done   int
	mu     sync.Mutex
	output io.Writer
}

// NewStageTracker creates a tracker for an ordered list of stages
func NewStageTracker(out io.Writer, stages []string) *StageTracker {
	return &StageTracker{
		stages: stages,
		output: out,
	}
}

// Complete marks a stage as complete with a count of items it produced
func (st *StageTracker) Complete(stage string, count int) {
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.done++
	fmt.Fprintf(st.output, "   ✅ [%d/%d] %s %s: %d\n", st.done, len(st.stages), getStageEmoji(stage), stage, count)
}

// Fail marks a stage as failed
func (st *StageTracker) Fail(stage string, err error) {
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.done++
	fmt.Fprintf(st.output, "   ❌ [%d/%d] %s %s: failed (%v)\n", st.done, len(st.stages), getStageEmoji(stage), stage, err)
}

func getStageEmoji(stage string) string {
	switch stage {
	case "parse":
		return "📥"
	case "dedup":
		return "🧹"
	case "tag":
		return "🏷️"
	case "enrich":
		return "🔎"
	case "score":
		return "📈"
	case "guides":
		return "📝"
	default:
		return "📋"
	}
}
