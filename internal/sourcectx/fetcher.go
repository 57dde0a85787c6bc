package sourcectx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

// Options configures a Fetcher
type Options struct {
	Repository        string
	Ref               string
	Window            int
	Concurrency       int
	Retries           int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultOptions returns the fetcher defaults
func DefaultOptions() Options {
	return Options{
		Window:            5,
		Concurrency:       4,
		Retries:           3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 10,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.Window < 0 {
		o.Window = 0
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
}

type cacheEntry struct {
	lines []string
	err   error
}

// Fetcher retrieves source snippets with caching, retry and rate limiting.
// Each file is downloaded at most once per Fetcher.
type Fetcher struct {
	source  Source
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cacheEntry

	denied error
}

// NewFetcher creates a fetcher over source
func NewFetcher(source Source, opts Options, logger zerolog.Logger) *Fetcher {
	opts.applyDefaults()

	limit := rate.Inf
	burst := opts.Concurrency
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Fetcher{
		source:  source,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("component", "sourcectx").Logger(),
		cache:   make(map[string]cacheEntry),
	}
}

// Fetch returns the snippet of Window lines either side of line in path.
// An empty ref uses the fetcher's configured ref.
func (f *Fetcher) Fetch(ctx context.Context, path string, line int, ref string) (*findings.SourceContext, error) {
	if line <= 0 || path == "" {
		return nil, ErrNoLine
	}
	if ref == "" {
		ref = f.opts.Ref
	}

	if err := f.accessDenied(); err != nil {
		return nil, err
	}

	lines, err := f.file(ctx, ref, path)
	if err != nil {
		return nil, err
	}

	return snippet(lines, line, f.opts.Window, ref)
}

// snippet cuts a window around a 1-based line
func snippet(lines []string, line, window int, ref string) (*findings.SourceContext, error) {
	if line > len(lines) {
		return nil, fmt.Errorf("%w: line %d of %d", ErrLineOutOfRange, line, len(lines))
	}

	start := line - window
	if start < 1 {
		start = 1
	}
	end := line + window
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]string, end-start+1)
	copy(out, lines[start-1:end])

	return &findings.SourceContext{
		Ref:       ref,
		StartLine: start,
		Lines:     out,
		Highlight: line - start,
	}, nil
}

func (f *Fetcher) accessDenied() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.denied
}

// file returns the file's lines from cache or loads it once
func (f *Fetcher) file(ctx context.Context, ref, path string) ([]string, error) {
	key := f.opts.Repository + "|" + ref + "|" + path

	f.mu.Lock()
	entry, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		return entry.lines, entry.err
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		f.mu.Lock()
		entry, ok := f.cache[key]
		f.mu.Unlock()
		if ok {
			return entry.lines, entry.err
		}

		lines, err := f.load(ctx, ref, path)

		// cancellation says nothing about the file, so it is not cached
		if ctx.Err() == nil {
			f.mu.Lock()
			f.cache[key] = cacheEntry{lines: lines, err: err}
			var access *SourceAccessError
			if errors.As(err, &access) && f.denied == nil {
				f.denied = err
			}
			f.mu.Unlock()
		}
		return lines, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// load downloads a file with retry on transient failures
func (f *Fetcher) load(ctx context.Context, ref, path string) ([]string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.opts.InitialBackoff
	policy.MaxInterval = f.opts.MaxBackoff
	policy.MaxElapsedTime = 0

	var data []byte
	attempt := 0
	operation := func() error {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		content, err := f.source.FileContent(callCtx, f.opts.Repository, ref, path)
		if err == nil {
			data = content
			return nil
		}

		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		classified := classify(f.opts.Repository, err, timedOut)

		var transient *TransientError
		if errors.As(classified, &transient) {
			f.logger.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("transient fetch failure")
			return transient.Err
		}
		return backoff.Permanent(classified)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.opts.Retries)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return splitLines(string(data)), nil
}

// splitLines splits on \n, dropping \r and the empty element after a final newline
func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
