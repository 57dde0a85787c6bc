// Package sourcectx fetches the source lines around each finding from the
// remote code host.
package sourcectx

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Source reads a file's content at a ref. Implementations return
// *StatusError or *api.HTTPError for HTTP failures so they can be classified.
type Source interface {
	FileContent(ctx context.Context, repo, ref, path string) ([]byte, error)
}

// SourceOptions configures the GitHub-backed sources
type SourceOptions struct {
	API       string // rest or graphql
	Host      string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// NewSource builds the Source selected by opts.API
func NewSource(ctx context.Context, opts SourceOptions) (Source, error) {
	switch strings.ToLower(opts.API) {
	case "", "rest":
		return NewRESTSource(opts)
	case "graphql":
		return NewGraphQLSource(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown source api %q", opts.API)
	}
}

// splitRepo splits "owner/name"
func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}
	return owner, name, nil
}
