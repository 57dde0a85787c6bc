package sourcectx

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cli/go-gh/v2/pkg/api"
)

// RESTSource reads files through the GitHub contents API
type RESTSource struct {
	client *api.RESTClient
}

// NewRESTSource creates a REST-backed source
func NewRESTSource(opts SourceOptions) (*RESTSource, error) {
	return newRESTSource(opts, nil)
}

func newRESTSource(opts SourceOptions, transport http.RoundTripper) (*RESTSource, error) {
	host := opts.Host
	if host == "" {
		host = "github.com"
	}

	clientOpts := api.ClientOptions{
		Host:      host,
		AuthToken: opts.Token,
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	if opts.UserAgent != "" {
		clientOpts.Headers = map[string]string{"User-Agent": opts.UserAgent}
	}

	client, err := api.NewRESTClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub API client: %w", err)
	}

	return &RESTSource{client: client}, nil
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

// FileContent fetches a file at ref from repos/{owner}/{repo}/contents/{path}
func (s *RESTSource) FileContent(ctx context.Context, repo, ref, filePath string) ([]byte, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("repos/%s/%s/contents/%s", owner, name, escapePath(filePath))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}

	var resp contentResponse
	if err := s.client.DoWithContext(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Type != "" && resp.Type != "file" {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotFound, filePath, resp.Type)
	}
	if resp.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q for %s (size %d)", resp.Encoding, filePath, resp.Size)
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrBinaryFile, filePath)
	}

	return data, nil
}

func escapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
