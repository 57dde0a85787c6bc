package sourcectx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// GraphQLSource reads files through the GitHub GraphQL API
type GraphQLSource struct {
	client *githubv4.Client
}

// NewGraphQLSource creates a GraphQL-backed source
func NewGraphQLSource(ctx context.Context, opts SourceOptions) (*GraphQLSource, error) {
	return newGraphQLSource(ctx, opts, http.DefaultTransport)
}

func newGraphQLSource(ctx context.Context, opts SourceOptions, base http.RoundTripper) (*GraphQLSource, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("graphql source requires a token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: &statusTransport{base: base},
	})
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	httpClient.Timeout = opts.Timeout

	host := opts.Host
	if host == "" || host == "github.com" {
		return &GraphQLSource{client: githubv4.NewClient(httpClient)}, nil
	}
	endpoint := fmt.Sprintf("https://%s/api/graphql", host)
	return &GraphQLSource{client: githubv4.NewEnterpriseClient(endpoint, httpClient)}, nil
}

type blobQuery struct {
	Repository struct {
		Object *struct {
			Blob struct {
				Text     *githubv4.String
				IsBinary githubv4.Boolean
			} `graphql:"... on Blob"`
		} `graphql:"object(expression: $expression)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FileContent fetches a blob via repository.object(expression: "ref:path")
func (s *GraphQLSource) FileContent(ctx context.Context, repo, ref, filePath string) ([]byte, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = "HEAD"
	}

	var q blobQuery
	vars := map[string]interface{}{
		"owner":      githubv4.String(owner),
		"name":       githubv4.String(name),
		"expression": githubv4.String(ref + ":" + strings.TrimPrefix(filePath, "/")),
	}

	if err := s.client.Query(ctx, &q, vars); err != nil {
		if strings.Contains(err.Error(), "Could not resolve") {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}

	obj := q.Repository.Object
	if obj == nil {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, filePath, ref)
	}
	if bool(obj.Blob.IsBinary) {
		return nil, fmt.Errorf("%w: %s", ErrBinaryFile, filePath)
	}
	if obj.Blob.Text == nil {
		return nil, fmt.Errorf("%w: %s has no text at %s", ErrNotFound, filePath, ref)
	}

	return []byte(string(*obj.Blob.Text)), nil
}

// statusTransport turns non-success HTTP statuses into *StatusError so that
// GraphQL failures can be classified like REST ones
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
	resp.Body.Close()
	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Message:    strings.TrimSpace(string(body)),
	}
}
