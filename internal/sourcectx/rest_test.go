package sourcectx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every request to a local test server
type rewriteTransport struct {
	target *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	req.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *rewriteTransport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &rewriteTransport{target: u}
}

func TestRESTSourceFileContent(t *testing.T) {
	var gotPath, gotRef, gotAuth string
	transport := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotRef = r.URL.Query().Get("ref")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("one\ntwo\n")),
			"size":     8,
		})
	})

	src, err := newRESTSource(SourceOptions{Host: "github.com", Token: "test-token"}, transport)
	require.NoError(t, err)

	data, err := src.FileContent(context.Background(), "acme/app", "main", "src/my app.py")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
	assert.Equal(t, "/repos/acme/app/contents/src/my%20app.py", gotPath)
	assert.Equal(t, "main", gotRef)
	assert.Contains(t, gotAuth, "test-token")
}

func TestRESTSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, classify("acme/app", err, false), ErrNotFound)
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var access *SourceAccessError
				assert.ErrorAs(t, classify("acme/app", err, false), &access)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusForbidden,
			header: map[string]string{"X-RateLimit-Remaining": "0"},
			check: func(t *testing.T, err error) {
				var transient *TransientError
				assert.ErrorAs(t, classify("acme/app", err, false), &transient)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var transient *TransientError
				assert.ErrorAs(t, classify("acme/app", err, false), &transient)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			src, err := newRESTSource(SourceOptions{Token: "test-token"}, transport)
			require.NoError(t, err)

			_, err = src.FileContent(context.Background(), "acme/app", "main", "a.py")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRESTSourceRejectsNonFiles(t *testing.T) {
	transport := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"dir"}`))
	})

	src, err := newRESTSource(SourceOptions{Token: "test-token"}, transport)
	require.NoError(t, err)

	_, err = src.FileContent(context.Background(), "acme/app", "main", "src")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRESTSourceRejectsBinary(t *testing.T) {
	transport := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte{0x7f, 'E', 'L', 'F', 0x00}),
		})
	})

	src, err := newRESTSource(SourceOptions{Token: "test-token"}, transport)
	require.NoError(t, err)

	_, err = src.FileContent(context.Background(), "acme/app", "main", "bin/app")
	assert.ErrorIs(t, err, ErrBinaryFile)
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := splitRepo("acme/app")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "app", name)

	for _, bad := range []string{"", "acme", "/app", "acme/", "a/b/c"} {
		_, _, err := splitRepo(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewSourceUnknownAPI(t *testing.T) {
	_, err := NewSource(context.Background(), SourceOptions{API: "soap"})
	assert.Error(t, err)
}
