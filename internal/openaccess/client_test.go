package openaccess

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Email: "lab@example.org"})
}

func TestLookup_OpenAccess(t *testing.T) {
	var gotPath, gotEmail string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEmail = r.URL.Query().Get("email")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"doi": "10.1145/3544548.3581234",
			"title": "Foo",
			"is_oa": true,
			"best_oa_location": {
				"url": "https://repo.example.edu/foo",
				"url_for_pdf": "https://repo.example.edu/foo.pdf",
				"host_type": "repository"
			}
		}`))
	})

	work, err := c.Lookup(context.Background(), "10.1145/3544548.3581234")
	require.NoError(t, err)

	assert.Equal(t, "/v2/10.1145/3544548.3581234", gotPath)
	assert.Equal(t, "lab@example.org", gotEmail)
	assert.True(t, work.IsOA)
	assert.Equal(t, "https://repo.example.edu/foo.pdf", work.PDFURL())
}

func TestWork_PDFURL(t *testing.T) {
	tests := []struct {
		name string
		work *Work
		want string
	}{
		{"nil", nil, ""},
		{"closed", &Work{IsOA: false, BestOALocation: &Location{URLForPDF: "https://x/a.pdf"}}, ""},
		{"no location", &Work{IsOA: true}, ""},
		{"pdf url", &Work{IsOA: true, BestOALocation: &Location{URL: "https://x/a", URLForPDF: "https://x/a.pdf"}}, "https://x/a.pdf"},
		{"landing fallback", &Work{IsOA: true, BestOALocation: &Location{URL: "https://x/a"}}, "https://x/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.work.PDFURL())
		})
	}
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"not found", 404, func(t *testing.T, err error) {
			assert.True(t, IsNotFound(err))
		}},
		{"rate limited", 429, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrRateLimited)
		}},
		{"server error", 500, func(t *testing.T, err error) {
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, 500, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, "boom")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": true, "message": "boom"}`))
			})
			_, err := c.Lookup(context.Background(), "10.1000/182")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLookup_NoEmail(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Lookup(context.Background(), "10.1000/182")
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestLookup_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url, Email: "lab@example.org"})
	_, err := c.Lookup(context.Background(), "10.1000/182")
	assert.ErrorIs(t, err, ErrNetworkError)
}
