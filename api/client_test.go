package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-catalog-client/api"
	"github.com/jrsteele09/go-catalog-client/internal/apitest"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

func TestSuccessfulRequestReturnsEnvelope(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	client := api.New(srv.URL())
	env, err := client.Get(context.Background(), "/health")

	require.NoError(t, err)
	require.False(t, env.Failed())
}

func TestBearerTokenAttachedWhenPresent(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	token := srv.SeedToken("reader@example.com")

	client := api.New(srv.URL(), api.WithTokenSource(staticToken(token)))
	_, err := client.Get(context.Background(), "/api/books")

	require.NoError(t, err)
}

func TestMissingTokenIsRejected(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	client := api.New(srv.URL(), api.WithTokenSource(staticToken("")))
	_, err := client.Get(context.Background(), "/api/books")

	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusUnauthorized, reqErr.Status)
	require.Equal(t, "Authentication required", reqErr.Message)
}

func TestDeclaredFailureOn200IsAnError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error":{"message":"nope"}}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := api.New(srv.URL)
	_, err := client.Get(context.Background(), "/anything")

	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusOK, reqErr.Status)
	require.Equal(t, "nope", reqErr.Message)
}

func TestFailureMessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "embedded error message wins",
			body: `{"success":false,"error":{"message":"embedded"},"message":"top-level"}`,
			want: "embedded",
		},
		{
			name: "top-level message as fallback",
			body: `{"success":false,"message":"top-level"}`,
			want: "top-level",
		},
		{
			name: "generic status line when the body says nothing",
			body: `{"success":false}`,
			want: "request failed with status 500",
		},
		{
			name: "non-envelope body on a failed status",
			body: `<html>gateway error</html>`,
			want: "request failed with status 500",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tc.body))
			})
			srv := httptest.NewServer(handler)
			defer srv.Close()

			client := api.New(srv.URL)
			_, err := client.Get(context.Background(), "/anything")

			var reqErr *api.RequestError
			require.ErrorAs(t, err, &reqErr)
			require.Equal(t, tc.want, reqErr.Message)
		})
	}
}

func TestCSRFRejectionRetriedExactlyOnce(t *testing.T) {
	srv := apitest.New(apitest.WithCSRF())
	defer srv.Close()
	token := srv.SeedToken("writer@example.com")

	client := api.New(srv.URL(),
		api.WithTokenSource(staticToken(token)),
		api.WithCSRF("/health"),
	)

	// The client starts without a CSRF token, so the first attempt is
	// rejected, the token is refreshed and the retry succeeds.
	_, err := client.Post(context.Background(), "/api/books", map[string]string{"title": "Dune"})
	require.NoError(t, err)
	require.Equal(t, 2, srv.Hits("POST", "/api/books"))

	// A rotation behind the client's back costs one more rejected attempt.
	srv.RotateCSRF()
	_, err = client.Post(context.Background(), "/api/books", map[string]string{"title": "Hyperion"})
	require.NoError(t, err)
	require.Equal(t, 4, srv.Hits("POST", "/api/books"))
}

func TestPersistentCSRFFailureSurfacesAfterOneRetry(t *testing.T) {
	var posts atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CSRF-Token", "never-accepted")
		if r.Method == http.MethodPost {
			posts.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"error":{"message":"invalid csrf token","code":"CSRF_TOKEN_INVALID"}}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := api.New(srv.URL, api.WithCSRF("/init"))
	_, err := client.Post(context.Background(), "/items", nil)

	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusForbidden, reqErr.Status)
	require.Equal(t, "CSRF_TOKEN_INVALID", reqErr.Code)
	require.Equal(t, int64(2), posts.Load(), "a CSRF failure is retried exactly once")
}

func TestNonCSRFForbiddenIsNotRetried(t *testing.T) {
	var posts atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"error":{"message":"insufficient permissions"}}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := api.New(srv.URL, api.WithCSRF("/init"))
	_, err := client.Post(context.Background(), "/items", nil)

	require.Error(t, err)
	require.Equal(t, int64(1), posts.Load())
}
