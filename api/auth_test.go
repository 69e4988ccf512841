package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireAPIKey(t *testing.T) {
	blob := []byte(`{"version":2}`)
	store := &stubStorage{
		loadRawFn: func(context.Context) ([]byte, error) { return blob, nil },
	}

	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
		wantBody   string
	}{
		{name: "valid key", configured: "s3cret", sent: "s3cret", want: http.StatusOK},
		{name: "missing key", configured: "s3cret", sent: "", want: http.StatusUnauthorized, wantBody: "missing API key"},
		{name: "wrong key", configured: "s3cret", sent: "nope", want: http.StatusUnauthorized, wantBody: "invalid API key"},
		{name: "auth disabled", configured: "", sent: "", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(store, nil, tt.configured)
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			if tt.sent != "" {
				req.Header.Set(apiKeyHeader, tt.sent)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body = %s, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHealthzNotGuardedByAPIKey(t *testing.T) {
	e := newTestServer(&stubStorage{
		pingFn: func(context.Context) error { return nil },
	}, nil, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health probe must not need the key, status = %d", rec.Code)
	}
}
