package observability

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if seen == "" {
		t.Fatal("trace id missing from context")
	}
	if got := rr.Header().Get("X-Trace-ID"); got != seen {
		t.Fatalf("response header trace id = %q, context = %q", got, seen)
	}
}

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-123" {
			t.Fatalf("trace id = %q", got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestLoggingMiddlewareLevelTracksStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, `"level":"INFO"`},
		{http.StatusBadRequest, `"level":"WARN"`},
		{http.StatusInternalServerError, `"level":"ERROR"`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))

		if out := buf.String(); !strings.Contains(out, tc.level) {
			t.Fatalf("status %d log = %s", tc.status, out)
		}
	}
}

func TestRouteLabelFoldsUnknownPaths(t *testing.T) {
	if got := routeLabel("/v1/analyze"); got != "/v1/analyze" {
		t.Fatalf("routeLabel(/v1/analyze) = %q", got)
	}
	if got := routeLabel("/wp-admin/setup.php"); got != "other" {
		t.Fatalf("routeLabel(unknown) = %q", got)
	}
}
