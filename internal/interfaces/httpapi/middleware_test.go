package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestShouldTraceRequest(t *testing.T) {
	for _, path := range []string{"/healthz", "/health", "/livez", "/readyz", " /HEALTHZ "} {
		if shouldTraceRequest(path) {
			t.Fatalf("expected no tracing for path %q", path)
		}
	}
	for _, path := range []string{"/v1/internal/poll", "/v1/internal/sessions", "/"} {
		if !shouldTraceRequest(path) {
			t.Fatalf("expected tracing for path %q", path)
		}
	}
}

func TestRequestLogging_RecordsStatusAndSkipsHealth(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := logging.FromZap(zap.New(core))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := RequestLogging(logger, next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if logs.Len() != 0 {
		t.Fatalf("expected health checks to be skipped, got %d entries", logs.Len())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/internal/lobby/ended", nil))
	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("expected status 418, got %v", fields["status"])
	}
	if fields["path"] != "/v1/internal/lobby/ended" || fields["method"] != http.MethodPost {
		t.Fatalf("unexpected request fields: %v", fields)
	}
}

func TestRequireInternalToken(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
		wantReach  bool
	}{
		{name: "unconfigured", configured: " ", provided: "x", wantStatus: http.StatusServiceUnavailable},
		{name: "missing", configured: "secret", wantStatus: http.StatusUnauthorized},
		{name: "wrong", configured: "secret", provided: "secreT", wantStatus: http.StatusUnauthorized},
		{name: "valid with padding", configured: "secret", provided: " secret ", wantStatus: http.StatusNoContent, wantReach: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/v1/internal/poll", nil)
			if tc.provided != "" {
				req.Header.Set(internalTokenHeader, tc.provided)
			}
			rec := httptest.NewRecorder()

			RequireInternalToken(tc.configured, next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if reached != tc.wantReach {
				t.Fatalf("expected next reached=%v, got %v", tc.wantReach, reached)
			}
		})
	}
}
