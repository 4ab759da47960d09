package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cadenza-audio/cadenza/pkg/cadenza"
)

type nopGateway struct{}

func (nopGateway) WaitUntilReady(context.Context) error { return nil }
func (nopGateway) UserID() string                       { return "botuser" }
func (nopGateway) UpdateVoiceState(context.Context, string, string, bool) error {
	return nil
}

func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()

	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec.Body); got["status"] != "ok" {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := New(Checker{Name: "always", Check: func(context.Context) error { return nil }})
		rec := httptest.NewRecorder()

		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		got := decodeBody(t, rec.Body)
		checks := got["checks"].(map[string]any)
		if checks["always"] != "ok" {
			t.Errorf("unexpected checks: %v", checks)
		}
	})

	t.Run("failing check returns 503", func(t *testing.T) {
		h := New(
			Checker{Name: "good", Check: func(context.Context) error { return nil }},
			Checker{Name: "bad", Check: func(context.Context) error { return errors.New("down") }},
		)
		rec := httptest.NewRecorder()

		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		got := decodeBody(t, rec.Body)
		if got["status"] != "fail" {
			t.Errorf("unexpected status: %v", got["status"])
		}
		checks := got["checks"].(map[string]any)
		if checks["good"] != "ok" || !strings.Contains(checks["bad"].(string), "down") {
			t.Errorf("unexpected checks: %v", checks)
		}
	})
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestNodesChecker(t *testing.T) {
	client := cadenza.New(nopGateway{},
		cadenza.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	// No nodes registered at all.
	err := NodesChecker(client).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no connected node") {
		t.Errorf("expected a no-connected-node error, got %v", err)
	}
}
