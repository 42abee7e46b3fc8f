package routers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"speakmatch/internal/matchmaking"
	"speakmatch/internal/scoring"
	"speakmatch/internal/signaling"
)

func TestMatchRoutesRegistered(t *testing.T) {
	r := chi.NewRouter()
	MatchRoutes(r, &matchmaking.Handlers{})

	expected := map[string]struct{}{
		"POST /api/v1/match/join":   {},
		"POST /api/v1/match/cancel": {},
		"GET /api/v1/match/check":   {},
		"GET /api/v1/match/ws":      {},
	}

	if err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		delete(expected, method+" "+route)
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	if len(expected) != 0 {
		t.Fatalf("missing routes: %v", expected)
	}
}

func TestSessionRoutesRegistered(t *testing.T) {
	r := chi.NewRouter()
	SessionRoutes(r, &signaling.Relay{}, &scoring.Handlers{})

	expected := map[string]struct{}{
		"GET /api/v1/webrtc/config":                  {},
		"GET /api/v1/session/{sessionId}/":           {},
		"GET /api/v1/session/{sessionId}/ws":         {},
		"POST /api/v1/session/{sessionId}/connected": {},
		"POST /api/v1/session/{sessionId}/score":     {},
		"GET /api/v1/session/{sessionId}/scores":     {},
	}

	if err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		delete(expected, method+" "+route)
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	if len(expected) != 0 {
		t.Fatalf("missing routes: %v", expected)
	}
}

func TestHealthRouteRegistered(t *testing.T) {
	r := chi.NewRouter()
	HealthRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}
}
