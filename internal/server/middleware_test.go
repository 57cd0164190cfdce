package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWhoIs struct {
	resp *apitype.WhoIsResponse
	err  error
}

func (f fakeWhoIs) WhoIs(context.Context, string) (*apitype.WhoIsResponse, error) {
	return f.resp, f.err
}

// identityServer builds a bare Server whose identify middleware is under test.
func identityServer(auth AuthConfig, whois WhoIsClient) *Server {
	s := &Server{Deps: Deps{Auth: auth, Log: discardLogger()}, tokens: auth.Tokens, whois: whois}
	if s.tokens == nil {
		s.tokens = map[string]string{}
	}
	return s
}

func runIdentify(s *Server, header string) (int, UserInfo) {
	var got UserInfo
	handler := s.identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = userInfoFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code, got
}

// TestDevIdentity verifies the configured dev user is assumed when a request
// carries no other identity.
func TestDevIdentity(t *testing.T) {
	code, info := runIdentify(identityServer(AuthConfig{DevUser: "local"}, nil), "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if info.Login != "local" || info.DisplayName != "Local Dev User" {
		t.Errorf("info = %+v, want local dev user", info)
	}
}

// TestBearerToken verifies tokens win over the dev user and unknown tokens
// are rejected rather than falling through.
func TestBearerToken(t *testing.T) {
	s := identityServer(AuthConfig{DevUser: "local", Tokens: map[string]string{"s3cret": "alice"}}, nil)

	code, info := runIdentify(s, "Bearer s3cret")
	if code != http.StatusOK || info.Login != "alice" || info.Via != "token" {
		t.Errorf("valid token: status %d, info %+v", code, info)
	}
	if code, _ := runIdentify(s, "Bearer wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", code)
	}
	if code, _ := runIdentify(s, "Basic abc"); code != http.StatusUnauthorized {
		t.Errorf("basic auth: status = %d, want 401", code)
	}
}

// TestTailscaleIdentity verifies the WhoIs login is used and a failed lookup
// falls back to the next source.
func TestTailscaleIdentity(t *testing.T) {
	whois := fakeWhoIs{resp: &apitype.WhoIsResponse{
		UserProfile: &tailcfg.UserProfile{LoginName: "alice@example.com", DisplayName: "Alice"},
	}}
	code, info := runIdentify(identityServer(AuthConfig{}, whois), "")
	if code != http.StatusOK || info.Login != "alice@example.com" || info.DisplayName != "Alice" {
		t.Errorf("status %d, info %+v", code, info)
	}

	failing := fakeWhoIs{err: errors.New("no such peer")}
	if code, _ := runIdentify(identityServer(AuthConfig{}, failing), ""); code != http.StatusUnauthorized {
		t.Errorf("failed whois without fallback: status = %d, want 401", code)
	}
	if _, info := runIdentify(identityServer(AuthConfig{DevUser: "local"}, failing), ""); info.Login != "local" {
		t.Errorf("failed whois fallback = %q, want local", info.Login)
	}
}

// TestNoIdentity verifies requests are rejected when nothing identifies them.
func TestNoIdentity(t *testing.T) {
	if code, _ := runIdentify(identityServer(AuthConfig{}, nil), ""); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

// TestUserInfoFromContextDefault verifies the zero UserInfo when no identity
// middleware has run.
func TestUserInfoFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := userIDFromContext(req); id != "" {
		t.Errorf("userIDFromContext = %q, want empty", id)
	}
}

type routeRecorder struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (r *routeRecorder) RecordHTTPStatus(route string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	r.codes = append(r.codes, code)
}
func (r *routeRecorder) RecordRequestLatency(string, time.Duration) {}
func (r *routeRecorder) RecordRemoteCall(string, string, time.Duration) {}
func (r *routeRecorder) RecordWorkoutLogged(int) {}
func (r *routeRecorder) RecordImport(string, string, int) {}

// TestRequestLogging verifies the middleware passes the status through and
// records it under the route pattern rather than the raw path.
func TestRequestLogging(t *testing.T) {
	rec := &routeRecorder{}
	router := chi.NewRouter()
	router.Use(RequestLogging(discardLogger(), rec))
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if resp.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.Code)
	}
	if len(rec.routes) != 1 || rec.routes[0] != "/items/{id}" || rec.codes[0] != http.StatusCreated {
		t.Errorf("recorded = %v %v", rec.routes, rec.codes)
	}
}

// TestRecovery verifies a panicking handler yields a 500.
func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// TestCORSHeaders verifies that CORS headers are set on responses.
func TestCORSHeaders(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q, want *", got)
	}
}

// TestCORSPreflight verifies that OPTIONS requests get 204 with CORS headers.
func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

// TestRateLimiter verifies per-user buckets and 429 responses.
func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 2}, discardLogger())
	defer rl.Stop()

	s := identityServer(AuthConfig{Tokens: map[string]string{"a": "alice", "b": "bob"}}, nil)
	handler := s.identify(rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("a"); rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
	}
	rec := call("a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third call: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if rec := call("b"); rec.Code != http.StatusOK {
		t.Errorf("other user: status = %d, want 200", rec.Code)
	}
	if rl.Len() != 2 {
		t.Errorf("limiters = %d, want 2", rl.Len())
	}

	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Errorf("limiters after cleanup = %d, want 0", rl.Len())
	}
	rl.Stop()
}
