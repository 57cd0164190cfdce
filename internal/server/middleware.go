package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/gymlog/internal/metrics"
)

// AuthConfig lists the non-Tailscale identity sources. Tokens maps a bearer
// token to the user it authenticates. DevUser, when set, is assumed for
// requests that carry no other identity.
type AuthConfig struct {
	DevUser string
	Tokens  map[string]string
}

// UserInfo describes the authenticated caller.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Via         string `json:"via"`
}

type ctxKey int

const (
	userInfoKey ctxKey = iota
	requestInfoKey
)

// requestInfo is shared between the logging middleware and the identity
// middleware that runs deeper in the chain.
type requestInfo struct {
	user string
}

func userInfoFromContext(r *http.Request) UserInfo {
	info, _ := r.Context().Value(userInfoKey).(UserInfo)
	return info
}

func userIDFromContext(r *http.Request) string {
	return userInfoFromContext(r).Login
}

// identify resolves the caller from a bearer token, the tailnet, or the
// configured dev user, in that order. Requests without an identity get 401.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := s.resolveUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error: "authentication required",
				Kind:  "unauthenticated",
				Code:  "unauthenticated",
			})
			return
		}
		if ri, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
			ri.user = info.Login
		}
		ctx := context.WithValue(r.Context(), userInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveUser(r *http.Request) (UserInfo, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			return UserInfo{}, false
		}
		for t, user := range s.tokens {
			if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
				return UserInfo{Login: user, DisplayName: user, Via: "token"}, true
			}
		}
		return UserInfo{}, false
	}

	if s.whois != nil {
		who, err := s.whois.WhoIs(r.Context(), r.RemoteAddr)
		if err == nil && who.UserProfile != nil && who.UserProfile.LoginName != "" {
			return UserInfo{
				Login:       who.UserProfile.LoginName,
				DisplayName: who.UserProfile.DisplayName,
				Via:         "tailscale",
			}, true
		}
		if err != nil {
			s.Log.Debug("tailscale whois failed", "remote", r.RemoteAddr, "error", err)
		}
	}

	if s.Auth.DevUser != "" {
		return UserInfo{Login: s.Auth.DevUser, DisplayName: "Local Dev User", Via: "dev"}, true
	}
	return UserInfo{}, false
}

// RequestLogging returns middleware that logs each request and records its
// status and latency under the matched route pattern.
func RequestLogging(log *slog.Logger, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			ri := &requestInfo{}
			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, ri)))
			took := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			rec.RecordHTTPStatus(route, sw.status)
			rec.RecordRequestLatency(route, took)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", took.String(),
				"user", ri.user,
			)
		})
	}
}

// Recovery turns a panicking handler into a 500 so other requests are
// unaffected.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					log.Error("panic recovered",
						"panic", v,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					writeJSON(w, http.StatusInternalServerError, errorBody{
						Error: "internal server error",
						Kind:  "internal",
						Code:  "internal",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming responses such as MCP's event stream pass through.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
