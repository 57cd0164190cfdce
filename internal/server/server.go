package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/gymlog/internal/ai"
	"github.com/meltforce/gymlog/internal/ingest"
	"github.com/meltforce/gymlog/internal/mcp"
	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/stats"
	"github.com/meltforce/gymlog/internal/storage"
	"github.com/meltforce/gymlog/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"tailscale.com/client/tailscale/apitype"
)

// WhoIsClient resolves a tailnet peer address to its owner. Satisfied by the
// tsnet LocalClient.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// Deps holds everything the handlers need. Store backs the import log
// endpoints; Gatherer and MCP are optional.
type Deps struct {
	Workouts    *workout.Service
	Stats       *stats.Service
	Store       storage.Store
	Alpha       ingest.Provider
	Transcriber ai.Transcriber
	Parser      ai.WorkoutParser
	Coach       ai.Coacher
	MCP         *mcpserver.MCPServer
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer
	Limiter     *RateLimiter
	Auth        AuthConfig
	Log         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	whois  WhoIsClient
	tokens map[string]string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps) *Server {
	if d.Metrics == nil {
		d.Metrics = metrics.Noop{}
	}
	s := &Server{
		Deps:   d,
		tokens: make(map[string]string, len(d.Auth.Tokens)),
		router: chi.NewRouter(),
	}
	for token, user := range d.Auth.Tokens {
		s.tokens[token] = user
	}
	s.routes()
	return s
}

// SetTailscale enables identity lookup through the tailnet. Requests from
// peers that WhoIs can resolve are attributed to the peer's login name.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.whois = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(Recovery(s.Log))
	s.router.Use(RequestLogging(s.Log, s.Metrics))
	s.router.Use(CORS)

	s.router.Get("/health", s.handleHealth)
	if s.Gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(s.Gatherer))
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.identify)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/me", s.handleMe)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateSession)
				r.Get("/", s.handleListSessions)
				r.Get("/export.csv", s.handleExportCSV)
				r.Get("/{id}", s.handleGetSession)
				r.Patch("/{id}", s.handleUpdateSession)
				r.Delete("/{id}", s.handleDeleteSession)
			})
			r.Post("/exercises", s.handleCreateExercise)
			r.Delete("/exercises/{id}", s.handleDeleteExercise)
			r.Post("/sets", s.handleCreateSet)
			r.Delete("/sets/{id}", s.handleDeleteSet)

			r.Post("/log-workout", s.handleLogWorkout)

			// Endpoints that call the model provider share a per-user budget.
			r.Group(func(r chi.Router) {
				if s.Limiter != nil {
					r.Use(s.Limiter.Middleware())
				}
				r.Post("/transcribe", s.handleTranscribe)
				r.Post("/parse-workout", s.handleParseWorkout)
				r.Post("/coach", s.handleCoach)
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/summary", s.handleSummary)
				r.Get("/volume", s.handleVolume)
				r.Get("/frequency", s.handleFrequency)
				r.Get("/records", s.handleRecords)
				r.Get("/data", s.handleDataStats)
			})

			r.Post("/import/alpha", s.handleAlphaImport)
			r.Get("/import/logs", s.handleImportLogs)
		})

		if s.MCP != nil {
			r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.MCP,
				mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
					return mcp.WithUserID(ctx, userIDFromContext(r))
				}),
			))
		}
	})
}
