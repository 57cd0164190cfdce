package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/meltforce/gymlog/internal/ai"
	"github.com/meltforce/gymlog/internal/config"
	"github.com/meltforce/gymlog/internal/ingest/alpha"
	"github.com/meltforce/gymlog/internal/mcp"
	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/server"
	"github.com/meltforce/gymlog/internal/stats"
	"github.com/meltforce/gymlog/internal/storage"
	"github.com/meltforce/gymlog/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (empty: environment only)")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(os.Stdout, cfg.Log)
	log.Info("GymLog starting", "version", Version, "driver", cfg.Database.Driver)

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(cfg.Database.Driver, dsn); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db.Pool != nil {
		reg.MustRegister(pgxpoolprometheus.NewCollector(db.Pool, map[string]string{"db_name": cfg.Database.Name}))
	}
	rec := metrics.NewCollector(reg)

	// AI adapters share one client; without a key every capability reports not_configured.
	var (
		llm ai.Completer    = ai.Disabled{}
		stt ai.SpeechToText = ai.Disabled{}
	)
	if cfg.AIEnabled() {
		client := ai.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.BaseURL, &http.Client{Timeout: cfg.AI.Timeout + 5*time.Second})
		llm, stt = client, client
		log.Info("AI enabled", "parse_model", cfg.AI.ParseModel, "coach_model", cfg.AI.CoachModel)
	} else {
		log.Warn("AI disabled: no API key configured")
	}

	workouts := workout.NewService(db, rec, log)
	statsSvc := stats.NewService(db, log)

	limiter := server.NewRateLimiter(server.RateLimitConfig{
		PerMinute: cfg.RateLimit.AIPerMinute,
		Burst:     cfg.RateLimit.AIBurst,
	}, log)
	defer limiter.Stop()

	tokens := make(map[string]string, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		tokens[t.Token] = t.UserID
	}

	srv := server.New(server.Deps{
		Workouts:    workouts,
		Stats:       statsSvc,
		Store:       db,
		Alpha:       alpha.NewProvider(db, log, false),
		Transcriber: ai.NewTranscriber(stt, cfg.AI.TranscribeModel, cfg.AI.Timeout, rec),
		Parser:      ai.NewParser(llm, cfg.AI.ParseModel, cfg.AI.Timeout, rec),
		Coach:       ai.NewCoach(llm, statsSvc, cfg.AI.CoachModel, cfg.AI.CoachLookback, cfg.AI.Timeout, rec),
		MCP:         mcp.New(statsSvc, Version, log),
		Metrics:     rec,
		Gatherer:    reg,
		Limiter:     limiter,
		Auth:        server.AuthConfig{DevUser: cfg.Auth.DevUser, Tokens: tokens},
		Log:         log,
	})

	// Serve on the tailnet when enabled, otherwise on a plain TCP listener.
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "dev_user", cfg.Auth.DevUser)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
