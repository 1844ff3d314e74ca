package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/planningpoker/go/internal/config"
	"github.com/mcdev12/planningpoker/go/internal/identity"
	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", getEnv("POKER_CONFIG", "poker.yaml"), "path to the YAML config file")
	gameFlag := flag.String("game", "", "room to join, overrides GAME_ID; a new room is created when both are empty")
	nameFlag := flag.String("name", "", "display name to use in the room")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *gameFlag != "" {
		cfg.GameID = *gameFlag
	}
	setupLogging(cfg.LogLevel)
	if cfg.EnsureGameID() {
		log.Info().Str("game_id", cfg.GameID).Msg("no room given, created a new one; share this id to invite others")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids := identity.NewStore(identity.FilePersister{Path: cfg.ProfilePath})
	self := ids.GetOrCreate()
	if *nameFlag != "" {
		if self, err = ids.SetName(*nameFlag); err != nil {
			log.Fatal().Err(err).Msg("invalid display name")
		}
	}
	if ids.Degraded() {
		log.Warn().Str("path", cfg.ProfilePath).Msg("profile storage unavailable, identity will not persist")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	services, err := setupServices(ctx, cfg, collector)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	log.Info().
		Str("game_id", cfg.GameID).
		Str("participant_id", self.ID).
		Str("feed", cfg.Feed.Mode).
		Str("presence", cfg.Presence.Transport).
		Msg("joining room")

	ctrl := session.NewController(cfg.SessionConfig(), self, services.Issues, services.Votes, services.Presence, collector)
	if err := ctrl.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("initial load failed, will keep retrying")
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("session stopped")
		}
	}()

	repl := newREPL(ctrl, ids, os.Stdout)
	go repl.Watch(ctx, ctrl.Updates(), ctrl.Notices())
	repl.Run(ctx, os.Stdin)

	stop()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("timed out leaving the room")
	}
	log.Info().Msg("bye")
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("metrics server starting")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
