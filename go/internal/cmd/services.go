package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/config"
	"github.com/mcdev12/planningpoker/go/internal/issues"
	"github.com/mcdev12/planningpoker/go/internal/memstore"
	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/presence"
	"github.com/mcdev12/planningpoker/go/internal/session"
	"github.com/mcdev12/planningpoker/go/internal/votes"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Issues   *issues.App
	Votes    *votes.App
	Presence session.Presence

	closers []func()
}

// Close releases everything setupServices opened, newest first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Repository layer → App layer, with the change feed publishing
	// into the hub the apps subscribe through
	clock := clockwork.NewRealClock()
	hub := changefeed.NewHub(collector)
	mode, err := cfg.Activation()
	if err != nil {
		return nil, err
	}

	s := &Services{}

	var (
		issueStore issues.Store
		voteStore  votes.Querier
	)
	if cfg.Feed.Mode == config.FeedMemory {
		mem := memstore.New(hub, clock)
		issueStore, voteStore = mem, mem
		log.Warn().Msg("using in-memory store, the room is local to this process")
	} else {
		db, dbCfg, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })

		pg := issues.NewPostgresStore(db)
		issueStore, voteStore = pg, pg
		if err := startFeed(ctx, cfg, dbCfg.DSN(), pokerdb.New(db), hub, clock, collector); err != nil {
			s.Close()
			return nil, err
		}
	}

	retryCfg := cfg.RetryConfig()
	s.Issues = issues.NewApp(issues.NewRepository(issueStore, mode), hub, clock, retryCfg)
	s.Votes = votes.NewApp(votes.NewRepository(voteStore), hub, clock, retryCfg)

	transport, closeTransport, err := setupPresence(ctx, cfg, clock)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closeTransport != nil {
		s.closers = append(s.closers, closeTransport)
	}
	s.Presence = session.FromTracker(presence.NewTracker(transport, collector))

	return s, nil
}

// startFeed runs the configured change feed until ctx is done.
func startFeed(ctx context.Context, cfg *config.Config, dsn string, reader changefeed.ChangeReader, hub *changefeed.Hub, clock clockwork.Clock, collector *metrics.Collector) error {
	switch cfg.Feed.Mode {
	case config.FeedListen:
		lcfg := changefeed.DefaultListenerConfig()
		lcfg.DatabaseURL = dsn
		lcfg.NotifyChannel = cfg.Feed.NotifyChannel
		lcfg.FallbackInterval = cfg.Feed.FallbackInterval
		listener, err := changefeed.NewListener(reader, hub, lcfg, collector)
		if err != nil {
			return fmt.Errorf("failed to start change listener: %w", err)
		}
		go func() {
			if err := listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("change listener stopped")
			}
		}()

	case config.FeedPoll:
		pcfg := changefeed.DefaultPollerConfig()
		pcfg.Interval = cfg.Feed.PollInterval
		poller := changefeed.NewPoller(reader, hub, clock, pcfg, collector)
		go func() {
			if err := poller.Start(ctx); err != nil {
				log.Error().Err(err).Msg("change poller stopped")
			}
		}()

	default:
		return fmt.Errorf("feed mode %q needs no database feed", cfg.Feed.Mode)
	}
	return nil
}

func setupPresence(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (presence.Transport, func(), error) {
	switch cfg.Presence.Transport {
	case config.PresenceNATS:
		ncfg := presence.DefaultNATSConfig()
		ncfg.URL = cfg.Presence.NATSURL
		ncfg.TTL = cfg.Presence.TTL
		t, err := presence.NewNATSTransport(ctx, ncfg, clock)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect presence to NATS: %w", err)
		}
		return t, t.Close, nil

	case config.PresenceWebSocket:
		return presence.NewWebSocketTransport(cfg.Presence.GatewayURL), nil, nil

	default:
		log.Warn().Msg("using in-memory presence, only this process will appear in the roster")
		return presence.NewMemoryTransport(), nil, nil
	}
}
