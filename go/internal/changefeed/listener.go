package changefeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to drain the log for missed notifications
	PingInterval     time.Duration
	BatchSize        int32 // Max changes to fetch per drain query
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "poker_changes",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener is the push feed: Postgres NOTIFY carries the change-log id, the
// row is fetched and published to the hub.
type Listener struct {
	listener *pq.Listener
	relay    *relay
	hub      *Hub
	cfg      ListenerConfig
	events   chan pq.ListenerEventType
}

func NewListener(reader ChangeReader, hub *Hub, cfg ListenerConfig, metrics MetricsCollector) (*Listener, error) {
	events := make(chan pq.ListenerEventType, 8)
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
			select {
			case events <- ev:
			default:
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		listener: l,
		relay:    newRelay(reader, hub, cfg.BatchSize, metrics, nil),
		hub:      hub,
		cfg:      cfg,
		events:   events,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	if err := l.relay.seek(ctx); err != nil {
		return err
	}

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Int64("from_id", l.relay.position()).
		Msg("listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case ev := <-l.events:
			if ev == pq.ListenerEventReconnected {
				l.recover(ctx)
			}
		case <-fallbackTicker.C:
			if _, err := l.relay.drain(ctx); err != nil {
				log.Error().Err(err).Msg("failed to drain missed changes")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification handles a pg notification whose payload is a change id.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := strconv.ParseInt(extra, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid change id in notification %q: %w", extra, err)
	}
	return l.relay.deliver(ctx, id)
}

// recover runs after a reconnect: notifications sent while disconnected are
// lost, so drain the log and ask every subscriber to re-read.
func (l *Listener) recover(ctx context.Context) {
	if _, err := l.relay.drain(ctx); err != nil {
		log.Error().Err(err).Msg("failed to drain changes after reconnect")
	}
	l.hub.Resync("reconnected")
}
