package changefeed

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type PollerConfig struct {
	Interval  time.Duration
	BatchSize int32
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:  2 * time.Second,
		BatchSize: 100,
	}
}

// Poller is the polling feed. It reads the change log on a fixed interval and
// publishes into the same hub as the Listener.
type Poller struct {
	relay *relay
	hub   *Hub
	clock clockwork.Clock
	cfg   PollerConfig

	failing bool
}

func NewPoller(reader ChangeReader, hub *Hub, clock clockwork.Clock, cfg PollerConfig, metrics MetricsCollector) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollerConfig().Interval
	}
	return &Poller{
		relay: newRelay(reader, hub, cfg.BatchSize, metrics, clock),
		hub:   hub,
		clock: clock,
		cfg:   cfg,
	}
}

func (p *Poller) Start(ctx context.Context) error {
	if err := p.relay.seek(ctx); err != nil {
		return err
	}
	log.Info().Dur("interval", p.cfg.Interval).Int64("from_id", p.relay.position()).Msg("poller started")

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller shutting down")
			return nil
		case <-ticker.Chan():
			p.Poll(ctx)
		}
	}
}

// Poll runs one drain; changes that commit out of id order are picked up
// on a later poll. After a failed poll recovers, subscribers are asked to
// resync in case the log was trimmed in between.
func (p *Poller) Poll(ctx context.Context) {
	if _, err := p.relay.drain(ctx); err != nil {
		if !p.failing {
			log.Error().Err(err).Msg("poll failed")
		}
		p.failing = true
		return
	}
	if p.failing {
		p.failing = false
		p.hub.Resync("poll recovered")
	}
}
