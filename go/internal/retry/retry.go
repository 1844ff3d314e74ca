package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config controls how often and how patiently an operation is retried.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the delay before the given retry (1-based), doubling from
// BaseDelay and capped at MaxDelay.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt <= 0 || c.BaseDelay <= 0 {
		return 0
	}
	d := c.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a permanent error, the context ends or
// MaxRetries retries have been spent. Permanent errors are returned unwrapped.
func Do(ctx context.Context, clock clockwork.Clock, cfg Config, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if delay := cfg.Backoff(attempt); delay > 0 {
				timer := clock.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.Chan():
				}
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("op", op).
					Int("attempt", attempt+1).
					Msg("operation succeeded after retry")
			}
			return nil
		}
		if IsPermanent(err) {
			var p *permanentError
			errors.As(err, &p)
			return p.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("operation failed, retrying")
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxRetries+1, lastErr)
}
