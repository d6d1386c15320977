package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
)

// ReconnectConfig holds configuration for reconnection probing
type ReconnectConfig struct {
	MaxAttempts int           // attempts per Reconnect call
	Backoff     time.Duration // wait after the first failed attempt
	Multiplier  float64       // growth factor between attempts
	MaxBackoff  time.Duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// ReconnectFunc is one attempt to reach a backend
type ReconnectFunc func(ctx context.Context) error

// Reconnect calls fn until it succeeds, the attempts run out or ctx ends,
// waiting with exponential backoff in between.
func Reconnect(ctx context.Context, name string, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}
	logger := observability.WithComponent("reconnect").With().Str("service", name).Logger()

	backoff := config.Backoff
	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Reconnected")
			}
			return nil
		}

		if attempt == config.MaxAttempts {
			break
		}
		logger.Debug().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", config.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Reconnection attempt failed")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("%s unreachable after %d attempts: %w", name, config.MaxAttempts, lastErr)
}
