// Package startup contains helpers for bringing external dependencies up
// before the server accepts traffic.
package startup

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures the exponential backoff retry behavior.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// DefaultRetryConfig returns defaults suited to waiting out an index that
// is still coming up alongside the service.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  6,
		Multiplier:   2.0,
	}
}

// IsNetworkError checks if an error is likely due to network unavailability.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	if errors.As(err, &netErr) || errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"no such host",
		"timeout",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"i/o timeout",
		"connection reset",
		"unavailable",
	}
	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// WithRetry executes fn with exponential backoff for network errors only.
// Non-network errors fail immediately without retry.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func() error, logger zerolog.Logger) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Str("operation", name).Int("attempt", attempt).Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !IsNetworkError(err) {
			logger.Error().Err(err).Str("operation", name).Msg("Non-network error, not retrying")
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("nextRetryIn", delay).
			Msg("Network error, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	logger.Error().Err(lastErr).Str("operation", name).Int("attempts", cfg.MaxAttempts).
		Msg("Operation failed after all retries")
	return lastErr
}
