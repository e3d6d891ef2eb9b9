// Package broker wraps external providers behind a uniform fetch contract
// with timeouts, rate limiting and failure absorption.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mediacircle/mediacircle/internal/media"
)

// APIError is a provider failure carrying the upstream HTTP status. A zero
// status means a transport-level failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// Fetcher is the provider-native search function: opaque to the query
// runtime beyond this contract.
type Fetcher interface {
	Name() string
	IsConfigured() bool
	Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error)
}

// Result is the adapter outcome. Failures never propagate as Go errors to
// the orchestrator; they are recorded here and yield an empty item list.
type Result struct {
	Items      []media.BrokeredItem
	LatencyMs  int64
	Error      string
	StatusCode int
}

// Adapter decorates a Fetcher with a timeout, a rate limiter and a circuit
// breaker. All three are per-provider.
type Adapter struct {
	fetcher Fetcher
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewAdapter wraps a fetcher. A zero timeout disables the adapter-level
// deadline (the request context still applies).
func NewAdapter(fetcher Fetcher, timeout time.Duration, logger zerolog.Logger) *Adapter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fetcher.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Adapter{
		fetcher: fetcher,
		timeout: timeout,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger.With().Str("component", "broker").Str("provider", fetcher.Name()).Logger(),
	}
}

// Name returns the wrapped provider's name.
func (a *Adapter) Name() string { return a.fetcher.Name() }

// Fetch runs the provider under the adapter's policy. It never panics and
// never returns a Go error: any failure becomes a structured Result with
// an empty item list. Context cancellation abandons in-flight work.
func (a *Adapter) Fetch(ctx context.Context, text string, limit int) Result {
	if !a.fetcher.IsConfigured() {
		return Result{Items: []media.BrokeredItem{}}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Result{Items: []media.BrokeredItem{}, Error: "rate limit wait cancelled"}
	}

	start := time.Now()
	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.fetcher.Fetch(ctx, text, limit)
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		result := Result{Items: []media.BrokeredItem{}, LatencyMs: latency, Error: err.Error()}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			result.StatusCode = apiErr.StatusCode
		}
		if ctx.Err() == nil {
			a.logger.Warn().
				Err(err).
				Int("status", result.StatusCode).
				Int64("latencyMs", latency).
				Msg("Provider fetch failed")
		}
		return result
	}

	items, _ := out.([]media.BrokeredItem)
	if items == nil {
		items = []media.BrokeredItem{}
	}
	for i := range items {
		stampIdentity(&items[i], a.fetcher.Name())
		items[i].SortOrder = i
	}
	return Result{Items: items, LatencyMs: latency}
}

// stampIdentity enforces the mc_id contract on provider output:
// <source>_<source_id>, or <source>_<subtype>_<source_id> when a subtype
// disambiguates.
func stampIdentity(item *media.BrokeredItem, source string) {
	if item.Source == "" {
		item.Source = source
	}
	if item.MCID != "" || item.SourceID == "" {
		return
	}
	if item.MCSubtype != "" {
		item.MCID = fmt.Sprintf("%s_%s_%s", item.Source, item.MCSubtype, item.SourceID)
	} else {
		item.MCID = fmt.Sprintf("%s_%s", item.Source, item.SourceID)
	}
}
