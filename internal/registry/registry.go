// Package registry reads the cache-version keys that coordinate cache
// invalidation across services. Versions are read on startup and refreshed
// on a schedule; an absent key means version 1.
package registry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "cache_version:"

// watchedPrefixes are the keyspaces whose cache version the query path
// observes.
var watchedPrefixes = []string{"media", "person", "podcast", "book", "author"}

// Registry holds the current cache versions.
type Registry struct {
	client    *redis.Client
	logger    zerolog.Logger
	scheduler gocron.Scheduler

	mu       sync.RWMutex
	versions map[string]int
}

// New creates a registry and loads the initial versions.
func New(client *redis.Client, logger zerolog.Logger) *Registry {
	r := &Registry{
		client:   client,
		logger:   logger.With().Str("component", "registry").Logger(),
		versions: map[string]int{},
	}
	r.refresh(context.Background())
	return r
}

// Version returns the cache version for a keyspace prefix, defaulting to 1.
func (r *Registry) Version(prefix string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.versions[prefix]; ok {
		return v
	}
	return 1
}

// Versions returns a copy of all known versions.
func (r *Registry) Versions() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(watchedPrefixes))
	for _, p := range watchedPrefixes {
		v, ok := r.versions[p]
		if !ok {
			v = 1
		}
		out[p] = v
	}
	return out
}

// Start schedules periodic refreshes.
func (r *Registry) Start(interval time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			r.refresh(ctx)
		}),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	r.scheduler = scheduler
	return nil
}

// Stop shuts the refresh job down.
func (r *Registry) Stop() {
	if r.scheduler != nil {
		_ = r.scheduler.Shutdown()
	}
}

func (r *Registry) refresh(ctx context.Context) {
	updated := map[string]int{}
	for _, prefix := range watchedPrefixes {
		raw, err := r.client.Get(ctx, keyPrefix+prefix).Result()
		if err != nil {
			continue
		}
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			updated[prefix] = v
		}
	}

	r.mu.Lock()
	changed := false
	for k, v := range updated {
		if r.versions[k] != v {
			r.versions[k] = v
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.logger.Info().Interface("versions", updated).Msg("Cache versions updated")
	}
}
