package client

import (
	"context"
	"sync"
	"time"

	"github.com/mediacircle/mediacircle/internal/media"
)

// Tier identifies which debounce tier produced an update.
type Tier int

const (
	TierAutocomplete Tier = iota + 1
	TierSearch
)

// Update is delivered to the listener after each merge. Envelope is the
// accumulated view across both tiers for the current query.
type Update struct {
	Query    string
	Tier     Tier
	Envelope *media.Envelope
	Err      error
}

// Debouncer coalesces keystrokes into at most one autocomplete and one
// search request per pause in typing. A changed query cancels all
// in-flight requests and clears the accumulator; stale responses are
// discarded. Search results overwrite autocomplete results for every
// envelope key they touch.
type Debouncer struct {
	client            *Client
	params            Params
	autocompleteDelay time.Duration
	searchDelay       time.Duration
	onUpdate          func(Update)

	mu          sync.Mutex
	query       string
	ctx         context.Context
	cancel      context.CancelFunc
	timers      [2]*time.Timer
	accumulator *media.Envelope
	searchOwned map[string]bool
	closed      bool
}

// DebouncerConfig configures timing; zero values take the defaults
// (300 ms autocomplete, 750 ms search).
type DebouncerConfig struct {
	AutocompleteDelay time.Duration
	SearchDelay       time.Duration
	Params            Params
}

// NewDebouncer creates a debouncer delivering merged updates to onUpdate.
// The callback runs on request goroutines and must not block for long.
func NewDebouncer(c *Client, cfg DebouncerConfig, onUpdate func(Update)) *Debouncer {
	if cfg.AutocompleteDelay <= 0 {
		cfg.AutocompleteDelay = 300 * time.Millisecond
	}
	if cfg.SearchDelay <= 0 {
		cfg.SearchDelay = 750 * time.Millisecond
	}
	return &Debouncer{
		client:            c,
		params:            cfg.Params,
		autocompleteDelay: cfg.AutocompleteDelay,
		searchDelay:       cfg.SearchDelay,
		onUpdate:          onUpdate,
		accumulator:       media.NewEnvelope(),
		searchOwned:       map[string]bool{},
	}
}

// Keystroke records the current query text. A changed text cancels
// everything in flight and restarts both tiers.
func (d *Debouncer) Keystroke(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || q == d.query {
		return
	}
	d.resetLocked(q)

	d.timers[0] = time.AfterFunc(d.autocompleteDelay, func() {
		d.fire(q, TierAutocomplete)
	})
	d.timers[1] = time.AfterFunc(d.searchDelay, func() {
		d.fire(q, TierSearch)
	})
}

// Enter forces search mode immediately for the given query.
func (d *Debouncer) Enter(q string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if q != d.query {
		d.resetLocked(q)
	} else {
		d.stopTimersLocked()
	}
	d.mu.Unlock()

	d.fire(q, TierSearch)
}

// Close cancels everything and stops the debouncer.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopTimersLocked()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// resetLocked supersedes the previous query: cancel in-flight work, stop
// timers, clear the accumulator and open a fresh query-scoped context.
func (d *Debouncer) resetLocked(q string) {
	d.stopTimersLocked()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.query = q
	d.accumulator = media.NewEnvelope()
	d.searchOwned = map[string]bool{}
}

func (d *Debouncer) stopTimersLocked() {
	for i, t := range d.timers {
		if t != nil {
			t.Stop()
			d.timers[i] = nil
		}
	}
}

// fire issues one request for the given tier and merges the response if
// it is still current. The query-scoped context makes supersession cancel
// every tier at once.
func (d *Debouncer) fire(q string, tier Tier) {
	d.mu.Lock()
	if d.closed || q != d.query || d.ctx == nil {
		d.mu.Unlock()
		return
	}
	ctx := d.ctx
	d.mu.Unlock()

	d.request(ctx, q, tier)
}

func (d *Debouncer) request(ctx context.Context, q string, tier Tier) {
	var envelope *media.Envelope
	var err error
	if tier == TierAutocomplete {
		envelope, err = d.client.Autocomplete(ctx, q, d.params)
	} else {
		envelope, err = d.client.Search(ctx, q, d.params)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Discard stale responses: the query moved on while we were in
	// flight.
	if d.closed || q != d.query {
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.emitLocked(Update{Query: q, Tier: tier, Err: err})
		return
	}

	d.mergeLocked(envelope, tier)
	d.emitLocked(Update{Query: q, Tier: tier, Envelope: d.accumulator})
}

// mergeLocked folds a response into the accumulator. Search owns every
// key it touches; autocomplete only fills keys search has not written.
func (d *Debouncer) mergeLocked(envelope *media.Envelope, tier Tier) {
	write := func(key string, apply func()) {
		if tier == TierSearch {
			d.searchOwned[key] = true
			apply()
		} else if !d.searchOwned[key] {
			apply()
		}
	}

	for _, source := range media.IndexedSources {
		src := source
		docs := envelope.Documents(src)
		write(src, func() { d.accumulator.SetDocuments(src, docs) })
	}
	write(media.SourceNews, func() { d.accumulator.News = envelope.News })
	write(media.SourceVideo, func() { d.accumulator.Video = envelope.Video })
	write(media.SourceRatings, func() { d.accumulator.Ratings = envelope.Ratings })
	write(media.SourceArtist, func() { d.accumulator.Artist = envelope.Artist })
	write(media.SourceAlbum, func() { d.accumulator.Album = envelope.Album })
	write("exact_match", func() { d.accumulator.ExactMatch = envelope.ExactMatch })
	write("source_hint", func() { d.accumulator.SourceHint = envelope.SourceHint })
}

func (d *Debouncer) emitLocked(update Update) {
	if d.onUpdate != nil {
		d.onUpdate(update)
	}
}
