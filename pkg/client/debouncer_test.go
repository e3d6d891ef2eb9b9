package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediacircle/mediacircle/internal/media"
)

type countingServer struct {
	server            *httptest.Server
	autocompleteCalls int64
	searchCalls       int64

	mu      sync.Mutex
	queries []string
}

func newCountingServer(t *testing.T, respond func(path, q string) *media.Envelope) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		cs.mu.Lock()
		cs.queries = append(cs.queries, q)
		cs.mu.Unlock()

		switch r.URL.Path {
		case "/api/autocomplete":
			atomic.AddInt64(&cs.autocompleteCalls, 1)
		case "/api/search":
			atomic.AddInt64(&cs.searchCalls, 1)
		}

		envelope := respond(r.URL.Path, q)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(envelope)
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func emptyResponder(path, q string) *media.Envelope {
	return media.NewEnvelope()
}

func TestDebouncer_SingleFirePerPause(t *testing.T) {
	cs := newCountingServer(t, emptyResponder)

	var updates []Update
	var mu sync.Mutex
	d := NewDebouncer(New(cs.server.URL), DebouncerConfig{
		AutocompleteDelay: 60 * time.Millisecond,
		SearchDelay:       150 * time.Millisecond,
	}, func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	defer d.Close()

	// Rapid typing: a, ab, abc within the debounce window.
	d.Keystroke("a")
	time.Sleep(20 * time.Millisecond)
	d.Keystroke("ab")
	time.Sleep(20 * time.Millisecond)
	d.Keystroke("abc")

	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, int64(1), atomic.LoadInt64(&cs.autocompleteCalls))
	assert.Equal(t, int64(1), atomic.LoadInt64(&cs.searchCalls))

	cs.mu.Lock()
	for _, q := range cs.queries {
		assert.Equal(t, "abc", q)
	}
	cs.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	for _, u := range updates {
		assert.Equal(t, "abc", u.Query)
	}
}

func TestDebouncer_EnterFiresSearchImmediately(t *testing.T) {
	cs := newCountingServer(t, emptyResponder)

	done := make(chan Update, 4)
	d := NewDebouncer(New(cs.server.URL), DebouncerConfig{
		AutocompleteDelay: time.Hour,
		SearchDelay:       time.Hour,
	}, func(u Update) { done <- u })
	defer d.Close()

	d.Enter("dune part two")

	select {
	case u := <-done:
		assert.Equal(t, "dune part two", u.Query)
		assert.Equal(t, TierSearch, u.Tier)
	case <-time.After(2 * time.Second):
		t.Fatal("no update after Enter")
	}
	assert.Equal(t, int64(0), atomic.LoadInt64(&cs.autocompleteCalls))
	assert.Equal(t, int64(1), atomic.LoadInt64(&cs.searchCalls))
}

func TestDebouncer_SearchOverwritesAutocomplete(t *testing.T) {
	cs := newCountingServer(t, func(path, q string) *media.Envelope {
		envelope := media.NewEnvelope()
		if path == "/api/autocomplete" {
			envelope.Movie = []media.Document{{"mc_id": "from_autocomplete"}}
			envelope.TV = []media.Document{{"mc_id": "tv_from_autocomplete"}}
		} else {
			envelope.Movie = []media.Document{{"mc_id": "from_search"}}
		}
		return envelope
	})

	var mu sync.Mutex
	var last *media.Envelope
	d := NewDebouncer(New(cs.server.URL), DebouncerConfig{
		AutocompleteDelay: 30 * time.Millisecond,
		SearchDelay:       120 * time.Millisecond,
	}, func(u Update) {
		mu.Lock()
		last = u.Envelope
		mu.Unlock()
	})
	defer d.Close()

	d.Keystroke("dune")
	time.Sleep(450 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, last)
	require.Len(t, last.Movie, 1)
	assert.Equal(t, "from_search", last.Movie[0].ID())
	// Search owns every key it touches, including ones it emptied.
	assert.Empty(t, last.TV)
}

func TestDebouncer_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	cs := newCountingServer(t, func(path, q string) *media.Envelope {
		if q == "slow" {
			<-release
		}
		envelope := media.NewEnvelope()
		envelope.Movie = []media.Document{{"mc_id": "result_for_" + q}}
		return envelope
	})

	var mu sync.Mutex
	var got []string
	d := NewDebouncer(New(cs.server.URL), DebouncerConfig{
		AutocompleteDelay: 20 * time.Millisecond,
		SearchDelay:       time.Hour,
	}, func(u Update) {
		mu.Lock()
		if u.Envelope != nil && len(u.Envelope.Movie) > 0 {
			got = append(got, u.Envelope.Movie[0].ID())
		}
		mu.Unlock()
	})
	defer d.Close()

	d.Keystroke("slow")
	time.Sleep(80 * time.Millisecond)

	// Supersede while the slow response is in flight, then let it finish.
	d.Keystroke("fast")
	once.Do(func() { close(release) })
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, id := range got {
		assert.Equal(t, "result_for_fast", id)
	}
}
