package search

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediacircle/mediacircle/internal/broker"
	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]index.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(ctx context.Context, q index.Query) (index.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q.Source)
	f.mu.Unlock()

	if q.NoOp {
		return index.Result{Docs: []index.ScoredDoc{}}, nil
	}
	if err, ok := f.errs[q.Source]; ok {
		return index.Result{}, err
	}
	if r, ok := f.results[q.Source]; ok {
		return r, nil
	}
	return index.Result{Docs: []index.ScoredDoc{}}, nil
}

func (f *fakeSearcher) Ping(ctx context.Context) error { return nil }

func (f *fakeSearcher) called(source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == source {
			return true
		}
	}
	return false
}

type fakeBrokered struct {
	name  string
	items []media.BrokeredItem
	fail  string

	mu    sync.Mutex
	calls int
}

func (f *fakeBrokered) Name() string { return f.name }

func (f *fakeBrokered) Fetch(ctx context.Context, text string, limit int) broker.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail != "" {
		return broker.Result{Items: []media.BrokeredItem{}, Error: f.fail, StatusCode: 502}
	}
	return broker.Result{Items: f.items, LatencyMs: 1}
}

func (f *fakeBrokered) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOptions() Options {
	return Options{
		AutocompleteTimeout: 250 * time.Millisecond,
		SearchTimeout:       500 * time.Millisecond,
		BrokeredTimeout:     500 * time.Millisecond,
		RequestSlack:        100 * time.Millisecond,
		DefaultLimit:        10,
		MaxLimit:            50,
	}
}

func newTestService(searcher *fakeSearcher, brokered map[string]BrokeredRunner) *Service {
	return NewService(searcher, brokered, testOptions(), zerolog.Nop())
}

func TestSearch_EnvelopeHasAllKeys(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	})

	body, err := json.Marshal(outcome.Envelope)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &decoded))

	for _, key := range []string{
		"exact_match", "tv", "movie", "person", "podcast", "author", "book",
		"news", "video", "ratings", "artist", "album",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, "null", string(decoded["exact_match"]))
	assert.Equal(t, "[]", string(decoded["tv"]))
}

func TestSearch_AutocompleteExcludesBrokered(t *testing.T) {
	news := &fakeBrokered{
		name:  media.SourceNews,
		items: []media.BrokeredItem{{MCID: "news_1", MCType: media.TypeNewsArticle, Source: media.SourceNews}},
	}
	svc := newTestService(&fakeSearcher{}, map[string]BrokeredRunner{media.SourceNews: news})

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "election", Limit: -1, Mode: media.ModeAutocomplete,
	})

	assert.Empty(t, outcome.Envelope.News)
	assert.Equal(t, 0, news.callCount(), "autocomplete must not reach brokered providers")
}

func TestSearch_BrokeredIncludedInSearchMode(t *testing.T) {
	news := &fakeBrokered{
		name:  media.SourceNews,
		items: []media.BrokeredItem{{MCID: "news_1", MCType: media.TypeNewsArticle, Source: media.SourceNews, SearchTitle: "Election"}},
	}
	svc := newTestService(&fakeSearcher{}, map[string]BrokeredRunner{media.SourceNews: news})

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "election", Limit: -1, Mode: media.ModeSearch,
	})

	require.Len(t, outcome.Envelope.News, 1)
	assert.Equal(t, "news_1", outcome.Envelope.News[0].MCID)
}

func TestSearch_BrokeredFailureYieldsEmptyArray(t *testing.T) {
	news := &fakeBrokered{name: media.SourceNews, fail: "upstream 502"}
	svc := newTestService(&fakeSearcher{}, map[string]BrokeredRunner{media.SourceNews: news})

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "election", Limit: -1, Mode: media.ModeSearch,
	})

	assert.NotNil(t, outcome.Envelope.News)
	assert.Empty(t, outcome.Envelope.News)
	assert.False(t, outcome.IndexDown)
}

func TestSearch_ExactMatchPriority(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]index.Result{
		media.SourceTV: {Docs: []index.ScoredDoc{
			mediaDoc("tv_dune", "Dune", map[string]any{"mc_type": "tv", "source": "tmdb"}),
		}},
		media.SourceMovie: {Docs: []index.ScoredDoc{
			mediaDoc("movie_dune", "Dune", map[string]any{"mc_type": "movie", "source": "tmdb"}),
		}},
	}}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	})

	match, ok := outcome.Envelope.ExactMatch.(media.Document)
	require.True(t, ok)
	assert.Equal(t, "movie_dune", match.ID())
}

func TestSearch_SourceHintNarrowsFanOut(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]index.Result{
		media.SourcePerson: {Docs: []index.ScoredDoc{
			mediaDoc("tmdb_person_31", "Tom Hanks", map[string]any{"mc_type": "person"}),
		}},
	}}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "person:tom", Limit: -1, Mode: media.ModeAutocomplete,
	})

	assert.Equal(t, []string{"person"}, outcome.Envelope.SourceHint)
	assert.True(t, searcher.called(media.SourcePerson))
	assert.False(t, searcher.called(media.SourceMovie))
	assert.Empty(t, outcome.Envelope.Movie)
	require.Len(t, outcome.Envelope.Person, 1)
}

func TestSearch_ZeroLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: 0, Mode: media.ModeSearch,
	})

	assert.Empty(t, searcher.calls)
	assert.Empty(t, outcome.Envelope.Movie)
	assert.Nil(t, outcome.Envelope.ExactMatch)
}

func TestSearch_ShortQuerySkipsAllSources(t *testing.T) {
	searcher := &fakeSearcher{}
	news := &fakeBrokered{name: media.SourceNews, items: []media.BrokeredItem{{MCID: "news_1"}}}
	svc := newTestService(searcher, map[string]BrokeredRunner{media.SourceNews: news})

	for _, q := range []string{"", "a", " x "} {
		outcome := svc.Search(context.Background(), "req-1", media.Request{
			Q: q, Limit: -1, Mode: media.ModeSearch,
		})
		assert.Empty(t, outcome.Envelope.News, "query %q", q)
		assert.Nil(t, outcome.Envelope.ExactMatch)
	}

	assert.Empty(t, searcher.calls)
	assert.Equal(t, 0, news.callCount())
}

func TestSearch_IndexDown(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{
		media.SourceTV:      index.ErrIndexUnavailable,
		media.SourceMovie:   index.ErrIndexUnavailable,
		media.SourcePerson:  index.ErrIndexUnavailable,
		media.SourcePodcast: index.ErrIndexUnavailable,
		media.SourceBook:    index.ErrIndexUnavailable,
		media.SourceAuthor:  index.ErrIndexUnavailable,
	}}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	})

	assert.True(t, outcome.IndexDown)
	assert.Empty(t, outcome.Envelope.Movie)
}

func TestSearch_PartialIndexFailureIsNotDown(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{
		media.SourceTV: index.ErrIndexUnavailable,
	}}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	})

	assert.False(t, outcome.IndexDown)
}

func TestSearch_PopularityNormalized(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]index.Result{
		media.SourceMovie: {Docs: []index.ScoredDoc{
			mediaDoc("movie_1", "Dune", map[string]any{"mc_type": "movie", "popularity": 500.0}),
		}},
	}}
	svc := newTestService(searcher, nil)

	outcome := svc.Search(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	})

	require.Len(t, outcome.Envelope.Movie, 1)
	assert.InDelta(t, 50.0, outcome.Envelope.Movie[0].Popularity(), 0.001)
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("stream did not complete")
		}
	}
}

func TestStream_DoneIsLastAndOnce(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]index.Result{
		media.SourceMovie: {Docs: []index.ScoredDoc{
			mediaDoc("movie_dune", "Dune", map[string]any{"mc_type": "movie"}),
		}},
	}}
	svc := newTestService(searcher, nil)

	events := collectEvents(t, svc.Stream(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	}))

	require.NotEmpty(t, events)
	doneCount := 0
	for _, e := range events {
		if e.Type == EventDone {
			doneCount++
		}
	}
	assert.Equal(t, 1, doneCount)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestStream_ResultPerEnabledSource(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, nil)

	events := collectEvents(t, svc.Stream(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeAutocomplete,
	}))

	seen := map[string]bool{}
	for _, e := range events {
		if e.Type == EventResult {
			seen[e.Source] = true
		}
	}
	for _, source := range media.IndexedSources {
		assert.True(t, seen[source], "missing result event for %s", source)
	}
	for _, source := range media.BrokeredSources {
		assert.False(t, seen[source], "autocomplete stream must exclude %s", source)
	}
}

func TestStream_ExactMatchAtMostOnce(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]index.Result{
		media.SourceMovie: {Docs: []index.ScoredDoc{
			mediaDoc("movie_dune", "Dune", map[string]any{"mc_type": "movie"}),
		}},
		media.SourceTV: {Docs: []index.ScoredDoc{
			mediaDoc("tv_dune", "Dune", map[string]any{"mc_type": "tv"}),
		}},
	}}
	svc := newTestService(searcher, nil)

	events := collectEvents(t, svc.Stream(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	}))

	matches := 0
	doneSeen := false
	for _, e := range events {
		switch e.Type {
		case EventExactMatch:
			matches++
			assert.False(t, doneSeen, "exact_match must not follow done")
		case EventDone:
			doneSeen = true
		}
	}
	assert.Equal(t, 1, matches)
}

func TestStream_FailedSourceStillEmitsResult(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{
		media.SourceMovie: index.ErrIndexUnavailable,
	}}
	svc := newTestService(searcher, nil)

	events := collectEvents(t, svc.Stream(context.Background(), "req-1", media.Request{
		Q: "dune", Limit: -1, Mode: media.ModeSearch,
	}))

	var movieEvent *Event
	for i, e := range events {
		if e.Type == EventResult && e.Source == media.SourceMovie {
			movieEvent = &events[i]
		}
	}
	require.NotNil(t, movieEvent)
	docs, ok := movieEvent.Results.([]media.Document)
	require.True(t, ok)
	assert.Empty(t, docs)
}

func TestEnabledSources(t *testing.T) {
	tests := []struct {
		name string
		req  media.Request
		hint []string
		want []string
	}{
		{
			name: "autocomplete masks brokered",
			req:  media.Request{Mode: media.ModeAutocomplete},
			want: media.IndexedSources,
		},
		{
			name: "search includes all",
			req:  media.Request{Mode: media.ModeSearch},
			want: media.AllSources,
		},
		{
			name: "request filter intersects",
			req:  media.Request{Mode: media.ModeSearch, Sources: []string{"movie", "news"}},
			want: []string{"movie", "news"},
		},
		{
			name: "hint intersects with filter",
			req:  media.Request{Mode: media.ModeSearch, Sources: []string{"movie", "tv"}},
			hint: []string{"movie"},
			want: []string{"movie"},
		},
		{
			name: "mask beats explicit brokered request",
			req:  media.Request{Mode: media.ModeAutocomplete, Sources: []string{"news"}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnabledSources(tt.req, tt.hint))
		})
	}
}
