package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mediacircle/mediacircle/internal/broker"
	"github.com/mediacircle/mediacircle/internal/config"
	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/metrics"
	"github.com/mediacircle/mediacircle/internal/query"
)

// BrokeredRunner is the adapter-side contract the orchestrator fans out
// to. broker.Adapter satisfies it.
type BrokeredRunner interface {
	Name() string
	Fetch(ctx context.Context, text string, limit int) broker.Result
}

// Options holds query-path deadlines and limits derived from config.
type Options struct {
	AutocompleteTimeout time.Duration
	SearchTimeout       time.Duration
	BrokeredTimeout     time.Duration
	RequestSlack        time.Duration
	DefaultLimit        int
	MaxLimit            int
}

// OptionsFromConfig converts the config section.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		AutocompleteTimeout: time.Duration(cfg.AutocompleteTimeoutMs) * time.Millisecond,
		SearchTimeout:       time.Duration(cfg.SearchTimeoutMs) * time.Millisecond,
		BrokeredTimeout:     time.Duration(cfg.BrokeredTimeoutMs) * time.Millisecond,
		RequestSlack:        time.Duration(cfg.RequestSlackMs) * time.Millisecond,
		DefaultLimit:        cfg.DefaultLimit,
		MaxLimit:            cfg.MaxLimit,
	}
}

// Service runs the query fan-out.
type Service struct {
	searcher index.Searcher
	brokered map[string]BrokeredRunner
	opts     Options
	logger   zerolog.Logger
}

// NewService creates the search service. brokered maps source tags to
// their adapters; indexed sources run through the searcher.
func NewService(searcher index.Searcher, brokered map[string]BrokeredRunner, opts Options, logger zerolog.Logger) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 50
	}
	return &Service{
		searcher: searcher,
		brokered: brokered,
		opts:     opts,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Outcome is the batch result of one request.
type Outcome struct {
	Envelope *media.Envelope
	// IndexDown is set when every indexed source failed to reach the
	// index; the batch transport maps it to 503.
	IndexDown bool
}

// EventType discriminates stream events.
type EventType string

const (
	EventResult     EventType = "result"
	EventExactMatch EventType = "exact_match"
	EventDone       EventType = "done"
)

// Event is one stream emission. Result events carry the per-source
// payload; the done event carries the source hint and closes the stream.
type Event struct {
	Type       EventType
	Source     string         `json:"source,omitempty"`
	Results    any            `json:"results,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Item       media.Document `json:"item,omitempty"`
	SourceHint []string       `json:"source_hint,omitempty"`
}

// Search executes the request and blocks until every enabled source is
// terminal or the request-wide deadline fires.
func (s *Service) Search(ctx context.Context, requestID string, req media.Request) Outcome {
	metrics.SearchRequests.WithLabelValues(string(req.Mode), string(media.TransportBatch)).Inc()

	parsed, filters, limit := s.prepare(req)
	enabled := EnabledSources(req, parsed.SourceHint)

	envelope := media.NewEnvelope()
	envelope.SourceHint = parsed.SourceHint

	if len(enabled) == 0 || limit == 0 || shortQuery(parsed) {
		return Outcome{Envelope: envelope}
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestDeadline())
	defer cancel()

	acc := newAccumulator(enabled)
	indexedTried, indexedDown := 0, 0

	s.fanOut(ctx, requestID, req, parsed, filters, limit, enabled, acc, func(out sourceOutcome) {
		if !media.IsBrokered(out.source) {
			indexedTried++
			if out.state == StateFailed && out.reason == index.ErrIndexUnavailable.Error() {
				indexedDown++
			}
		}
	})

	for _, source := range enabled {
		if media.IsBrokered(source) {
			envelope.SetBrokered(source, acc.items[source])
		} else {
			envelope.SetDocuments(source, stripScores(acc.docs[source]))
		}
	}

	canonical := index.CanonicalName(parsed.Text)
	if match := PickExactMatch(canonical, acc.snapshotDocs()); match != nil {
		envelope.ExactMatch = match
		metrics.ExactMatches.WithLabelValues(match.Source()).Inc()
	}

	return Outcome{
		Envelope:  envelope,
		IndexDown: indexedTried > 0 && indexedDown == indexedTried,
	}
}

// Stream executes the request and emits result/exact_match/done events on
// the returned channel. The channel is closed after done; done is always
// the last event.
func (s *Service) Stream(ctx context.Context, requestID string, req media.Request) <-chan Event {
	metrics.SearchRequests.WithLabelValues(string(req.Mode), string(media.TransportStream)).Inc()

	events := make(chan Event, 16)

	go func() {
		defer close(events)

		parsed, filters, limit := s.prepare(req)
		enabled := EnabledSources(req, parsed.SourceHint)

		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}

		if len(enabled) == 0 || limit == 0 || shortQuery(parsed) {
			emit(Event{Type: EventDone, SourceHint: parsed.SourceHint})
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, s.requestDeadline())
		defer cancel()

		canonical := index.CanonicalName(parsed.Text)
		acc := newAccumulator(enabled)
		matched := false

		s.fanOut(runCtx, requestID, req, parsed, filters, limit, enabled, acc, func(out sourceOutcome) {
			var results any
			if media.IsBrokered(out.source) {
				items := out.items
				if items == nil {
					items = []media.BrokeredItem{}
				}
				results = items
			} else {
				results = stripScores(out.docs)
			}
			emit(Event{
				Type:      EventResult,
				Source:    out.source,
				Results:   results,
				LatencyMs: out.latencyMs,
			})

			// First qualifying source wins; later candidates are
			// suppressed.
			if !matched && !media.IsBrokered(out.source) {
				if doc := exactCandidate(canonical, out.docs); doc != nil {
					matched = true
					payload := ExactMatchPayload(doc)
					metrics.ExactMatches.WithLabelValues(payload.Source()).Inc()
					emit(Event{Type: EventExactMatch, Item: payload})
				}
			}
		})

		emit(Event{Type: EventDone, SourceHint: parsed.SourceHint})
	}()

	return events
}

// prepare parses the query and resolves the effective limit.
func (s *Service) prepare(req media.Request) (query.Parsed, []query.Filter, int) {
	parsed := query.Parse(req.Q, req.Raw)
	filters := query.ParseFilterList(req.Filters)

	limit := req.Limit
	if limit < 0 {
		limit = s.opts.DefaultLimit
	}
	if req.Limit == 0 {
		limit = 0
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	return parsed, filters, limit
}

// shortQuery reports whether the query is below the two-character floor.
// Sub-length queries return an all-empty envelope without touching the
// index or any provider; raw queries are exempt.
func shortQuery(parsed query.Parsed) bool {
	if parsed.Raw {
		return strings.TrimSpace(parsed.Text) == ""
	}
	count := 0
	for _, c := range parsed.Text {
		if c != ' ' && c != '\t' {
			count++
		}
	}
	return count < 2
}

// requestDeadline is the request-wide ceiling: the slowest per-source
// deadline plus slack.
func (s *Service) requestDeadline() time.Duration {
	max := s.opts.SearchTimeout
	if s.opts.BrokeredTimeout > max {
		max = s.opts.BrokeredTimeout
	}
	if s.opts.AutocompleteTimeout > max {
		max = s.opts.AutocompleteTimeout
	}
	return max + s.opts.RequestSlack
}

// maxConcurrentBrokered bounds simultaneous brokered calls so a burst of
// wide requests cannot exhaust provider connection pools.
const maxConcurrentBrokered = 4

// fanOut launches one task per enabled source and invokes onTerminal, in
// completion order and serialized, for every terminal outcome that lands
// in the accumulator.
func (s *Service) fanOut(
	ctx context.Context,
	requestID string,
	req media.Request,
	parsed query.Parsed,
	filters []query.Filter,
	limit int,
	enabled []string,
	acc *accumulator,
	onTerminal func(sourceOutcome),
) {
	var wg sync.WaitGroup
	outcomes := make(chan sourceOutcome, len(enabled))
	sem := semaphore.NewWeighted(maxConcurrentBrokered)

	for _, source := range enabled {
		if !acc.transition(source, StateRunning) {
			continue
		}
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			if media.IsBrokered(source) {
				if err := sem.Acquire(ctx, 1); err != nil {
					outcomes <- sourceOutcome{source: source, state: StateCancelled, reason: "request cancelled"}
					return
				}
				defer sem.Release(1)
				outcomes <- s.runBrokered(ctx, source, parsed.Text, limit)
			} else {
				outcomes <- s.runIndexed(ctx, source, parsed, filters, req.Mode, limit)
			}
		}(source)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		s.logOutcome(requestID, out)
		metrics.SourceCompletions.WithLabelValues(out.source, string(out.state)).Inc()
		metrics.SourceLatency.WithLabelValues(out.source).Observe(float64(out.latencyMs) / 1000)
		if acc.record(out) {
			onTerminal(out)
		}
	}
	acc.cancelOutstanding()
}

// runIndexed executes one indexed source under its mode deadline.
func (s *Service) runIndexed(ctx context.Context, source string, parsed query.Parsed, filters []query.Filter, mode media.Mode, limit int) sourceOutcome {
	timeout := s.opts.SearchTimeout
	if mode == media.ModeAutocomplete {
		timeout = s.opts.AutocompleteTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := index.Build(source, parsed, filters, mode, limit)

	start := time.Now()
	res, err := s.searcher.Search(sctx, q)
	latency := time.Since(start).Milliseconds()

	out := sourceOutcome{source: source, latencyMs: latency}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		out.state = StateCancelled
		out.reason = "request cancelled"
	case err != nil:
		out.state = StateFailed
		out.reason = err.Error()
	case res.TimedOut:
		out.state = StateTimedOut
		out.reason = "index deadline exceeded"
		out.docs = s.finishDocs(source, parsed.Text, res.Docs)
	default:
		out.state = StateDone
		out.docs = s.finishDocs(source, parsed.Text, res.Docs)
	}
	return out
}

// finishDocs applies popularity normalization and tier re-ranking.
func (s *Service) finishDocs(source, text string, docs []index.ScoredDoc) []index.ScoredDoc {
	for _, d := range docs {
		d.Doc["popularity"] = NormalizePopularity(source, d.Doc.Popularity())
	}
	switch source {
	case media.SourceTV, media.SourceMovie:
		RankMedia(text, docs)
	case media.SourcePerson:
		RankPerson(text, docs)
	}
	return docs
}

// runBrokered executes one brokered source through its adapter. Adapter
// failures are already absorbed; they surface as failed outcomes with
// empty item lists.
func (s *Service) runBrokered(ctx context.Context, source, text string, limit int) sourceOutcome {
	runner, ok := s.brokered[source]
	if !ok {
		return sourceOutcome{source: source, state: StateDone, items: []media.BrokeredItem{}}
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.BrokeredTimeout)
	defer cancel()

	result := runner.Fetch(sctx, text, limit)

	out := sourceOutcome{source: source, latencyMs: result.LatencyMs, items: result.Items}
	switch {
	case ctx.Err() != nil:
		out.state = StateCancelled
		out.reason = "request cancelled"
	case result.Error != "" && sctx.Err() != nil:
		out.state = StateTimedOut
		out.reason = "provider deadline exceeded"
	case result.Error != "":
		out.state = StateFailed
		out.reason = result.Error
	default:
		out.state = StateDone
		for i := range out.items {
			out.items[i].Popularity = NormalizePopularity(source, brokeredRawScore(out.items[i]))
		}
	}
	return out
}

// brokeredRawScore picks the provider-native popularity signal.
func brokeredRawScore(item media.BrokeredItem) float64 {
	if item.Metrics == nil {
		return item.Popularity
	}
	if v, ok := item.Metrics["listeners"]; ok {
		return v
	}
	if v, ok := item.Metrics["audience_score"]; ok {
		return v
	}
	return item.Popularity
}

// logOutcome records every source completion with the request id, matching
// the error-handling contract.
func (s *Service) logOutcome(requestID string, out sourceOutcome) {
	event := s.logger.Info()
	if out.state == StateFailed {
		event = s.logger.Warn()
	}
	event.
		Str("request_id", requestID).
		Str("source", out.source).
		Str("state", string(out.state)).
		Int64("duration_ms", out.latencyMs).
		Str("reason", out.reason).
		Msg("Source completed")
}

func stripScores(docs []index.ScoredDoc) []media.Document {
	out := make([]media.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Doc)
	}
	return out
}
