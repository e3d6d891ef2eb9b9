package index

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediacircle/mediacircle/internal/media"
)

// ErrIndexUnavailable reports a connection or handshake failure to the
// inverted index.
var ErrIndexUnavailable = errors.New("search index unavailable")

// ScoredDoc pairs a normalized document with its relevance score and the
// precomputed canonical name used by exact-match arbitration.
type ScoredDoc struct {
	Doc       media.Document
	Score     float64
	Canonical string
}

// Result is the outcome of one index query.
type Result struct {
	Docs     []ScoredDoc
	Total    int64
	TimedOut bool
}

// Searcher executes built queries. The concrete implementation talks
// RediSearch; tests substitute fakes.
type Searcher interface {
	Search(ctx context.Context, q Query) (Result, error)
	Ping(ctx context.Context) error
}

// Executor runs queries against RediSearch over a pooled connection.
type Executor struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewExecutor creates an executor on an existing client. Pool sizing is
// the client's concern.
func NewExecutor(client *redis.Client, logger zerolog.Logger) *Executor {
	return &Executor{
		client: client,
		logger: logger.With().Str("component", "index").Logger(),
	}
}

// Ping verifies index connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	if err := e.client.Ping(ctx).Err(); err != nil {
		return ErrIndexUnavailable
	}
	return nil
}

// Search runs a built query. A no-op query returns immediately without
// contacting the index. On deadline overflow the result carries TimedOut
// instead of an error and holds no documents; connection failures surface
// as ErrIndexUnavailable.
func (e *Executor) Search(ctx context.Context, q Query) (Result, error) {
	if q.NoOp || q.Text == "" {
		return Result{Docs: []ScoredDoc{}}, nil
	}

	options := &redis.FTSearchOptions{
		WithScores:     true,
		LimitOffset:    0,
		Limit:          q.Limit,
		DialectVersion: 2,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if ms := time.Until(deadline).Milliseconds(); ms > 0 {
			options.Timeout = int(ms)
		}
	}

	start := time.Now()
	raw, err := e.client.FTSearchWithArgs(ctx, q.Index, q.Text, options).Result()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.logger.Warn().
				Str("source", q.Source).
				Dur("elapsed", elapsed).
				Msg("Index query timed out")
			return Result{Docs: []ScoredDoc{}, TimedOut: true}, nil
		}
		if errors.Is(err, context.Canceled) {
			return Result{Docs: []ScoredDoc{}}, ctx.Err()
		}
		e.logger.Error().
			Err(err).
			Str("source", q.Source).
			Str("index", q.Index).
			Msg("Index query failed")
		return Result{}, ErrIndexUnavailable
	}

	docs := make([]ScoredDoc, 0, len(raw.Docs))
	for _, d := range raw.Docs {
		doc := NormalizeDoc(d.ID, d.Fields)
		if doc == nil {
			continue
		}
		score := 0.0
		if d.Score != nil {
			score = *d.Score
		}
		docs = append(docs, ScoredDoc{
			Doc:       doc,
			Score:     score,
			Canonical: CanonicalName(doc.SearchTitle()),
		})
	}

	sortDocs(docs, q.TieBreakers)

	e.logger.Debug().
		Str("source", q.Source).
		Int("results", len(docs)).
		Int64("total", int64(raw.Total)).
		Dur("elapsed", elapsed).
		Msg("Index query completed")

	return Result{Docs: docs, Total: int64(raw.Total)}, nil
}

// sortDocs orders by relevance descending, then by each tie-break field
// descending. Ordering must be deterministic, so mc_id is the final key.
func sortDocs(docs []ScoredDoc, tieBreakers []string) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		for _, field := range tieBreakers {
			av, bv := numField(a.Doc, field), numField(b.Doc, field)
			if av != bv {
				return av > bv
			}
		}
		return a.Doc.ID() < b.Doc.ID()
	})
}

func numField(d media.Document, field string) float64 {
	switch v := d[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
