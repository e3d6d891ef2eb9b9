package index

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediacircle/mediacircle/internal/media"
)

// ErrNotFound reports an unknown mc_id.
var ErrNotFound = errors.New("document not found")

// detailPrefixes is the lookup order for details by bare mc_id. The media:
// keyspace covers both tv and movie.
var detailPrefixes = []string{"media:", "person:", "podcast:", "book:", "author:"}

// Details fetches full documents from the index keyspace by mc_id.
type Details struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewDetails creates a details store on an existing client.
func NewDetails(client *redis.Client, logger zerolog.Logger) *Details {
	return &Details{
		client: client,
		logger: logger.With().Str("component", "details").Logger(),
	}
}

// Get looks an mc_id up across the document keyspaces and returns the
// normalized document. Returns ErrNotFound when no keyspace has it and
// ErrIndexUnavailable when the index cannot be reached.
func (d *Details) Get(ctx context.Context, mcID string) (media.Document, error) {
	for _, prefix := range detailPrefixes {
		raw, err := d.client.JSONGet(ctx, prefix+mcID, "$").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrIndexUnavailable
		}
		if raw == "" || raw == "[]" {
			continue
		}

		// JSON.GET with a $ path returns an array of matches.
		var docs []media.Document
		if err := json.Unmarshal([]byte(raw), &docs); err != nil || len(docs) == 0 {
			var doc media.Document
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				continue
			}
			docs = []media.Document{doc}
		}

		doc := docs[0]
		doc["mc_id"] = mcID
		return doc, nil
	}
	return nil, ErrNotFound
}
