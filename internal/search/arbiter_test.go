package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
)

func TestPickExactMatch_PriorityLadder(t *testing.T) {
	results := map[string][]index.ScoredDoc{
		media.SourceTV: {
			mediaDoc("tv_dune", "Dune", map[string]any{"mc_type": "tv"}),
		},
		media.SourceMovie: {
			mediaDoc("movie_dune", "Dune", map[string]any{"mc_type": "movie"}),
		},
	}

	match := PickExactMatch("dune", results)
	require.NotNil(t, match)
	assert.Equal(t, "movie_dune", match.ID())
}

func TestPickExactMatch_FallsThroughPriorities(t *testing.T) {
	results := map[string][]index.ScoredDoc{
		media.SourceMovie: {
			mediaDoc("movie_other", "Something Else", map[string]any{"mc_type": "movie"}),
		},
		media.SourcePodcast: {
			mediaDoc("pi_55", "Hardcore History", map[string]any{"mc_type": "podcast"}),
		},
	}

	match := PickExactMatch("hardcore history", results)
	require.NotNil(t, match)
	assert.Equal(t, "pi_55", match.ID())
}

func TestPickExactMatch_NoMatch(t *testing.T) {
	results := map[string][]index.ScoredDoc{
		media.SourceMovie: {
			mediaDoc("m1", "Dune", map[string]any{"mc_type": "movie"}),
		},
	}

	assert.Nil(t, PickExactMatch("interstellar", results))
	assert.Nil(t, PickExactMatch("", results))
}

func TestExactMatchPayload_CastZip(t *testing.T) {
	doc := media.Document{
		"mc_id":    "movie_1",
		"mc_type":  "movie",
		"cast":     []string{"Timothée Chalamet", "Zendaya", "Rebecca Ferguson"},
		"cast_ids": []string{"1190668", "505710"},
	}

	payload := ExactMatchPayload(doc)
	cast, ok := payload["cast"].([]media.CastMember)
	require.True(t, ok)
	require.Len(t, cast, 3)

	assert.Equal(t, "Timothée Chalamet", cast[0].Name)
	require.NotNil(t, cast[0].ID)
	assert.Equal(t, "1190668", *cast[0].ID)

	// Missing id becomes null.
	assert.Nil(t, cast[2].ID)

	// The source document keeps its original cast array.
	_, stillStrings := doc["cast"].([]string)
	assert.True(t, stillStrings)
}

func TestExactMatchPayload_NonMediaUntouched(t *testing.T) {
	doc := media.Document{
		"mc_id":   "tmdb_person_287",
		"mc_type": "person",
		"cast":    []string{"not", "restructured"},
	}

	payload := ExactMatchPayload(doc)
	_, isStrings := payload["cast"].([]string)
	assert.True(t, isStrings)
}
