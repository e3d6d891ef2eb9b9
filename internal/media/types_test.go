package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Accessors(t *testing.T) {
	doc := Document{
		"mc_id":        "tmdb_603",
		"mc_type":      "movie",
		"search_title": "The Matrix",
		"popularity":   83.5,
		"year":         1999.0,
		"genres":       []any{"action", "science_fiction"},
		"cast_names":   []string{"keanu_reeves"},
	}

	assert.Equal(t, "tmdb_603", doc.ID())
	assert.Equal(t, "movie", doc.MCType())
	assert.Equal(t, "The Matrix", doc.SearchTitle())
	assert.Equal(t, 83.5, doc.Popularity())
	assert.Equal(t, 1999, doc.Year())
	assert.Equal(t, []string{"action", "science_fiction"}, doc.Strings("genres"))
	assert.Equal(t, []string{"keanu_reeves"}, doc.Strings("cast_names"))
	assert.Nil(t, doc.Strings("missing"))
}

func TestDocument_MissingFieldsZero(t *testing.T) {
	doc := Document{}
	assert.Equal(t, "", doc.ID())
	assert.Equal(t, 0.0, doc.Popularity())
	assert.Equal(t, 0, doc.Year())
}

func TestBrokeredItem_MarshalFlattensExtra(t *testing.T) {
	item := BrokeredItem{
		MCID:        "news_abc",
		MCType:      TypeNewsArticle,
		Source:      SourceNews,
		SourceID:    "abc",
		SearchTitle: "Headline",
		Extra: map[string]any{
			"section": "Movies",
			"mc_id":   "spoofed", // envelope field must win
		},
	}

	body, err := json.Marshal(item)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "Movies", decoded["section"])
	assert.Equal(t, "news_abc", decoded["mc_id"])
	assert.NotContains(t, decoded, "Extra")
}

func TestEnvelope_NewIsEmptyNotNull(t *testing.T) {
	body, err := json.Marshal(NewEnvelope())
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &decoded))

	for _, key := range []string{"tv", "movie", "person", "podcast", "author", "book", "news", "video", "ratings", "artist", "album"} {
		assert.Equal(t, "[]", string(decoded[key]), "key %s", key)
	}
	assert.Equal(t, "null", string(decoded["exact_match"]))
	assert.NotContains(t, decoded, "source_hint")
}

func TestEnvelope_SetDocumentsNilBecomesEmpty(t *testing.T) {
	e := NewEnvelope()
	e.SetDocuments(SourceMovie, nil)
	assert.NotNil(t, e.Movie)
	assert.Empty(t, e.Movie)

	e.SetBrokered(SourceNews, nil)
	assert.NotNil(t, e.News)
}

func TestSourceSets(t *testing.T) {
	assert.Len(t, AllSources, 11)
	assert.True(t, IsKnownSource("podcast"))
	assert.False(t, IsKnownSource("webcomic"))
	assert.True(t, IsBrokered("ratings"))
	assert.False(t, IsBrokered("movie"))
	assert.Equal(t, []string{"movie", "tv", "person", "podcast", "book", "author"}, ExactMatchPriority)
}
