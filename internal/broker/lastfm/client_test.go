package lastfm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediacircle/mediacircle/internal/config"
	"github.com/mediacircle/mediacircle/internal/media"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient(config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	}, zerolog.Nop())
}

func TestSearchArtists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "artist.search" {
			t.Errorf("unexpected method: %s", q.Get("method"))
		}
		if q.Get("artist") != "radiohead" {
			t.Errorf("unexpected artist: %s", q.Get("artist"))
		}
		w.Write([]byte(`{"results": {"artistmatches": {"artist": [
			{
				"name": "Radiohead",
				"mbid": "a74b1b7f-71a5-4011-9441-d0b5e4122711",
				"url": "https://www.last.fm/music/Radiohead",
				"listeners": "5000000",
				"image": [
					{"#text": "https://img/small.png", "size": "small"},
					{"#text": "https://img/large.png", "size": "large"}
				]
			}
		]}}}`))
	}))
	defer server.Close()

	items, err := newTestClient(server).SearchArtists(context.Background(), "radiohead", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	artist := items[0]
	assert.Equal(t, media.TypePerson, artist.MCType)
	assert.Equal(t, media.SubtypeMusicArtist, artist.MCSubtype)
	assert.Equal(t, "a74b1b7f-71a5-4011-9441-d0b5e4122711", artist.SourceID)
	assert.Equal(t, "Radiohead", artist.SearchTitle)
	assert.Equal(t, float64(5000000), artist.Metrics["listeners"])
	assert.Equal(t, "https://img/large.png", artist.Image)
}

func TestSearchAlbums(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": {"albummatches": {"album": [
			{
				"name": "OK Computer",
				"artist": "Radiohead",
				"url": "https://www.last.fm/music/Radiohead/OK+Computer",
				"image": []
			}
		]}}}`))
	}))
	defer server.Close()

	items, err := newTestClient(server).SearchAlbums(context.Background(), "ok computer", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	album := items[0]
	assert.Equal(t, media.TypeMusicAlbum, album.MCType)
	assert.Equal(t, "OK Computer", album.SearchTitle)
	assert.Equal(t, "Radiohead", album.Extra["artist"])
	// No MBID: the composite fallback keys the item.
	assert.Equal(t, "Radiohead_OK Computer", album.SourceID)
}

func TestFetchersUnconfigured(t *testing.T) {
	client := NewClient(config.ProviderConfig{}, zerolog.Nop())

	_, err := ArtistFetcher{Client: client}.Fetch(context.Background(), "x", 5)
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	_, err = AlbumFetcher{Client: client}.Fetch(context.Background(), "x", 5)
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}
