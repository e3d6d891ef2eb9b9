// Package lastfm serves the artist and album providers from the Last.fm
// API. One client backs two fetchers since artist.search and album.search
// share auth, transport and error handling.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediacircle/mediacircle/internal/broker"
	"github.com/mediacircle/mediacircle/internal/config"
	"github.com/mediacircle/mediacircle/internal/media"
)

var ErrAPIKeyMissing = errors.New("Last.fm API key is not configured")

// Client is a Last.fm API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new Last.fm client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "lastfm").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool { return c.config.APIKey != "" }

type lfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type artistSearchResponse struct {
	Results struct {
		ArtistMatches struct {
			Artist []struct {
				Name      string     `json:"name"`
				MBID      string     `json:"mbid"`
				URL       string     `json:"url"`
				Listeners string     `json:"listeners"`
				Image     []lfmImage `json:"image"`
			} `json:"artist"`
		} `json:"artistmatches"`
	} `json:"results"`
}

type albumSearchResponse struct {
	Results struct {
		AlbumMatches struct {
			Album []struct {
				Name   string     `json:"name"`
				Artist string     `json:"artist"`
				MBID   string     `json:"mbid"`
				URL    string     `json:"url"`
				Image  []lfmImage `json:"image"`
			} `json:"album"`
		} `json:"albummatches"`
	} `json:"results"`
}

// SearchArtists runs artist.search.
func (c *Client) SearchArtists(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var response artistSearchResponse
	if err := c.doRequest(ctx, "artist.search", url.Values{"artist": {text}}, limit, &response); err != nil {
		return nil, err
	}

	artists := response.Results.ArtistMatches.Artist
	items := make([]media.BrokeredItem, 0, len(artists))
	for _, a := range artists {
		listeners, _ := strconv.ParseFloat(a.Listeners, 64)
		item := media.BrokeredItem{
			MCType:      media.TypePerson,
			MCSubtype:   media.SubtypeMusicArtist,
			Source:      media.SourceArtist,
			SourceID:    artistSourceID(a.MBID, a.Name),
			SearchTitle: a.Name,
			Links:       []media.Link{{Rel: "lastfm", URL: a.URL}},
			Metrics:     map[string]float64{"listeners": listeners},
			ExternalIDs: map[string]string{},
		}
		if a.MBID != "" {
			item.ExternalIDs["mbid"] = a.MBID
		}
		item.Image, item.Images = pickImages(a.Image)
		items = append(items, item)
	}
	return items, nil
}

// SearchAlbums runs album.search.
func (c *Client) SearchAlbums(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var response albumSearchResponse
	if err := c.doRequest(ctx, "album.search", url.Values{"album": {text}}, limit, &response); err != nil {
		return nil, err
	}

	albums := response.Results.AlbumMatches.Album
	items := make([]media.BrokeredItem, 0, len(albums))
	for _, a := range albums {
		item := media.BrokeredItem{
			MCType:      media.TypeMusicAlbum,
			Source:      media.SourceAlbum,
			SourceID:    artistSourceID(a.MBID, a.Artist+"_"+a.Name),
			SearchTitle: a.Name,
			Links:       []media.Link{{Rel: "lastfm", URL: a.URL}},
			ExternalIDs: map[string]string{},
			Extra:       map[string]any{"artist": a.Artist},
		}
		if a.MBID != "" {
			item.ExternalIDs["mbid"] = a.MBID
		}
		item.Image, item.Images = pickImages(a.Image)
		items = append(items, item)
	}
	return items, nil
}

func artistSourceID(mbid, fallback string) string {
	if mbid != "" {
		return mbid
	}
	return fallback
}

func pickImages(imgs []lfmImage) (string, []media.Image) {
	var primary string
	var out []media.Image
	for _, img := range imgs {
		if img.URL == "" {
			continue
		}
		out = append(out, media.Image{URL: img.URL})
		if img.Size == "large" || primary == "" {
			primary = img.URL
		}
	}
	return primary, out
}

func (c *Client) doRequest(ctx context.Context, method string, extra url.Values, limit int, out any) error {
	params := url.Values{}
	params.Set("method", method)
	params.Set("api_key", c.config.APIKey)
	params.Set("format", "json")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &broker.APIError{
			StatusCode: resp.StatusCode,
			Message:    "lastfm: " + strconv.Quote(string(body)),
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// ArtistFetcher adapts SearchArtists to the broker contract.
type ArtistFetcher struct{ Client *Client }

func (f ArtistFetcher) Name() string       { return media.SourceArtist }
func (f ArtistFetcher) IsConfigured() bool { return f.Client.IsConfigured() }
func (f ArtistFetcher) Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	return f.Client.SearchArtists(ctx, text, limit)
}

// AlbumFetcher adapts SearchAlbums to the broker contract.
type AlbumFetcher struct{ Client *Client }

func (f AlbumFetcher) Name() string       { return media.SourceAlbum }
func (f AlbumFetcher) IsConfigured() bool { return f.Client.IsConfigured() }
func (f AlbumFetcher) Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	return f.Client.SearchAlbums(ctx, text, limit)
}
