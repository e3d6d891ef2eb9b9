// Package ratings is the ratings provider: an internal aggregation service
// that merges critic and audience scores per title.
package ratings

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

var ErrNotConfigured = errors.New("ratings service URL is not configured")

// Client talks to the ratings aggregation service.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new ratings client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "ratings").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return media.SourceRatings }

// IsConfigured returns true if the service URL is set.
func (c *Client) IsConfigured() bool { return c.config.BaseURL != "" }

type ratingsEntry struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	MediaType     string  `json:"media_type"`
	Year          int     `json:"year"`
	CriticScore   float64 `json:"critic_score"`
	AudienceScore float64 `json:"audience_score"`
	CriticCount   int     `json:"critic_count"`
	URL           string  `json:"url"`
	Poster        string  `json:"poster"`
}

type ratingsResponse struct {
	Results []ratingsEntry `json:"results"`
}

// Fetch looks up rating entries for the query text.
func (c *Client) Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("q", text)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &broker.APIError{
			StatusCode: resp.StatusCode,
			Message:    "ratings: " + strconv.Quote(string(body)),
		}
	}

	var response ratingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	items := make([]media.BrokeredItem, 0, len(response.Results))
	for _, r := range response.Results {
		mcType := media.TypeMovie
		if r.MediaType == "tv" {
			mcType = media.TypeTV
		}
		item := media.BrokeredItem{
			MCType:      mcType,
			Source:      media.SourceRatings,
			SourceID:    r.ID,
			SearchTitle: r.Title,
			Image:       r.Poster,
			Metrics: map[string]float64{
				"critic_score":   r.CriticScore,
				"audience_score": r.AudienceScore,
				"critic_count":   float64(r.CriticCount),
			},
			Extra: map[string]any{"year": r.Year},
		}
		if r.URL != "" {
			item.Links = []media.Link{{Rel: "ratings", URL: r.URL}}
		}
		items = append(items, item)
	}
	return items, nil
}
