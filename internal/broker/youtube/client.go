// Package youtube is the video provider: the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

var ErrAPIKeyMissing = errors.New("YouTube API key is not configured")

// Client is a YouTube Data API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new YouTube client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "youtube").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return media.SourceVideo }

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool { return c.config.APIKey != "" }

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   map[string]struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch searches videos matching the query text.
func (c *Client) Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/search", c.config.BaseURL)
	params := url.Values{}
	params.Set("key", c.config.APIKey)
	params.Set("q", text)
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))

	var response searchResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	items := make([]media.BrokeredItem, 0, len(response.Items))
	for _, v := range response.Items {
		if v.ID.VideoID == "" {
			continue
		}
		item := media.BrokeredItem{
			MCType:      media.TypeVideo,
			Source:      media.SourceVideo,
			SourceID:    v.ID.VideoID,
			SearchTitle: v.Snippet.Title,
			Overview:    v.Snippet.Description,
			Links: []media.Link{
				{Rel: "watch", URL: "https://www.youtube.com/watch?v=" + v.ID.VideoID},
			},
			ExternalIDs: map[string]string{"youtube_id": v.ID.VideoID},
			Extra: map[string]any{
				"channel_title": v.Snippet.ChannelTitle,
				"published_at":  v.Snippet.PublishedAt,
			},
		}
		for _, name := range []string{"high", "medium", "default"} {
			if t, ok := v.Snippet.Thumbnails[name]; ok {
				item.Image = t.URL
				item.Images = append(item.Images, media.Image{URL: t.URL, Width: t.Width, Height: t.Height})
				break
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
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
			Message:    "youtube: " + strconv.Quote(string(body)),
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
