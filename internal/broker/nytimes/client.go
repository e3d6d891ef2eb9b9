// Package nytimes is the news provider: the New York Times Article Search
// API.
package nytimes

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

var ErrAPIKeyMissing = errors.New("NYTimes API key is not configured")

// Client is a NYTimes Article Search API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new NYTimes client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "nytimes").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return media.SourceNews }

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool { return c.config.APIKey != "" }

type articleSearchResponse struct {
	Status   string `json:"status"`
	Response struct {
		Docs []articleDoc `json:"docs"`
	} `json:"response"`
}

type articleDoc struct {
	URI      string `json:"uri"`
	WebURL   string `json:"web_url"`
	Snippet  string `json:"snippet"`
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	PubDate    string `json:"pub_date"`
	Section    string `json:"section_name"`
	Byline     struct {
		Original string `json:"original"`
	} `json:"byline"`
	Multimedia []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"multimedia"`
}

// Fetch searches articles matching the query text.
func (c *Client) Fetch(ctx context.Context, text string, limit int) ([]media.BrokeredItem, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/articlesearch.json", c.config.BaseURL)
	params := url.Values{}
	params.Set("api-key", c.config.APIKey)
	params.Set("q", text)
	params.Set("sort", "relevance")

	var response articleSearchResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	docs := response.Response.Docs
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	items := make([]media.BrokeredItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, c.toItem(doc))
	}
	return items, nil
}

func (c *Client) toItem(doc articleDoc) media.BrokeredItem {
	item := media.BrokeredItem{
		MCType:      media.TypeNewsArticle,
		Source:      media.SourceNews,
		SourceID:    doc.URI,
		SearchTitle: doc.Headline.Main,
		Overview:    doc.Snippet,
		Links:       []media.Link{{Rel: "article", URL: doc.WebURL}},
		ExternalIDs: map[string]string{"nyt_uri": doc.URI},
		Extra: map[string]any{
			"pub_date": doc.PubDate,
			"section":  doc.Section,
			"byline":   doc.Byline.Original,
		},
	}
	for _, m := range doc.Multimedia {
		item.Images = append(item.Images, media.Image{URL: m.URL, Width: m.Width, Height: m.Height})
	}
	if len(item.Images) > 0 {
		item.Image = item.Images[0].URL
	}
	return item
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
			Message:    "nytimes: " + strconv.Quote(string(body)),
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
