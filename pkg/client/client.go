// Package client is a Go client for the MediaCircle search API, including
// the keystroke debouncer used by interactive frontends.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mediacircle/mediacircle/internal/media"
)

// Client is a MediaCircle API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Params are the optional request knobs shared by both endpoints.
type Params struct {
	Sources []string
	Filters string
	Limit   int
	Raw     bool
}

// Autocomplete runs a batch autocomplete request.
func (c *Client) Autocomplete(ctx context.Context, q string, params Params) (*media.Envelope, error) {
	return c.get(ctx, "/api/autocomplete", q, params)
}

// Search runs a batch search request.
func (c *Client) Search(ctx context.Context, q string, params Params) (*media.Envelope, error) {
	return c.get(ctx, "/api/search", q, params)
}

func (c *Client) get(ctx context.Context, path, q string, params Params) (*media.Envelope, error) {
	values := url.Values{}
	values.Set("q", q)
	if len(params.Sources) > 0 {
		values.Set("sources", strings.Join(params.Sources, ","))
	}
	if params.Filters != "" {
		values.Set("filters", params.Filters)
	}
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Raw {
		values.Set("raw", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+values.Encode(), nil)
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
		return nil, fmt.Errorf("search api returned %d: %s", resp.StatusCode, body)
	}

	envelope := media.NewEnvelope()
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}
