package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
)

// errorResponse is the structured error body for 4xx/5xx replies.
type errorResponse struct {
	Error string `json:"error"`
}

// parseRequest extracts the shared query parameters. A missing limit maps
// to -1 so the service can apply its default; an explicit limit=0 yields
// an all-empty envelope.
func parseRequest(c echo.Context, mode media.Mode, transport media.Transport) (media.Request, error) {
	req := media.Request{
		Q:         c.QueryParam("q"),
		Filters:   c.QueryParam("filters"),
		Limit:     -1,
		Mode:      mode,
		Transport: transport,
	}

	if sources := c.QueryParam("sources"); sources != "" {
		for _, tag := range splitCSV(sources) {
			if !media.IsKnownSource(tag) {
				return req, errors.New("unknown source: " + tag)
			}
			req.Sources = append(req.Sources, tag)
		}
	}

	if raw := c.QueryParam("raw"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errors.New("raw must be a boolean")
		}
		req.Raw = parsed
	}

	if limit := c.QueryParam("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return req, errors.New("limit must be a non-negative integer")
		}
		req.Limit = parsed
	}

	return req, nil
}

func (s *Server) handleAutocomplete(c echo.Context) error {
	return s.handleBatch(c, media.ModeAutocomplete)
}

func (s *Server) handleSearch(c echo.Context) error {
	return s.handleBatch(c, media.ModeSearch)
}

func (s *Server) handleBatch(c echo.Context, mode media.Mode) error {
	req, err := parseRequest(c, mode, media.TransportBatch)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	outcome := s.searchService.Search(c.Request().Context(), requestID, req)

	if outcome.IndexDown {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "search index unavailable"})
	}
	return c.JSON(http.StatusOK, outcome.Envelope)
}

// detailsRequest is the body of POST /api/details.
type detailsRequest struct {
	MCID       string `json:"mc_id"`
	RSSDetails bool   `json:"rss_details"`
}

func (s *Server) handleDetails(c echo.Context) error {
	var req detailsRequest
	if err := c.Bind(&req); err != nil || req.MCID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "mc_id is required"})
	}

	doc, err := s.details.Get(c.Request().Context(), req.MCID)
	switch {
	case errors.Is(err, index.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown mc_id: " + req.MCID})
	case errors.Is(err, index.ErrIndexUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "search index unavailable"})
	case err != nil:
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "lookup failed"})
	}

	if req.RSSDetails && doc.MCType() == media.TypePodcast {
		// RSS enrichment reads the feed fields already stored on the
		// podcast document; the feed itself is not fetched inline.
		doc["rss_requested"] = true
	}

	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats := map[string]any{}
	if s.registry != nil {
		stats["cache_versions"] = s.registry.Versions()
	}

	if s.redis != nil {
		if dbsize, err := s.redis.DBSize(ctx).Result(); err == nil {
			stats["dbsize"] = dbsize
		}
		counts := map[string]int64{}
		for source, name := range index.IndexNames {
			info, err := s.redis.FTInfo(ctx, name).Result()
			if err != nil {
				continue
			}
			counts[source] = int64(info.NumDocs)
		}
		stats["num_docs"] = counts
	}

	return c.JSON(http.StatusOK, stats)
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.ToLower(strings.TrimSpace(part)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
