package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/search"
)

// Stream payload shapes. done always closes the stream and is always the
// last event; result events may arrive in any order.
type resultPayload struct {
	Source    string `json:"source"`
	Results   any    `json:"results"`
	LatencyMs int64  `json:"latency_ms"`
}

type donePayload struct {
	SourceHint []string `json:"source_hint,omitempty"`
}

func (s *Server) handleAutocompleteStream(c echo.Context) error {
	return s.handleStream(c, media.ModeAutocomplete)
}

func (s *Server) handleSearchStream(c echo.Context) error {
	return s.handleStream(c, media.ModeSearch)
}

func (s *Server) handleStream(c echo.Context, mode media.Mode) error {
	req, err := parseRequest(c, mode, media.TransportStream)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	requestID := res.Header().Get(echo.HeaderXRequestID)

	for event := range s.searchService.Stream(ctx, requestID, req) {
		var payload any
		switch event.Type {
		case search.EventResult:
			payload = resultPayload{
				Source:    event.Source,
				Results:   event.Results,
				LatencyMs: event.LatencyMs,
			}
		case search.EventExactMatch:
			payload = event.Item
		case search.EventDone:
			payload = donePayload{SourceHint: event.SourceHint}
		default:
			continue
		}

		if err := writeSSE(res, string(event.Type), payload); err != nil {
			// Client went away; the request context cancels the fan-out.
			return nil
		}
		res.Flush()
	}

	return nil
}

// writeSSE emits one named SSE event with a JSON data line.
func writeSSE(res *echo.Response, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, data)
	return err
}
