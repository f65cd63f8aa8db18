package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orbitalhq/geosync/internal/events"
)

// StreamRoutes registers the live event subscription endpoint.
type StreamRoutes struct {
	mux *events.Multiplexer
}

// NewStreamRoutes constructs the SSE routes.
func NewStreamRoutes(mux *events.Multiplexer) *StreamRoutes {
	return &StreamRoutes{mux: mux}
}

// RegisterRoutes registers the event stream endpoint.
func (r *StreamRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/api/v1/events", r.handleStream)
}

func (r *StreamRoutes) handleStream(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}

	w := c.Response().Writer
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming unsupported")
	}
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	includeGlobal := c.QueryParam("global") == "true"
	writer := &sseWriter{w: w, flusher: flusher}
	return r.mux.Serve(c.Request().Context(), owner, includeGlobal, writer)
}

// sseWriter renders hub events as server-sent event frames.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) WriteEvent(event events.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("event: " + event.Type + "\ndata: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteHeartbeat() error {
	if _, err := s.w.Write([]byte(": keep-alive\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
