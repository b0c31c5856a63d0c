package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/storyforge/internal/events"
)

// keepaliveInterval is how often an idle stream gets a comment line.
var keepaliveInterval = 30 * time.Second

// EventsHandler handles Server-Sent Events (SSE) for real-time game updates
type EventsHandler struct {
	bus    events.Bus
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(bus events.Bus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		logger: logger,
	}
}

// ServeHTTP streams one game's events as SSE.
// GET /v1/events/games/{gameID}?types=game.saved,game.scene_generated
// Without types every event is sent.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, r, http.MethodGet)
		return
	}

	parts := pathParts(r.URL.Path, "/v1/events")
	if len(parts) != 2 || parts[0] != "games" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/events/games/{gameID}")
		return
	}
	gameID, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game ID format.")
		return
	}

	wanted := eventFilter(r.URL.Query().Get("types"))

	stream, cancel, err := h.bus.Subscribe(r.Context(), gameID.String())
	if err != nil {
		h.logger.Error("Failed to subscribe to game events", "game_id", gameID.String(), "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}
	defer cancel()

	h.logger.Info("SSE connection established",
		"game_id", gameID.String(),
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	h.sendSSE(w, "connected", map[string]any{
		"game_id": gameID.String(),
		"message": "Connected to event stream",
	})

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "game_id", gameID.String())
			return

		case ev, ok := <-stream:
			if !ok {
				return
			}
			if len(wanted) > 0 && !wanted[ev.Type] {
				continue
			}
			if !ev.Timestamp.IsZero() {
				fmt.Fprintf(w, "id: %d\n", ev.Timestamp.UnixMilli())
			}
			h.sendSSE(w, string(ev.Type), ev.Data)

		case <-keepalive.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// eventFilter parses a comma-separated list of event types.
func eventFilter(raw string) map[events.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	wanted := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[events.EventType(t)] = true
		}
	}
	return wanted
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
