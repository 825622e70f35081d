package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/events"
)

// EventsStreamHandler streams system events to clients over Server-Sent Events.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
// An optional ?types=A,B query restricts the stream to those event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	typesFilter := r.URL.Query().Get("types")

	var allowedTypes map[events.EventType]bool
	if typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	h.log.Info().Str("types_filter", typesFilter).Msg("Client connected to event stream")

	// Buffered so a slow client cannot block publishers
	eventChan := make(chan *events.Event, 100)

	eventHandler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	subscribed := events.AllTypes()
	if allowedTypes != nil {
		subscribed = subscribed[:0]
		for eventType := range allowedTypes {
			subscribed = append(subscribed, eventType)
		}
	}

	unsubscribes := make([]func(), 0, len(subscribed))
	for _, eventType := range subscribed {
		unsubscribes = append(unsubscribes, h.eventBus.Subscribe(eventType, eventHandler))
	}
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	done := r.Context().Done()

	fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			eventJSON := h.encodeEvent(map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			})

			fmt.Fprintf(w, "data: %s\n\n", eventJSON)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// encodeEvent encodes an event map to a JSON string
func (h *EventsStreamHandler) encodeEvent(event map[string]interface{}) string {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
