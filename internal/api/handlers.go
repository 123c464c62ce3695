// Package api exposes the logbook over REST and hands off the live event
// feed to the WebSocket server.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

const defaultListLimit = 50
const maxListLimit = 500

// IngestStats reports live ingest figures for the status endpoint.
type IngestStats interface {
	QueueLen(t ogn.AddressType) int
}

// Handler contains the API handlers
type Handler struct {
	events    *sqlite.EventsStorage
	ingest    IngestStats
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(events *sqlite.EventsStorage, ingest IngestStats, log *logger.Logger) *Handler {
	return &Handler{
		events:    events,
		ingest:    ingest,
		logger:    log.Named("api-handler"),
		startedAt: time.Now().UTC(),
	}
}

// GetEvents returns the most recent flight events.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	events, err := h.events.ListRecentEvents(limit)
	if err != nil {
		h.logger.Error("Failed to list events", logger.Error(err))
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []sqlite.FlightEvent{}
	}
	writeJSON(w, events)
}

// GetFlights returns the most recent completed flights.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	flights, err := h.events.ListRecentFlights(limit)
	if err != nil {
		h.logger.Error("Failed to list flights", logger.Error(err))
		http.Error(w, "failed to list flights", http.StatusInternalServerError)
		return
	}
	if flights == nil {
		flights = []sqlite.FlightEntry{}
	}
	writeJSON(w, flights)
}

// GetStatus returns process health and per-category ingest backlogs.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	queues := make(map[string]int, len(ogn.AddressTypes))
	if h.ingest != nil {
		for _, t := range ogn.AddressTypes {
			queues[t.LongString()] = h.ingest.QueueLen(t)
		}
	}
	writeJSON(w, map[string]any{
		"uptime_secs": int(time.Since(h.startedAt).Seconds()),
		"queues":      queues,
	})
}

func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
