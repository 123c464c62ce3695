package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/internal/websocket"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Router wires the API handlers and the WebSocket endpoint.
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
}

// NewRouter creates the API router.
func NewRouter(events *sqlite.EventsStorage, ingest IngestStats, wsServer *websocket.Server, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(events, ingest, log),
		wsServer: wsServer,
	}
}

// Routes returns the HTTP handler tree.
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Route("/api", func(api chi.Router) {
		api.Get("/events", r.handler.GetEvents)
		api.Get("/flights", r.handler.GetFlights)
		api.Get("/status", r.handler.GetStatus)
	})
	router.Get("/ws", r.wsServer.HandleConnection)

	return router
}
