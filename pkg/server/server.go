// Package server exposes the administrative API of the telescope daemon
// over HTTP, pushes connection events to WebSocket clients and answers UDP
// discovery probes.
package server

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"telescope/pkg/catalog"
	"telescope/pkg/control"
	"telescope/pkg/store"
)

// requestTimeout bounds how long a request waits for the control loop.
const requestTimeout = 5 * time.Second

// Server routes administrative requests onto the control loop.
type Server struct {
	host     *control.Host
	catalog  *catalog.Catalog
	settings *store.Store
	hub      *Hub
	logger   log.FieldLogger
}

func NewServer(host *control.Host, cat *catalog.Catalog, settings *store.Store, hub *Hub, logger log.FieldLogger) *Server {
	return &Server{
		host:     host,
		catalog:  cat,
		settings: settings,
		hub:      hub,
		logger:   logger,
	}
}

func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()
	r.HandleFunc("GET /api/v1/slots", s.handleListSlots)
	r.HandleFunc("GET /api/v1/slots/{slot}", s.handleGetSlot)
	r.HandleFunc("PUT /api/v1/slots/{slot}", s.handlePutSlot)
	r.HandleFunc("DELETE /api/v1/slots/{slot}", s.handleDeleteSlot)
	r.HandleFunc("PUT /api/v1/slots/{slot}/start", s.handleStart)
	r.HandleFunc("PUT /api/v1/slots/{slot}/stop", s.handleStop)
	r.HandleFunc("PUT /api/v1/slots/{slot}/goto", s.handleGoto)
	r.HandleFunc("PUT /api/v1/stopall", s.handleStopAll)
	r.HandleFunc("GET /api/v1/clients", s.handleClients)
	r.HandleFunc("GET /api/v1/models", s.handleModels)
	r.HandleFunc("GET /api/v1/drivers", s.handleDrivers)
	r.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	r.HandleFunc("PUT /api/v1/settings", s.handlePutSettings)
	if s.hub != nil {
		r.Handle("GET /ws", s.hub.Handler())
	}
	return r
}

// do runs fn on the control loop on behalf of r.
func (s *Server) do(r *http.Request, fn func(*control.Control) error) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return s.host.Do(ctx, fn)
}
