// Package api exposes download jobs, snapshots and provider metadata over HTTP, with a
// websocket stream of job status changes.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/service"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"go.uber.org/zap"
)

const (
	eventBuffer  = 64
	writeTimeout = 10 * time.Second
)

// SnapshotLoader reads one page of stored bars.
type SnapshotLoader interface {
	Load(ctx context.Context, req lean.SnapshotRequest) (*lean.SnapshotPage, error)
}

// Server serves the toolbox HTTP API.
type Server struct {
	downloads *service.DownloadService
	snapshots SnapshotLoader
	logger    *logger.Logger
	now       func() time.Time

	upgrader websocket.Upgrader
	router   *mux.Router

	httpServer *http.Server
	listener   net.Listener

	// WebSocket connections
	wsConnections map[*websocket.Conn]bool
	wsMu          sync.Mutex
}

func NewServer(downloads *service.DownloadService, snapshots SnapshotLoader, log *logger.Logger) *Server {
	server := &Server{
		downloads: downloads,
		snapshots: snapshots,
		logger:    log,
		now:       time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		wsConnections: make(map[*websocket.Conn]bool),
		wsMu:          sync.Mutex{},
		httpServer:    nil,
		listener:      nil,
	}

	router := mux.NewRouter()

	// The event stream comes first so "events" is never taken for a job id.
	router.HandleFunc("/api/jobs/events", server.handleJobEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs", server.handleCreateJob).Methods(http.MethodPost)
	router.HandleFunc("/api/jobs", server.handleListJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", server.handleGetJob).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", server.handleStopJob).Methods(http.MethodDelete)
	router.HandleFunc("/api/snapshots", server.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/api/providers", server.handleProviders).Methods(http.MethodGet)

	server.router = router

	return server
}

// Handler returns the routed handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address and serves in the background.
// If address is empty or ":0", a random available port is used.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("API server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Stop closes event streams and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.wsMu.Lock()
	for conn := range s.wsConnections {
		conn.Close()
	}

	s.wsConnections = make(map[*websocket.Conn]bool)
	s.wsMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}
