// Package health exposes the liveness endpoint polled by the hosting platform,
// plus a readiness check and the metrics scrape endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/logging"
)

// AliveBody is the fixed liveness response.
const AliveBody = "Bot is alive and running!"

const (
	storePingTimeout   = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"
)

// Pinger defines the subset of store behavior required for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the HTTP endpoints and owns the underlying HTTP server.
type Server struct {
	server  *http.Server
	logger  *logrus.Entry
	store   Pinger
	metrics http.Handler
}

type response struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// NewServer constructs a server on port exposing GET/HEAD / for liveness,
// GET /healthz for readiness and, when metrics is non-nil, GET /metrics.
func NewServer(port int, store Pinger, metrics http.Handler, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:  logger,
		store:   store,
		metrics: metrics,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

func (s *Server) routes() http.Handler {
	router := httprouter.New()
	router.GET("/", s.handleAlive)
	router.HEAD("/", s.handleAlive)
	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.metrics)
	}
	return router
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, AliveBody); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Warn("failed to write liveness response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := response{Status: "ok"}

	if err := s.pingStore(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "error"
		s.logger.WithField("event", "health_store_error").WithError(err).Warn("store ping failed during health check")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) pingStore(ctx context.Context) error {
	if s.store == nil {
		return errors.New("store is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()

	return s.store.Ping(pingCtx)
}
