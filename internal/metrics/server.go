package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transcodehost/internal/logging"
	"transcodehost/internal/supervisor"
)

// StatusFunc reports the current supervisor status.
type StatusFunc func() supervisor.Status

// Server exposes /metrics and /healthz.
type Server struct {
	bind     string
	status   StatusFunc
	logger   *slog.Logger
	srv      *http.Server
	listener net.Listener
}

// NewServer constructs a metrics server bound to bind once started.
func NewServer(bind string, status StatusFunc, logger *slog.Logger) *Server {
	s := &Server{
		bind:   bind,
		status: status,
		logger: logging.NewComponentLogger(logger, "metrics"),
	}
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	return r
}

type healthResponse struct {
	OK     bool              `json:"ok"`
	Status supervisor.Status `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var status supervisor.Status
	if s.status != nil {
		status = s.status()
	}
	resp := healthResponse{OK: status.State == supervisor.StateRunning, Status: status}

	w.Header().Set("Content-Type", "application/json")
	if !resp.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("write health response failed", logging.Error(err))
	}
}

// Start listens on the bind address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bind, err)
	}
	s.listener = listener
	s.logger.Info("metrics endpoint listening",
		logging.String(logging.FieldEventType, "metrics_listen"),
		logging.String("address", listener.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
