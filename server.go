package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/object-detection-service/config"
	"github.com/Tutortoise/object-detection-service/detections"
	"github.com/Tutortoise/object-detection-service/models"
)

const shutdownTimeout = 10 * time.Second

// Processor turns an uploaded image into a detection response.
type Processor interface {
	Process(ctx context.Context, data []byte, timings *models.ProcessingTimings) (models.DetectResponse, error)
}

// StatsSource reports session pool usage for /metrics.
type StatsSource interface {
	Stats() detections.PoolStats
}

type ServerOption func(*Server) error

type Server struct {
	processor      Processor
	stats          StatsSource
	log            *logrus.Logger
	staticDir      string
	maxUploadBytes int64
	httpServer     *http.Server
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		staticDir:      config.DefaultStaticDir,
		maxUploadBytes: config.DefaultMaxUploadMB << 20,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.DefaultHost, config.DefaultPort),
			ReadTimeout:  config.DefaultTimeout,
			WriteTimeout: config.DefaultTimeout,
		},
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	server.httpServer.Handler = server.Handler()
	return server, nil
}

func WithConfig(cfg config.Server) ServerOption {
	return func(s *Server) error {
		s.httpServer.Addr = cfg.Addr()
		s.httpServer.ReadTimeout = cfg.ReadTimeout
		s.httpServer.WriteTimeout = cfg.WriteTimeout
		s.staticDir = cfg.StaticDir
		s.maxUploadBytes = cfg.MaxUploadBytes()
		return nil
	}
}

func WithProcessor(p Processor) ServerOption {
	return func(s *Server) error {
		s.processor = p
		return nil
	}
}

func WithStats(stats StatsSource) ServerOption {
	return func(s *Server) error {
		s.stats = stats
		return nil
	}
}

func WithLogger(log *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = log
		return nil
	}
}

// Handler is the full middleware chain around the router. CORS sits outside
// the router so preflights reach it regardless of route methods.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.sendErrorResponse(w, CodeNotFound, "route not found", "", http.StatusNotFound)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.addMonitoringRoutes(r)
	s.addStaticRoutes(r)

	var h http.Handler = r
	h = loggingMiddleware(s.log)(h)
	h = requestIDMiddleware(h)
	h = corsMiddleware(h)
	return h
}

func (s *Server) addMonitoringRoutes(r *mux.Router) {
	if s.stats != nil {
		r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("Starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
