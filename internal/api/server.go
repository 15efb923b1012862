// Package api exposes a scan session over HTTP and pushes state changes to
// WebSocket subscribers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"emptyfolder-cleaner/internal/api/middleware"
	"emptyfolder-cleaner/internal/api/websocket"
	"emptyfolder-cleaner/internal/config"
	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/session"
)

const (
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 15 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 10 * time.Second
	MaxBodyBytes    = 1 << 20
	limiterIdle     = 10 * time.Minute
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Session is the part of session.Session the API drives.
type Session interface {
	Scan(ctx context.Context, root string) error
	DeleteOne(ctx context.Context, path string, allowElevation bool) error
	StartDeleteAll(ctx context.Context, askForElevation bool) error
	Snapshot() session.State
	Subscribe() (<-chan session.State, func())
}

// History is the read side of the deletion database. Nil disables the
// history endpoint.
type History interface {
	GetRecentDeletionsPaginated(limit, offset int) ([]database.DeletionRecord, int, error)
	GetDeletionsByActionPaginated(action string, limit, offset int) ([]database.DeletionRecord, int, error)
}

// Server serves the session API.
type Server struct {
	cfg     config.APICfg
	session Session
	history History
	logger  Logger
	hub     *websocket.Hub
	limiter *middleware.RateLimiter
	router  *mux.Router
}

// NewServer builds the router. Call Serve to listen, or Handler with Start
// to embed it elsewhere.
func NewServer(cfg config.APICfg, sess Session, history History, logger Logger) *Server {
	limit, burst := rate.Limit(cfg.RateLimit), cfg.Burst
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		cfg:     cfg,
		session: sess,
		history: history,
		logger:  logger,
		hub:     websocket.NewHub(logger),
		limiter: middleware.NewRateLimiter(limit, burst, limiterIdle),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.LoggingMiddleware(s.logger))
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(middleware.RequestBodySizeLimitMiddleware(MaxBodyBytes))
	router.Use(s.limiter.Middleware())

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodHead)
	v1.HandleFunc("/state", s.stateHandler).Methods(http.MethodGet)
	v1.HandleFunc("/scan", s.scanHandler).Methods(http.MethodPost)
	v1.HandleFunc("/delete", s.deleteHandler).Methods(http.MethodPost)
	v1.HandleFunc("/delete-all", s.deleteAllHandler).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	v1.HandleFunc("/ws", websocket.Handler(s.hub)).Methods(http.MethodGet)

	// Root router only; a subrouter with its own NotFoundHandler answers
	// method mismatches with 404.
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the WebSocket hub and the state stream until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.streamState(ctx)
}

// streamState forwards every published session state to the hub.
func (s *Server) streamState(ctx context.Context) {
	states, cancel := s.session.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				s.logger.Error("failed to encode state", "error", err)
				continue
			}
			if !s.hub.Broadcast(data) {
				return
			}
		}
	}
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.limiter.Close()

	s.Start(ctx)

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
