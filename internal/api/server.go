// Package api exposes backtests, indicator augmentation, arbitrage scans and a
// paper account over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/moth-trading/internal/arbitrage"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/paper"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies. A year of minute bars fits comfortably.
const maxBodyBytes = 64 << 20

// Server routes the HTTP API. Arbitrage and paper routes are only mounted when
// the matching component is configured.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
	detector   *arbitrage.Detector
	trader     *paper.Trader
	log        *logger.Logger
}

type Option func(*Server)

// WithDetector mounts the arbitrage routes.
func WithDetector(detector *arbitrage.Detector) Option {
	return func(s *Server) {
		s.detector = detector
	}
}

// WithTrader mounts the paper account routes.
func WithTrader(trader *paper.Trader) Option {
	return func(s *Server) {
		s.trader = trader
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a server with its routes registered.
func NewServer(opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		httpServer: nil,
		listener:   nil,
		log:        logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/backtest", s.handleBacktest).Methods(http.MethodPost)
	s.router.HandleFunc("/api/indicators", s.handleIndicators).Methods(http.MethodPost)

	if s.detector != nil {
		s.router.HandleFunc("/api/arbitrage/{symbol}/opportunities", s.handleOpportunities).Methods(http.MethodGet)
		s.router.HandleFunc("/api/arbitrage/{symbol}/execution", s.handleExecutionPath).Methods(http.MethodGet)
	}

	if s.trader != nil {
		s.router.HandleFunc("/api/paper/positions", s.handleListPositions).Methods(http.MethodGet)
		s.router.HandleFunc("/api/paper/positions", s.handleOpenPosition).Methods(http.MethodPost)
		s.router.HandleFunc("/api/paper/positions/{symbol}", s.handleClosePosition).Methods(http.MethodDelete)
		s.router.HandleFunc("/api/paper/trades", s.handleClosedTrades).Methods(http.MethodGet)
		s.router.HandleFunc("/api/paper/metrics", s.handleMetrics).Methods(http.MethodGet)
	}

	s.router.Use(s.logRequests)
}

// Handler returns the routed handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address and serves in the background. An empty address or
// ":0" picks a free port.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.log.Info("HTTP server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Stop shuts the server down, waiting for in flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server listens on, or "" before Start.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.log.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
