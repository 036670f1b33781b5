// Package server exposes the scheduler over HTTP with chi.
//
// Routes:
//
//	POST /v1/review          wire.Request       -> wire.Response
//	POST /v1/review/batch    wire.BatchRequest  -> wire.BatchResponse
//	POST /v1/preview         wire.PreviewRequest -> wire.PreviewResponse
//	POST /v1/reschedule      wire.RescheduleRequest -> wire.RescheduleResponse
//	GET  /healthz
//	GET  /metrics
//
// Failures are answered with a wire.Error body and the status of its code.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/config"
	"github.com/sky-flux/fsrs/internal/logging"
	"github.com/sky-flux/fsrs/internal/metrics"
	"github.com/sky-flux/fsrs/wire"
)

// Server serves wire requests over HTTP.
type Server struct {
	cfg      config.ServerConfig
	handler  *wire.Handler
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	router   http.Handler
}

// New builds a server around the default scheduler s.
func New(cfg config.ServerConfig, s *fsrs.Scheduler) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	srv := &Server{
		cfg:      cfg,
		handler:  wire.NewHandler(s, wire.WithObserver(m), wire.WithMaxBatch(cfg.MaxBatch)),
		metrics:  m,
		registry: reg,
	}
	srv.router = srv.routes()
	return srv
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateLimitWindow))
		r.Use(limitBody(s.cfg.MaxBodyBytes))

		r.Post("/review", serve(s, func(_ context.Context, req wire.Request) (wire.Response, error) {
			return s.handler.Review(req)
		}))
		r.Post("/review/batch", serve(s, s.handler.ReviewBatch))
		r.Post("/preview", serve(s, func(_ context.Context, req wire.PreviewRequest) (wire.PreviewResponse, error) {
			return s.handler.Preview(req)
		}))
		r.Post("/reschedule", serve(s, func(_ context.Context, req wire.RescheduleRequest) (wire.RescheduleResponse, error) {
			return s.handler.Reschedule(req)
		}))
	})
	return r
}

// serve decodes a Req, runs fn and writes its Resp or error.
func serve[Req, Resp any](s *Server, fn func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := wire.Decode(r.Body, &req); err != nil {
			we := wire.AsError(err)
			s.metrics.ObserveError(we.Code)
			writeError(w, r, we)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			writeError(w, r, wire.AsError(err))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := wire.Encode(w, v); err != nil {
		logging.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, we *wire.Error) {
	status := we.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(errors.Unwrap(we)).Str("code", string(we.Code)).Msg("request failed")
	}
	writeJSON(w, status, we)
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. It returns nil after a graceful
// shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logging.Info().Str("addr", ln.Addr().String()).Msg("fsrs server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		logging.Info().Msg("fsrs server shutting down")
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return nil
	}
}
