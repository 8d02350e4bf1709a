package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pgbootstrap/pkg/health"
	"github.com/dmitrymomot/pgbootstrap/pkg/logger"
	"github.com/dmitrymomot/pgbootstrap/pkg/provision"
)

const (
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 5 * time.Minute // provisioning runs block the handler
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

// Config holds HTTP shell settings.
type Config struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Runner triggers a provisioning run. Satisfied by *provision.Provisioner.
type Runner interface {
	Run(ctx context.Context) (provision.Result, error)
}

// Server exposes the bootstrap operation and health probes over HTTP for
// deployment tooling that prefers an endpoint over a one-shot binary.
type Server struct {
	cfg    Config
	runner Runner
	checks health.Checks
	log    *slog.Logger
}

// New creates a Server. checks are wired into the readiness probe.
func New(cfg Config, runner Runner, checks health.Checks, log *slog.Logger) *Server {
	if log == nil {
		log = logger.NewNope()
	}
	return &Server{
		cfg:    cfg,
		runner: runner,
		checks: checks,
		log:    log,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Recover(s.log))
	r.Use(RequestLogger(s.log))

	r.Post("/provision", s.handleProvision)
	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(s.checks, health.WithLogger(s.log)))

	return r
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.Run(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "provisioning run failed",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Run starts the HTTP server and blocks until a shutdown signal or a fatal
// listener error. Shutdown is graceful within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
