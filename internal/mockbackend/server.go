package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/pkg/cryptox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time with -ldflags "-X ...mockbackend.BuildVersion=".
var BuildVersion = "v0.1.0"

// Server runs the development backend over HTTP with housekeeping.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	backend      *Backend
	housekeeping *HousekeepingService
	router       *Router
	server       *http.Server
}

// NewServer builds the backend, seeds the configured accounts and prepares
// the HTTP server. Passcodes are written to logger.
func NewServer(cfg ServerConfig, limits RateLimits, logger *slog.Logger) (*Server, error) {
	secret := cfg.SigningSecret
	if secret == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
		secret = generated
		logger.Warn("no signing secret configured, tokens will not survive a restart")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := New(Config{
		Issuer:        cfg.Issuer,
		SigningSecret: []byte(secret),
		Pepper:        cfg.Pepper,
		ChallengeTTL:  cfg.ChallengeTTL,
		MaxAttempts:   cfg.MaxAttempts,
		MaxResends:    cfg.MaxResends,
	}, LogOutbox{Logger: logger}, logger, metrics.NewBackendCollector(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	for _, na := range cfg.Accounts {
		acct, err := backend.AddAccount(na)
		if err != nil {
			return nil, fmt.Errorf("failed to seed account %q: %w", na.Username, err)
		}
		logger.Info("account seeded", "username", acct.Username, "role", acct.Role, "locked", acct.Locked)
	}
	if len(cfg.Accounts) == 0 {
		logger.Warn("no accounts configured, every login will fail")
	}

	router := NewRouter(backend, registry, cfg.Prefix, BuildVersion, limits, logger)
	router.ApplyRoutes()

	return &Server{
		cfg:          cfg,
		logger:       logger,
		backend:      backend,
		housekeeping: NewHousekeepingService(backend, logger, cfg.HousekeepingInterval),
		router:       router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 3 * time.Second,
		},
	}, nil
}

// Handler returns the routed handler, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Backend returns the in-memory backend.
func (s *Server) Backend() *Backend { return s.backend }

// Run starts the server and blocks until a shutdown signal or server error.
func (s *Server) Run() error {
	s.housekeeping.Start()

	s.logger.Info("authmock starting", "port", s.cfg.Port, "prefix", s.cfg.Prefix, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		s.housekeeping.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", "signal", sig)
		if err := s.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests and stops housekeeping.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down authmock...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		s.logger.Error("graceful server shutdown failed", "error", err)
		if cerr := s.server.Close(); cerr != nil {
			s.logger.Error("error closing server", "error", cerr)
		}
	}

	s.housekeeping.Stop()

	s.logger.Info("authmock stopped")
	return err
}
