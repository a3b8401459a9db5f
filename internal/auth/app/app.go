package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aussiebroadwan/regconsole/internal/auth/service"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
)

// BuildVersion is overridden at build time with -ldflags "-X ...app.BuildVersion=".
var BuildVersion = "v0.1.0"

// Application encapsulates the console with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	role   consoleauth.Role

	in  *bufio.Scanner
	out io.Writer

	// termFD is the terminal behind stdin, or -1 when input is not a TTY.
	termFD       int
	readPassword func(fd int) ([]byte, error)

	// Core dependencies
	store    store.Store
	registry *prometheus.Registry

	// Services
	sessions *service.SessionService
}

// Option customises an Application, mostly for tests.
type Option func(*Application)

// WithIO replaces stdin and stdout for prompts and command output.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(app *Application) {
		app.in = bufio.NewScanner(in)
		app.out = out
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:          cfg,
		role:         consoleauth.Role(cfg.Role),
		in:           bufio.NewScanner(os.Stdin),
		out:          os.Stdout,
		termFD:       -1,
		readPassword: term.ReadPassword,
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		app.termFD = fd
	}
	for _, opt := range opts {
		opt(app)
	}

	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "regconsole",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initServices()

	return app, nil
}

// Close releases the session store.
func (app *Application) Close() error {
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
		return err
	}
	return nil
}

// Sessions exposes the session service, e.g. for embedding the console flows.
func (app *Application) Sessions() *service.SessionService {
	return app.sessions
}

// initStore opens the configured session store and applies migrations.
func (app *Application) initStore() error {
	if app.cfg.SessionStore == StoreMemory {
		app.store = memory.NewStore()
		app.logger.Debug("using in-memory session store")
		return nil
	}

	sealer, err := InitSealer(app.cfg.MasterKeyPath, app.logger)
	if err != nil {
		return err
	}

	var opts []sqlite.Option
	if sealer != nil {
		opts = append(opts, sqlite.WithSealer(sealer))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply session store migrations: %w", err)
	}

	app.store = db
	app.logger.Debug("session store ready", "file", app.cfg.DatabaseFile, "sealed", sealer != nil)
	return nil
}

// initServices wires the API client and session service.
func (app *Application) initServices() {
	hc := &http.Client{
		Timeout:   app.cfg.HTTPTimeout,
		Transport: slogx.NewTransport(http.DefaultTransport, app.logger),
	}

	client := consoleauth.NewClientWithHTTP(app.cfg.APIURL, hc)

	app.registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(app.registry)

	app.sessions = service.NewSessionService(
		client,
		app.store,
		app.logger,
		collector,
		app.cfg.LogoutTimeout,
	)
}

// flushMetrics writes the registry to the configured text file, if any.
func (app *Application) flushMetrics() {
	if app.cfg.MetricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(app.cfg.MetricsFile, app.registry); err != nil {
		app.logger.Warn("failed to write metrics file", "path", app.cfg.MetricsFile, "error", err)
	}
}
