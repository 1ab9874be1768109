// Package bootstrap wires configuration into the storage layer and the
// backup services shared by the CLI and the daemon.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/config"
	"quill/internal/keylock"
	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/mediaslot"
	"quill/internal/metrics"
	"quill/internal/preflight"
	"quill/internal/sessions"
	"quill/internal/store"
	"quill/internal/versions"
)

// App holds the opened services of one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Layout   layout.Layout
	Locks    *keylock.Locker
	Metrics  *metrics.Metrics
	Versions *versions.Service
	Sessions *sessions.Service
	Media    *mediaslot.Registry
}

// Open prepares directories, opens the database, and builds the services.
// Metrics are registered with reg when it is non-nil.
func Open(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if results := preflight.CheckDirectories(cfg); !preflight.AllPassed(results) {
		return nil, preflight.FirstFailure(results)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	locks, err := keylock.New(cfg.LockDir())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m := metrics.New(reg)
	l := layout.New(cfg.Paths.DataDir)
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Layout:  l,
		Locks:   locks,
		Metrics: m,
		Versions: versions.New(st, l, locks, versions.Options{
			KeepCount:    cfg.Backups.KeepCount,
			HistoryLimit: cfg.Backups.HistoryLimit,
			AutoPrune:    cfg.Backups.AutoPrune,
		}, logger, m),
		Sessions: sessions.New(l, locks, sessions.Options{
			BackupCap:      cfg.Sessions.BackupCap,
			HistoryWorkers: cfg.Sessions.HistoryWorkers,
		}, logger, m),
		Media: mediaslot.NewRegistry(l, locks, logger, m),
	}
	logger.Debug("services ready",
		logging.String(logging.FieldEventType, "services_ready"),
		logging.String("database", cfg.DatabasePath()),
		logging.String("data_dir", cfg.Paths.DataDir),
	)
	return app, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
