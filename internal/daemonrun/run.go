// Package daemonrun hosts the quilld process lifecycle: signal handling, log
// files, the PID file, and the daemon itself.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quill/internal/bootstrap"
	"quill/internal/config"
	"quill/internal/daemon"
	"quill/internal/fileutil"
	"quill/internal/logging"
	"quill/internal/metrics"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// PIDFileName is written into the log directory while the daemon runs.
const PIDFileName = "quilld.pid"

const (
	runLogPrefix = "quilld-"
	// keepRunLogs recent run logs survive retention_days.
	keepRunLogs = 5
)

// Run starts the quill daemon and blocks until the context is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.LogDir(), runLogPrefix+runID+".log")
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.LogDir(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.CurrentLogName, err)
	}
	logging.PruneRunLogs(logger, logging.RunLogs{
		Dir:      cfg.LogDir(),
		Prefix:   runLogPrefix,
		MaxAge:   time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour,
		KeepRuns: keepRunLogs,
		Active:   logPath,
	})

	pidPath := filepath.Join(cfg.LogDir(), PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	reg := metrics.NewRegistry()
	app, err := bootstrap.Open(cfg, logger, reg)
	if err != nil {
		logging.ErrorWithContext(logger, "open services", "daemon_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir and state_dir permissions"),
		)
		return err
	}

	d, err := daemon.New(cfg, app, logger, reg)
	if err != nil {
		_ = app.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("quill daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.CurrentLogName)
	if err := fileutil.RemoveIfExists(current); err != nil {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the PID recorded by a running daemon, or 0 when no PID
// file exists.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(filepath.Join(cfg.LogDir(), PIDFileName))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

