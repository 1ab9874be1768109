package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBackups(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if filepath.Clean(c.Paths.DataDir) == filepath.Clean(c.Paths.StateDir) {
		return errors.New("paths.data_dir and paths.state_dir must differ")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateBackups() error {
	if c.Backups.KeepCount <= 0 {
		return errors.New("backups.keep_count must be positive")
	}
	if c.Backups.HistoryLimit <= 0 {
		return errors.New("backups.history_limit must be positive")
	}
	return nil
}

func (c *Config) validateSessions() error {
	if c.Sessions.BackupCap <= 0 {
		return errors.New("sessions.backup_cap must be positive")
	}
	if c.Sessions.HistoryWorkers <= 0 {
		return errors.New("sessions.history_workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero (keep forever) or positive")
	}
	return nil
}
