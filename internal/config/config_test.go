package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"quill/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("QUILL_DATA_DIR", "")
	t.Setenv("QUILL_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".local", "share", "quill", "data"); cfg.Paths.DataDir != want {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "state", "quill"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Backups.KeepCount != 100 || cfg.Backups.HistoryLimit != 50 || !cfg.Backups.AutoPrune {
		t.Fatalf("unexpected backup defaults: %+v", cfg.Backups)
	}
	if cfg.Sessions.BackupCap != 20 {
		t.Fatalf("unexpected session backup cap: %d", cfg.Sessions.BackupCap)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.StateDir, "quill.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("QUILL_API_TOKEN", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":  "~/quill-data",
			"state_dir": "~/quill-state",
			"api_bind":  "0.0.0.0:9000",
			"api_token": "  secret  ",
		},
		"backups": map[string]any{
			"keep_count":    10,
			"history_limit": 5,
			"auto_prune":    false,
		},
		"sessions": map[string]any{
			"backup_cap":      3,
			"history_workers": 2,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "quill-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected trimmed token, got %q", cfg.Paths.APIToken)
	}
	if cfg.Backups.KeepCount != 10 || cfg.Backups.AutoPrune {
		t.Fatalf("unexpected backups: %+v", cfg.Backups)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[backups]\nkeep = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestAPITokenFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("QUILL_API_TOKEN", "from-env")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.Paths.APIToken)
	}
}

func TestValidate(t *testing.T) {
	base := config.Default()
	base.Paths.DataDir = "/tmp/quill/data"
	base.Paths.StateDir = "/tmp/quill/state"
	if err := base.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero keep count", func(c *config.Config) { c.Backups.KeepCount = 0 }, "backups.keep_count"},
		{"zero history limit", func(c *config.Config) { c.Backups.HistoryLimit = 0 }, "backups.history_limit"},
		{"zero backup cap", func(c *config.Config) { c.Sessions.BackupCap = 0 }, "sessions.backup_cap"},
		{"zero workers", func(c *config.Config) { c.Sessions.HistoryWorkers = 0 }, "sessions.history_workers"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad bind", func(c *config.Config) { c.Paths.APIBind = "nope" }, "paths.api_bind"},
		{"same dirs", func(c *config.Config) { c.Paths.StateDir = c.Paths.DataDir }, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists || cfg.Sessions.HistoryWorkers != 4 {
		t.Fatalf("unexpected sample config: exists=%v %+v", exists, cfg.Sessions)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.LockDir(), cfg.LogDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
