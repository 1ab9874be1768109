package config

const (
	defaultDataDir           = "~/.local/share/quill/data"
	defaultStateDir          = "~/.local/state/quill"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultKeepCount         = 100
	defaultHistoryLimit      = 50
	defaultAutoPrune         = true
	defaultSessionBackupCap  = 20
	defaultHistoryWorkers    = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	maxSessionHistoryWorkers = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Backups: Backups{
			KeepCount:    defaultKeepCount,
			HistoryLimit: defaultHistoryLimit,
			AutoPrune:    defaultAutoPrune,
		},
		Sessions: Sessions{
			BackupCap:      defaultSessionBackupCap,
			HistoryWorkers: defaultHistoryWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
