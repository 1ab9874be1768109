package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"quill/internal/fileutil"
)

// RunLogs describes the per-run daemon logs in one directory. Run log names
// embed a sortable UTC stamp after Prefix, so name order is start order.
type RunLogs struct {
	Dir    string
	Prefix string
	// MaxAge is how long a finished run's log is kept. Zero disables pruning.
	MaxAge time.Duration
	// KeepRuns logs are kept regardless of age, newest first.
	KeepRuns int
	// Active is the log of the running daemon. It is never removed.
	Active string
}

// PruneRunLogs removes expired run logs and returns their paths. The file
// behind the CurrentLogName pointer is kept as well as Active.
func PruneRunLogs(logger *slog.Logger, logs RunLogs) []string {
	dir := strings.TrimSpace(logs.Dir)
	if logs.MaxAge <= 0 || dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	protected := map[string]bool{}
	if logs.Active != "" {
		protected[filepath.Base(logs.Active)] = true
	}
	if target, err := filepath.EvalSymlinks(filepath.Join(dir, CurrentLogName)); err == nil {
		protected[filepath.Base(target)] = true
	}

	var runs []os.DirEntry
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == CurrentLogName || !strings.HasPrefix(name, logs.Prefix) || filepath.Ext(name) != ".log" {
			continue
		}
		runs = append(runs, entry)
	}
	slices.SortFunc(runs, func(a, b os.DirEntry) int { return strings.Compare(b.Name(), a.Name()) })

	cutoff := time.Now().Add(-logs.MaxAge)
	var removed []string
	for i, entry := range runs {
		if i < logs.KeepRuns || protected[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := fileutil.RemoveIfExists(path); err != nil {
			WarnWithContext(logger, "run log not pruned", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on the log directory"),
				String(FieldImpact, "old run log stays on disk"),
			)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 && logger != nil {
		logger.Debug("run logs pruned",
			String(FieldEventType, "log_pruned"),
			Int("count", len(removed)),
		)
	}
	return removed
}
