package preflight

import (
	"quill/internal/config"
	"quill/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckDirectories checks every directory the configuration names.
func CheckDirectories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectory("Data directory", cfg.Paths.DataDir, minDataFree),
		CheckDirectory("State directory", cfg.Paths.StateDir, 0),
		CheckDirectory("Lock directory", cfg.LockDir(), 0),
	}
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// FirstFailure converts the first failed result into a configuration error,
// or returns nil.
func FirstFailure(results []Result) error {
	for _, r := range results {
		if !r.Passed {
			return services.Wrap(services.ErrConfiguration, "preflight", r.Name, r.Detail, nil)
		}
	}
	return nil
}
