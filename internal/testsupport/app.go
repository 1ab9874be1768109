package testsupport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/bootstrap"
	"quill/internal/config"
)

// MustOpenApp opens the full service graph for cfg and registers cleanup.
func MustOpenApp(t testing.TB, cfg *config.Config, reg prometheus.Registerer) *bootstrap.App {
	t.Helper()

	app, err := bootstrap.Open(cfg, nil, reg)
	if err != nil {
		t.Fatalf("bootstrap.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Close()
	})
	return app
}
