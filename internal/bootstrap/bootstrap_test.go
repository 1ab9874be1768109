package bootstrap_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/bootstrap"
	"quill/internal/testsupport"
	"quill/internal/transcript"
)

func TestOpenWiresServices(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg := prometheus.NewRegistry()

	app, err := bootstrap.Open(cfg, nil, reg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	ctx := context.Background()
	if _, err := app.Sessions.Save(ctx, "m1", 1, transcript.Snapshot{}); err != nil {
		t.Fatalf("Sessions.Save failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "quill_session_saves_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected session metrics registered")
	}
}

func TestOpenRejectsNilConfig(t *testing.T) {
	if _, err := bootstrap.Open(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
