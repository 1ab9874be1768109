package preflight_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/internal/preflight"
	"quill/internal/services"
	"quill/internal/testsupport"
)

func TestCheckDirectory_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectory("test", dir, 0)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectory_NotExist(t *testing.T) {
	result := preflight.CheckDirectory("test", filepath.Join(t.TempDir(), "nope"), 0)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectory_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectory("test", f, 0)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectory_FreeSpace(t *testing.T) {
	dir := t.TempDir()
	ok := preflight.CheckDirectory("data", dir, 1)
	if !ok.Passed || !strings.Contains(ok.Detail, "free") {
		t.Fatalf("expected pass with free space detail, got %+v", ok)
	}
	short := preflight.CheckDirectory("data", dir, math.MaxUint64)
	if short.Passed || !strings.Contains(short.Detail, "need") {
		t.Fatalf("expected free space failure, got %+v", short)
	}
}

func TestCheckDirectoriesForConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := preflight.CheckDirectories(cfg)
	if len(results) != 3 || !preflight.AllPassed(results) {
		t.Fatalf("unexpected results: %+v", results)
	}
	if err := preflight.FirstFailure(results); err != nil {
		t.Fatalf("FirstFailure = %v", err)
	}

	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "missing")
	results = preflight.CheckDirectories(cfg)
	if preflight.AllPassed(results) {
		t.Fatal("expected missing data dir to fail")
	}
	if err := preflight.FirstFailure(results); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
