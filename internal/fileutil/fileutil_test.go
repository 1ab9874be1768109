package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "current.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "v1.txt")
	dst := filepath.Join(dir, "current.txt")
	if err := os.WriteFile(src, []byte("backup"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileAtomic(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "backup" {
		t.Fatalf("content mismatch: got %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestCopyFileAtomicMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "current.txt")
	if err := os.WriteFile(dst, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileAtomic(filepath.Join(dir, "missing.txt"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "keep" {
		t.Fatalf("destination changed: %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	type doc struct {
		Count int `json:"count"`
	}
	var out doc
	found, err := ReadJSON(path, &out)
	if err != nil || found {
		t.Fatalf("expected missing file to report not found, got found=%v err=%v", found, err)
	}
	if err := WriteJSONAtomic(path, doc{Count: 3}); err != nil {
		t.Fatal(err)
	}
	found, err = ReadJSON(path, &out)
	if err != nil || !found || out.Count != 3 {
		t.Fatalf("unexpected read: found=%v err=%v out=%+v", found, err, out)
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.txt")
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("leftover temp files: %v", matches)
	}
}

func TestStageFileLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "v1.txt")

	tmpPath, err := StageFile(target, []byte("staged"), 0o644)
	if err != nil {
		t.Fatalf("StageFile failed: %v", err)
	}
	if filepath.Dir(tmpPath) != dir {
		t.Fatalf("temp file %s not beside target", tmpPath)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target exists before rename: %v", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		t.Fatalf("rename: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "staged" {
		t.Fatalf("target content = %q, %v", data, err)
	}
}
