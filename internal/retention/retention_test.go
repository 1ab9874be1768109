package retention_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"quill/internal/layout"
	"quill/internal/metrics"
	"quill/internal/retention"
	"quill/internal/services"
	"quill/internal/store"
)

type fakeRecords struct {
	backups []*store.Backup
	err     error
}

func (f *fakeRecords) DeleteBackupsBeyond(_ context.Context, transcriptionID string, keep int) ([]*store.Backup, error) {
	if f.err != nil {
		return nil, f.err
	}
	sort.Slice(f.backups, func(i, j int) bool { return f.backups[i].Version > f.backups[j].Version })
	if keep >= len(f.backups) {
		return nil, nil
	}
	removed := f.backups[keep:]
	f.backups = f.backups[:keep]
	return removed, nil
}

func writeVersions(t *testing.T, dir string, n int) *fakeRecords {
	t.Helper()
	records := &fakeRecords{}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for v := 1; v <= n; v++ {
		path := filepath.Join(dir, layout.BackupFileName(v, at.Add(time.Duration(v)*time.Minute)))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write version: %v", err)
		}
		records.backups = append(records.backups, &store.Backup{ID: fmt.Sprintf("b%d", v), Version: v, FilePath: path})
	}
	return records
}

func TestPruneKeepsMostRecent(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		keep      int
		remaining []int
	}{
		{name: "excess", total: 5, keep: 2, remaining: []int{5, 4}},
		{name: "exact", total: 3, keep: 3, remaining: []int{3, 2, 1}},
		{name: "fewer than keep", total: 2, keep: 10, remaining: []int{2, 1}},
		{name: "keep zero", total: 3, keep: 0, remaining: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			records := writeVersions(t, dir, tt.total)
			m := metrics.New(nil)
			mgr := retention.New(records, nil, m)

			result, err := mgr.Prune(context.Background(), "t1", tt.keep)
			if err != nil {
				t.Fatalf("Prune failed: %v", err)
			}
			wantRemoved := tt.total - len(tt.remaining)
			if len(result.Removed) != wantRemoved || len(result.DeletedPaths) != wantRemoved {
				t.Fatalf("removed %d records and %d files, want %d", len(result.Removed), len(result.DeletedPaths), wantRemoved)
			}
			var got []int
			for _, b := range records.backups {
				got = append(got, b.Version)
				if _, err := os.Stat(b.FilePath); err != nil {
					t.Fatalf("kept version file missing: %v", err)
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.remaining) {
				t.Fatalf("remaining versions = %v, want %v", got, tt.remaining)
			}
			for _, path := range result.DeletedPaths {
				if _, err := os.Stat(path); !os.IsNotExist(err) {
					t.Fatalf("expected %s removed", path)
				}
			}
			if got := testutil.ToFloat64(m.BackupsPruned); got != float64(wantRemoved) {
				t.Fatalf("pruned counter = %v, want %d", got, wantRemoved)
			}
		})
	}
}

func TestPruneToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	records := writeVersions(t, dir, 3)
	if err := os.Remove(records.backups[0].FilePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	mgr := retention.New(records, nil, nil)

	result, err := mgr.Prune(context.Background(), "t1", 1)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(result.Removed) != 2 || result.MissingFiles != 1 || len(result.DeletedPaths) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPruneRejectsNegativeKeep(t *testing.T) {
	mgr := retention.New(&fakeRecords{}, nil, nil)
	if _, err := mgr.Prune(context.Background(), "t1", -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPruneWrapsRecordFailure(t *testing.T) {
	mgr := retention.New(&fakeRecords{err: errors.New("disk I/O error")}, nil, nil)
	if _, err := mgr.Prune(context.Background(), "t1", 1); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestPruneTrailOrdersByStampThenVersion(t *testing.T) {
	dir := t.TempDir()
	same := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	names := []string{
		layout.BackupFileName(9, same),
		layout.BackupFileName(10, same),
		layout.BackupFileName(11, same.Add(time.Second)),
		"notes.txt",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	removed, err := retention.New(nil, nil, nil).PruneTrail(dir, 2)
	if err != nil {
		t.Fatalf("PruneTrail failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != names[0] {
		t.Fatalf("removed = %v, want [%s]", removed, names[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("unrelated file touched: %v", err)
	}
}

func TestPruneTrailCap(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	for v := 1; v <= 25; v++ {
		name := layout.BackupFileName(v, start.Add(time.Duration(v)*time.Second))
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	removed, err := retention.New(nil, nil, nil).PruneTrail(dir, 20)
	if err != nil {
		t.Fatalf("PruneTrail failed: %v", err)
	}
	if len(removed) != 5 {
		t.Fatalf("removed %d files, want 5", len(removed))
	}
	trail, err := retention.ScanTrail(dir)
	if err != nil {
		t.Fatalf("ScanTrail failed: %v", err)
	}
	if len(trail) != 20 || trail[0].Version != 6 || trail[19].Version != 25 {
		t.Fatalf("unexpected trail: first=%d last=%d len=%d", trail[0].Version, trail[len(trail)-1].Version, len(trail))
	}
}

func TestScanTrailMissingDir(t *testing.T) {
	trail, err := retention.ScanTrail(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(trail) != 0 {
		t.Fatalf("ScanTrail = %v, %v", trail, err)
	}
}
