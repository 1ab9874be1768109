package mediaslot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"quill/internal/keylock"
	"quill/internal/layout"
	"quill/internal/mediaslot"
	"quill/internal/services"
)

func newRegistry(t *testing.T) (*mediaslot.Registry, layout.Layout) {
	t.Helper()
	root := t.TempDir()
	locks, err := keylock.New(filepath.Join(root, "locks"))
	if err != nil {
		t.Fatalf("keylock.New: %v", err)
	}
	l := layout.New(filepath.Join(root, "data"))
	return mediaslot.NewRegistry(l, locks, nil, nil), l
}

func TestRegistryAddRemoveReuse(t *testing.T) {
	reg, l := newRegistry(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		slot, err := reg.AddMedia(ctx, "u1", "Podcast", nil)
		if err != nil {
			t.Fatalf("AddMedia failed: %v", err)
		}
		if slot.Number != i {
			t.Fatalf("slot %d numbered %d", i, slot.Number)
		}
		if _, err := os.Stat(slot.Dir); err != nil {
			t.Fatalf("slot dir missing: %v", err)
		}
	}

	if err := reg.RemoveMedia(ctx, "u1", "Podcast", 2); err != nil {
		t.Fatalf("RemoveMedia failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(l.MediaRoot("u1", "Podcast"), "media-2")); !os.IsNotExist(err) {
		t.Fatalf("expected media-2 removed, stat err=%v", err)
	}

	slot, err := reg.AddMedia(ctx, "u1", "Podcast", nil)
	if err != nil {
		t.Fatalf("AddMedia after remove failed: %v", err)
	}
	if slot.Number != 2 {
		t.Fatalf("expected reused slot 2, got %d", slot.Number)
	}

	ix, err := reg.Load(ctx, "u1", "Podcast")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ix.NextNumber != 4 || len(ix.Available) != 0 || len(ix.Active) != 3 {
		t.Fatalf("unexpected index: %+v", ix)
	}
	if err := ix.Check(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestRegistryPrepareFailureLeavesIndexUnchanged(t *testing.T) {
	reg, l := newRegistry(t)
	ctx := context.Background()

	if _, err := reg.AddMedia(ctx, "u1", "Doc", nil); err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	boom := errors.New("copy failed")
	var attempted string
	_, err := reg.AddMedia(ctx, "u1", "Doc", func(dir string) error {
		attempted = dir
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected prepare error, got %v", err)
	}
	if _, err := os.Stat(attempted); !os.IsNotExist(err) {
		t.Fatalf("expected failed slot dir removed, stat err=%v", err)
	}

	ix, err := reg.Load(ctx, "u1", "Doc")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ix.NextNumber != 2 {
		t.Fatalf("failed add advanced the counter: %+v", ix)
	}
	if _, err := os.Stat(l.MediaIndexPath("u1", "Doc")); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
}

func TestRegistryBootstrapsFromDirectories(t *testing.T) {
	reg, l := newRegistry(t)
	ctx := context.Background()
	root := l.MediaRoot("u1", "Legacy")
	for _, name := range []string{"media-1", "media-4", "notes"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	slot, err := reg.AddMedia(ctx, "u1", "Legacy", nil)
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	if slot.Number != 2 {
		t.Fatalf("expected gap slot 2, got %d", slot.Number)
	}
	ix, _ := reg.Load(ctx, "u1", "Legacy")
	if ix.NextNumber != 5 || len(ix.Available) != 1 || ix.Available[0] != 3 {
		t.Fatalf("unexpected bootstrapped index: %+v", ix)
	}
}

func TestRegistryDetectsStaleIndex(t *testing.T) {
	reg, l := newRegistry(t)
	ctx := context.Background()
	if _, err := reg.AddMedia(ctx, "u1", "P", nil); err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(l.MediaRoot("u1", "P"), "media-2"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := reg.AddMedia(ctx, "u1", "P", nil); !errors.Is(err, services.ErrConsistency) {
		t.Fatalf("expected consistency error, got %v", err)
	}

	ix, err := reg.Rebuild(ctx, "u1", "P")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if ix.NextNumber != 3 {
		t.Fatalf("rebuilt next = %d, want 3", ix.NextNumber)
	}
}

func TestRegistryConcurrentAddsGetDistinctNumbers(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	const workers = 8
	numbers := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := reg.AddMedia(ctx, "u1", "Busy", nil)
			if err != nil {
				t.Errorf("AddMedia failed: %v", err)
				return
			}
			numbers <- slot.Number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for n := range numbers {
		if seen[n] {
			t.Fatalf("number %d handed out twice", n)
		}
		seen[n] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d numbers, got %d", workers, len(seen))
	}
}

func TestImportFileCopiesIntoSlot(t *testing.T) {
	reg, _ := newRegistry(t)
	src := filepath.Join(t.TempDir(), "episode one.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	slot, name, err := reg.ImportFile(context.Background(), "u1", "Show", src)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if name != "episode_one.mp3" {
		t.Fatalf("name = %q", name)
	}
	data, err := os.ReadFile(filepath.Join(slot.Dir, name))
	if err != nil || string(data) != "audio" {
		t.Fatalf("copied file = %q, %v", data, err)
	}
}
