package keylock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestLockSerializesCounterUpdates(t *testing.T) {
	locker, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	counter := filepath.Join(t.TempDir(), "counter")
	if err := os.WriteFile(counter, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- locker.With(context.Background(), "transcription/abc", func() error {
				data, err := os.ReadFile(counter)
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(string(data))
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return os.WriteFile(counter, []byte(strconv.Itoa(n+1)), 0o644)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("locked update failed: %v", err)
		}
	}

	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(workers) {
		t.Fatalf("expected %d increments, got %s", workers, data)
	}
}

func TestLockHonorsContext(t *testing.T) {
	locker, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	unlock, err := locker.Lock(context.Background(), "session/media-1/1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "session/media-1/1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	other, err := locker.Lock(context.Background(), "session/media-1/2")
	if err != nil {
		t.Fatalf("distinct keys must not contend: %v", err)
	}
	other()
	other()
}

func TestPathForDistinguishesSimilarKeys(t *testing.T) {
	locker := &Locker{dir: "/locks"}
	if locker.pathFor("a/b") == locker.pathFor("a_b") {
		t.Fatal("expected distinct lock files for keys that sanitize alike")
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
