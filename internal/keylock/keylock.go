// Package keylock serializes read-modify-write sequences on shared counters
// (version numbers, session trail numbers, media slot indexes) with advisory
// file locks, so concurrent requests in one daemon and CLI invocations in
// other processes see a consistent order.
package keylock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"quill/internal/textutil"
)

const (
	defaultRetryDelay = 10 * time.Millisecond
	maxReadableKey    = 48
)

// Locker hands out exclusive locks keyed by arbitrary strings.
type Locker struct {
	dir        string
	retryDelay time.Duration
}

// New returns a Locker that keeps lock files under dir.
func New(dir string) (*Locker, error) {
	if dir == "" {
		return nil, errors.New("keylock: lock directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("keylock: create lock directory: %w", err)
	}
	return &Locker{dir: dir, retryDelay: defaultRetryDelay}, nil
}

// Lock blocks until the key's lock is held or ctx ends. The returned func
// releases the lock and is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	lock := flock.New(l.pathFor(key))
	ok, err := lock.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("keylock: acquire %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("keylock: acquire %q: lock not obtained", key)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		_ = lock.Unlock()
	}, nil
}

// With runs fn while holding the key's lock.
func (l *Locker) With(ctx context.Context, key string, fn func() error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (l *Locker) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	readable := textutil.SanitizeToken(key)
	if len(readable) > maxReadableKey {
		readable = readable[:maxReadableKey]
	}
	return filepath.Join(l.dir, readable+"-"+hex.EncodeToString(sum[:6])+".lock")
}
