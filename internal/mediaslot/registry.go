package mediaslot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quill/internal/fileutil"
	"quill/internal/keylock"
	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/metrics"
	"quill/internal/services"
	"quill/internal/textutil"
)

// Slot is an allocated media number and its directory.
type Slot struct {
	Number int
	ID     string
	Dir    string
}

// Registry persists media indexes under the project directories of a data
// root. Index updates for one project are serialized with a keyed lock.
type Registry struct {
	layout  layout.Layout
	locks   *keylock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRegistry builds a Registry.
func NewRegistry(l layout.Layout, locks *keylock.Locker, logger *slog.Logger, m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Registry{
		layout:  l,
		locks:   locks,
		logger:  logging.NewComponentLogger(logger, "mediaslot"),
		metrics: m,
		now:     time.Now,
	}
}

func lockKey(userID, project string) string {
	return "media-index:" + userID + "/" + project
}

// Load returns the project's index. Without a media-index.json the index is
// bootstrapped from the media-<n> directories present, without writing it.
func (r *Registry) Load(ctx context.Context, userID, project string) (Index, error) {
	ix, _, err := r.load(userID, project)
	return ix, err
}

func (r *Registry) load(userID, project string) (Index, bool, error) {
	path := r.layout.MediaIndexPath(userID, project)
	var ix Index
	found, err := fileutil.ReadJSON(path, &ix)
	if err != nil {
		return Index{}, false, services.Wrap(services.ErrStorage, "mediaslot", "load index", path, err)
	}
	if found {
		if ix.NextNumber < 1 {
			ix.NextNumber = 1
		}
		if ix.Available == nil {
			ix.Available = []int{}
		}
		if ix.Active == nil {
			ix.Active = []string{}
		}
		return ix, true, nil
	}

	existing, err := r.scanSlots(userID, project)
	if err != nil {
		return Index{}, false, err
	}
	return Bootstrap(existing), false, nil
}

func (r *Registry) scanSlots(userID, project string) ([]int, error) {
	root := r.layout.MediaRoot(userID, project)
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "mediaslot", "scan media", root, err)
	}
	var numbers []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if n, ok := ParseSlotID(entry.Name()); ok {
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

func (r *Registry) save(userID, project string, ix Index) error {
	ix.LastUpdated = r.now().UTC()
	path := r.layout.MediaIndexPath(userID, project)
	if err := fileutil.WriteJSONAtomic(path, ix); err != nil {
		return services.Wrap(services.ErrStorage, "mediaslot", "save index", path, err)
	}
	return nil
}

// AddMedia allocates the next number for a project, creates its directory,
// runs prepare inside it, and only then records the number in the index. If
// prepare or the index write fails the directory is removed and the index is
// left unchanged.
func (r *Registry) AddMedia(ctx context.Context, userID, project string, prepare func(dir string) error) (Slot, error) {
	var slot Slot
	err := r.locks.With(ctx, lockKey(userID, project), func() error {
		ix, _, err := r.load(userID, project)
		if err != nil {
			return err
		}
		reused := len(ix.Available) > 0
		number, next := ix.Allocate()
		dir := filepath.Join(r.layout.MediaRoot(userID, project), SlotID(number))

		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return services.Wrap(services.ErrStorage, "mediaslot", "add media", "create media root", err)
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return services.Wrap(services.ErrConsistency, "mediaslot", "add media",
					fmt.Sprintf("%s already exists but the index lists it as free", SlotID(number)), err)
			}
			return services.Wrap(services.ErrStorage, "mediaslot", "add media", "create slot directory", err)
		}
		if prepare != nil {
			if err := prepare(dir); err != nil {
				_ = os.RemoveAll(dir)
				return err
			}
		}
		if err := r.save(userID, project, next); err != nil {
			_ = os.RemoveAll(dir)
			return err
		}

		slot = Slot{Number: number, ID: SlotID(number), Dir: dir}
		source := "fresh"
		if reused {
			source = "reused"
		}
		r.metrics.MediaSlotsAllocated.WithLabelValues(source).Inc()
		r.logger.Info("media slot allocated",
			logging.String(logging.FieldEventType, "media_slot_allocated"),
			logging.String(logging.FieldProject, project),
			logging.String(logging.FieldMediaID, slot.ID),
			logging.Bool("reused", reused),
		)
		return nil
	})
	if err != nil {
		return Slot{}, err
	}
	return slot, nil
}

// ImportFile copies src into a newly allocated slot under its sanitized base
// name.
func (r *Registry) ImportFile(ctx context.Context, userID, project, src string) (Slot, string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return Slot{}, "", services.Wrap(services.ErrValidation, "mediaslot", "import file", src, err)
	}
	if info.IsDir() {
		return Slot{}, "", services.Wrap(services.ErrValidation, "mediaslot", "import file", src+" is a directory", nil)
	}
	name := textutil.SanitizeName(filepath.Base(src), "media")
	slot, err := r.AddMedia(ctx, userID, project, func(dir string) error {
		if err := fileutil.CopyFileAtomic(src, filepath.Join(dir, name)); err != nil {
			return services.Wrap(services.ErrStorage, "mediaslot", "import file", "copy media", err)
		}
		return nil
	})
	if err != nil {
		return Slot{}, "", err
	}
	return slot, name, nil
}

// RemoveMedia deletes a slot directory and returns its number to the free
// pool. Removing a number that is not active is a no-op.
func (r *Registry) RemoveMedia(ctx context.Context, userID, project string, number int) error {
	if number <= 0 {
		return services.Wrap(services.ErrValidation, "mediaslot", "remove media",
			fmt.Sprintf("invalid media number %d", number), nil)
	}
	return r.locks.With(ctx, lockKey(userID, project), func() error {
		ix, _, err := r.load(userID, project)
		if err != nil {
			return err
		}
		dir := filepath.Join(r.layout.MediaRoot(userID, project), SlotID(number))
		if err := os.RemoveAll(dir); err != nil {
			return services.Wrap(services.ErrStorage, "mediaslot", "remove media", "remove slot directory", err)
		}
		if !ix.IsActive(number) {
			return nil
		}
		if err := r.save(userID, project, ix.Release(number)); err != nil {
			return err
		}
		r.metrics.MediaSlotsReleased.Inc()
		r.logger.Info("media slot released",
			logging.String(logging.FieldEventType, "media_slot_released"),
			logging.String(logging.FieldProject, project),
			logging.String(logging.FieldMediaID, SlotID(number)),
		)
		return nil
	})
}

// Rebuild discards media-index.json and bootstraps it again from the slot
// directories on disk.
func (r *Registry) Rebuild(ctx context.Context, userID, project string) (Index, error) {
	var ix Index
	err := r.locks.With(ctx, lockKey(userID, project), func() error {
		existing, err := r.scanSlots(userID, project)
		if err != nil {
			return err
		}
		ix = Bootstrap(existing)
		return r.save(userID, project, ix)
	})
	return ix, err
}
