// Package sessions stores the live working copy of a transcription slot and
// its capped autosave trail.
//
// A slot is identified by a media id and a 1-based transcription number. Its
// current.txt is overwritten on every save; trail files are numbered
// independently of transcription versions.
package sessions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"quill/internal/fileutil"
	"quill/internal/keylock"
	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/metrics"
	"quill/internal/retention"
	"quill/internal/services"
	"quill/internal/transcript"
)

const (
	component = "sessions"
	// SourceLabel is written as the provenance of session documents.
	SourceLabel = "Live Editor Session"
	// DefaultBackupCap bounds a slot's trail when no cap is configured.
	DefaultBackupCap = 20
)

// Options tunes trail size and history parsing.
type Options struct {
	BackupCap      int
	HistoryWorkers int
}

// Metadata summarizes a slot's working copy.
type Metadata struct {
	MediaID             string    `json:"mediaId"`
	TranscriptionNumber int       `json:"transcriptionNumber"`
	LastSaved           time.Time `json:"lastSaved"`
	WordCount           int       `json:"wordCount"`
	BlockCount          int       `json:"blockCount"`
	SpeakerCount        int       `json:"speakerCount"`
}

// Service manages live sessions under a data root.
type Service struct {
	layout    layout.Layout
	locks     *keylock.Locker
	retention *retention.Manager
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New builds a Service.
func New(l layout.Layout, locks *keylock.Locker, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.BackupCap <= 0 {
		opts.BackupCap = DefaultBackupCap
	}
	if opts.HistoryWorkers <= 0 {
		opts.HistoryWorkers = 4
	}
	return &Service{
		layout:    l,
		locks:     locks,
		retention: retention.New(nil, logger, m),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, component),
		metrics:   m,
		now:       time.Now,
	}
}

func lockKey(mediaID string, slot int) string {
	return "session:" + mediaID + "/" + strconv.Itoa(slot)
}

func checkSlot(operation, mediaID string, slot int) error {
	if strings.TrimSpace(mediaID) == "" {
		return services.Wrap(services.ErrValidation, component, operation, "media id is required", nil)
	}
	if slot < 1 {
		return services.Wrap(services.ErrValidation, component, operation,
			fmt.Sprintf("transcription number must be at least 1, got %d", slot), nil)
	}
	return nil
}

// document fills the session header of snap.
func document(mediaID string, slot, version int, at time.Time, snap transcript.Snapshot) transcript.Snapshot {
	if strings.TrimSpace(snap.Title) == "" {
		snap.Title = "Transcription " + strconv.Itoa(slot)
	}
	snap.Date = at
	snap.Version = version
	snap.Source = SourceLabel
	if len(snap.Media) == 0 {
		snap.Media = []transcript.MediaRef{{Name: mediaID, Kind: transcript.MediaLocal}}
	}
	snap.Recount()
	return snap
}

// Save overwrites the slot's working copy and its metadata.json.
func (s *Service) Save(ctx context.Context, mediaID string, slot int, snap transcript.Snapshot) (Metadata, error) {
	if err := checkSlot("save", mediaID, slot); err != nil {
		return Metadata{}, err
	}
	if err := transcript.Validate(snap); err != nil {
		return Metadata{}, services.Wrap(services.ErrValidation, component, "save", "invalid snapshot", err)
	}
	var meta Metadata
	err := s.locks.With(ctx, lockKey(mediaID, slot), func() error {
		var err error
		meta, err = s.writeCurrent(mediaID, slot, document(mediaID, slot, 0, s.now().UTC(), snap))
		return err
	})
	if err != nil {
		return Metadata{}, err
	}
	s.metrics.SessionSaves.Inc()
	s.logger.Debug("session saved",
		logging.String(logging.FieldEventType, "session_saved"),
		logging.String(logging.FieldMediaID, mediaID),
		logging.Int(logging.FieldSlot, slot),
		logging.Int("words", meta.WordCount),
	)
	return meta, nil
}

// writeCurrent stages current.txt and metadata.json before renaming either,
// and renames current.txt last, so a failure leaves the working copy as it was.
func (s *Service) writeCurrent(mediaID string, slot int, doc transcript.Snapshot) (Metadata, error) {
	dir := s.layout.SessionDir(mediaID, slot)
	currentPath := filepath.Join(dir, layout.CurrentFile)
	metaPath := filepath.Join(dir, layout.MetadataFile)
	meta := Metadata{
		MediaID:             mediaID,
		TranscriptionNumber: slot,
		LastSaved:           doc.Date,
		WordCount:           doc.Counts.Words,
		BlockCount:          doc.Counts.Blocks,
		SpeakerCount:        doc.Counts.Speakers,
	}

	currentTmp, err := fileutil.StageFile(currentPath, []byte(transcript.Render(doc)), 0o644)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrStorage, component, "save", "stage current copy", err)
	}
	metaTmp, err := fileutil.StageJSON(metaPath, meta)
	if err != nil {
		_ = os.Remove(currentTmp)
		return Metadata{}, services.Wrap(services.ErrStorage, component, "save", "stage session metadata", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		_ = os.Remove(metaTmp)
		_ = os.Remove(currentTmp)
		return Metadata{}, services.Wrap(services.ErrStorage, component, "save", "write session metadata", err)
	}
	if err := os.Rename(currentTmp, currentPath); err != nil {
		_ = os.Remove(currentTmp)
		return Metadata{}, services.Wrap(services.ErrStorage, component, "save", "write current copy", err)
	}
	return meta, nil
}

// Load returns the slot's working copy. A slot that was never saved yields
// an empty snapshot.
func (s *Service) Load(ctx context.Context, mediaID string, slot int) (transcript.Snapshot, error) {
	if err := checkSlot("load", mediaID, slot); err != nil {
		return transcript.Snapshot{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.layout.SessionDir(mediaID, slot), layout.CurrentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return transcript.Snapshot{}, nil
	}
	if err != nil {
		return transcript.Snapshot{}, services.Wrap(services.ErrStorage, component, "load", "read current copy", err)
	}
	return transcript.Parse(string(data)), nil
}

// SlotInfo describes one slot of a media item. Metadata is nil when the slot
// directory exists without a readable metadata.json.
type SlotInfo struct {
	Number   int
	Metadata *Metadata
}

// List enumerates the slots of a media item in number order.
func (s *Service) List(ctx context.Context, mediaID string) ([]SlotInfo, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "list", "media id is required", nil)
	}
	root := s.layout.SessionMediaDir(mediaID)
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []SlotInfo{}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "list", "read session directory", err)
	}
	slots := make([]SlotInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		number, ok := layout.ParseSlotDir(entry.Name())
		if !ok {
			continue
		}
		info := SlotInfo{Number: number}
		var meta Metadata
		found, err := fileutil.ReadJSON(filepath.Join(root, entry.Name(), layout.MetadataFile), &meta)
		switch {
		case err != nil:
			logging.WarnWithContext(s.logger, "session metadata unreadable", "session_metadata_invalid",
				logging.String(logging.FieldMediaID, mediaID),
				logging.Int(logging.FieldSlot, number),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the next save rewrites metadata.json"),
				logging.String(logging.FieldImpact, "slot listed without counts"),
			)
		case found:
			info.Metadata = &meta
		}
		slots = append(slots, info)
	}
	slices.SortFunc(slots, func(a, b SlotInfo) int { return cmp.Compare(a.Number, b.Number) })
	return slots, nil
}
