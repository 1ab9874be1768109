package versions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quill/internal/fileutil"
	"quill/internal/keylock"
	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/metrics"
	"quill/internal/retention"
	"quill/internal/services"
	"quill/internal/store"
	"quill/internal/transcript"
)

const component = "versions"

// Repository is the persistence the version service depends on.
type Repository interface {
	retention.RecordPruner

	GetTranscription(ctx context.Context, id string) (*store.Transcription, error)
	ProjectNameFor(ctx context.Context, transcriptionID string) (string, error)
	LinkedMedia(ctx context.Context, transcriptionID string) ([]*store.MediaFile, error)
	RecordVersion(ctx context.Context, id string, version int, at time.Time) error
	SetCurrentVersion(ctx context.Context, id string, version int) error

	LatestBackupVersion(ctx context.Context, transcriptionID string) (int, error)
	InsertBackup(ctx context.Context, b *store.Backup) error
	DeleteBackup(ctx context.Context, id string) (bool, error)
	GetBackup(ctx context.Context, id string) (*store.Backup, error)
	BackupByVersion(ctx context.Context, transcriptionID string, version int) (*store.Backup, error)
	BackupsBetween(ctx context.Context, transcriptionID string, from, to time.Time) ([]*store.Backup, error)
	BackupsForTranscription(ctx context.Context, transcriptionID string, limit int) ([]*store.Backup, error)
}

// Options tunes retention and listing.
type Options struct {
	KeepCount    int
	HistoryLimit int
	AutoPrune    bool
}

// Service creates and reads transcription versions.
type Service struct {
	repo      Repository
	layout    layout.Layout
	locks     *keylock.Locker
	retention *retention.Manager
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New builds a Service.
func New(repo Repository, l layout.Layout, locks *keylock.Locker, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	return &Service{
		repo:      repo,
		layout:    l,
		locks:     locks,
		retention: retention.New(repo, logger, m),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, component),
		metrics:   m,
		now:       time.Now,
	}
}

func lockKey(transcriptionID string) string {
	return "transcription:" + transcriptionID
}

// CreateVersion renders snap as the next version of a transcription. The
// header is filled from the transcription's title, project, and linked media;
// counts are recomputed from the blocks.
func (s *Service) CreateVersion(ctx context.Context, userID, transcriptionID string, snap transcript.Snapshot) (*store.Backup, error) {
	start := time.Now()
	defer s.metrics.ObserveSince("create_version", start)

	if err := transcript.Validate(snap); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "create version", "invalid snapshot", err)
	}
	tr, err := s.authorize(ctx, userID, transcriptionID, true)
	if err != nil {
		return nil, err
	}

	var backup *store.Backup
	err = s.locks.With(ctx, lockKey(transcriptionID), func() error {
		var err error
		backup, err = s.createLocked(ctx, tr, snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.BackupsCreated.Inc()
	return backup, nil
}

func (s *Service) createLocked(ctx context.Context, tr *store.Transcription, snap transcript.Snapshot) (*store.Backup, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldTranscriptionID, tr.ID))

	latest, err := s.repo.LatestBackupVersion(ctx, tr.ID)
	if err != nil {
		s.metrics.BackupFailures.WithLabelValues("allocate").Inc()
		return nil, services.Wrap(services.ErrStorage, component, "create version", "read latest version", err)
	}
	version := latest + 1
	now := s.now().UTC()

	project, media, err := s.headerContext(ctx, tr.ID)
	if err != nil {
		s.metrics.BackupFailures.WithLabelValues("context").Inc()
		return nil, err
	}
	snap.ProjectName = project
	snap.Title = tr.Title
	snap.Date = now
	snap.Version = version
	if len(media) > 0 {
		snap.Media = media
	}
	snap.Recount()
	text := transcript.Render(snap)

	primary := ""
	if len(snap.Media) > 0 {
		primary = snap.Media[0].Name
	}
	dir := s.layout.BackupDir(tr.UserID, project, primary, tr.ID)
	finalPath := filepath.Join(dir, layout.BackupFileName(version, now))

	tmpPath, err := fileutil.StageFile(finalPath, []byte(text), 0o644)
	if err != nil {
		s.metrics.BackupFailures.WithLabelValues("write").Inc()
		return nil, services.Wrap(services.ErrStorage, component, "create version", "stage version file", err)
	}

	backup := &store.Backup{
		TranscriptionID: tr.ID,
		Version:         version,
		FilePath:        finalPath,
		FileSize:        int64(len(text)),
		BlockCount:      snap.Counts.Blocks,
		SpeakerCount:    snap.Counts.Speakers,
		WordCount:       snap.Counts.Words,
		ChangeSummary:   fmt.Sprintf("Backup v%d created", version),
		CreatedAt:       now,
	}
	if err := s.repo.InsertBackup(ctx, backup); err != nil {
		_ = os.Remove(tmpPath)
		s.metrics.BackupFailures.WithLabelValues("record").Inc()
		return nil, services.Wrap(services.ErrStorage, component, "create version", "insert version record", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		s.metrics.BackupFailures.WithLabelValues("commit").Inc()
		_ = os.Remove(tmpPath)
		if _, delErr := s.repo.DeleteBackup(ctx, backup.ID); delErr != nil {
			logger.Error("version record left without file",
				logging.String(logging.FieldEventType, "version_orphan_record"),
				logging.String(logging.FieldBackupID, backup.ID),
				logging.Int(logging.FieldVersion, version),
				logging.String(logging.FieldErrorHint, "delete the record or restore the file by hand"),
				logging.Error(delErr),
			)
			return nil, services.Wrap(services.ErrConsistency, component, "create version",
				fmt.Sprintf("version %d record %s has no file", version, backup.ID), err)
		}
		return nil, services.Wrap(services.ErrStorage, component, "create version", "commit version file", err)
	}

	if err := s.repo.RecordVersion(ctx, tr.ID, version, now); err != nil {
		logging.WarnWithContext(logger, "current version not advanced", "current_version_stale",
			logging.Int(logging.FieldVersion, version),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next backup or restore updates it again"),
			logging.String(logging.FieldImpact, "transcription lists an older current version"),
		)
	}

	logger.Info("version created",
		logging.String(logging.FieldEventType, "version_created"),
		logging.String(logging.FieldBackupID, backup.ID),
		logging.Int(logging.FieldVersion, version),
		logging.Int64("size", backup.FileSize),
		logging.Int("words", backup.WordCount),
	)

	if s.opts.AutoPrune && s.opts.KeepCount > 0 {
		if _, err := s.retention.Prune(ctx, tr.ID, s.opts.KeepCount); err != nil {
			logging.WarnWithContext(logger, "automatic prune failed", "auto_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run backup cleanup manually"),
				logging.String(logging.FieldImpact, "more versions than keep_count remain"),
			)
		}
	}
	s.refreshSummary(ctx, logger, tr.ID, dir)
	return backup, nil
}

// headerContext resolves the project name and linked media of a
// transcription, primary media first.
func (s *Service) headerContext(ctx context.Context, transcriptionID string) (string, []transcript.MediaRef, error) {
	project, err := s.repo.ProjectNameFor(ctx, transcriptionID)
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, component, "create version", "resolve project", err)
	}
	linked, err := s.repo.LinkedMedia(ctx, transcriptionID)
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, component, "create version", "resolve media", err)
	}
	refs := make([]transcript.MediaRef, 0, len(linked))
	for _, m := range linked {
		kind := transcript.MediaLocal
		if strings.EqualFold(m.Kind, string(transcript.MediaExternal)) {
			kind = transcript.MediaExternal
		}
		refs = append(refs, transcript.MediaRef{Name: m.FileName, URL: m.URL, Kind: kind})
	}
	return project, refs, nil
}

// authorize loads a transcription and checks that userID owns it. An empty
// userID skips the ownership check for trusted local callers.
func (s *Service) authorize(ctx context.Context, userID, transcriptionID string, requireActive bool) (*store.Transcription, error) {
	if strings.TrimSpace(transcriptionID) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "authorize", "transcription id is required", nil)
	}
	tr, err := s.repo.GetTranscription(ctx, transcriptionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "authorize", "load transcription", err)
	}
	if tr == nil || (requireActive && !tr.IsActive) {
		return nil, services.Wrap(services.ErrNotFound, component, "authorize",
			fmt.Sprintf("transcription %s", transcriptionID), nil)
	}
	if userID != "" && tr.UserID != userID {
		return nil, services.Wrap(services.ErrAccessDenied, component, "authorize",
			fmt.Sprintf("transcription %s belongs to another user", transcriptionID), nil)
	}
	return tr, nil
}
