package store

import "time"

// Project groups transcriptions and media of one user.
type Project struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Transcription is the durable identity of a document that accumulates
// versions. CurrentVersion points at the version last created or restored.
type Transcription struct {
	ID             string
	UserID         string
	ProjectID      string
	Title          string
	CurrentVersion int
	LastBackupAt   *time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MediaFile is an uploaded or linked media item. SlotID is the project media
// slot ("media-3") for files stored under a project.
type MediaFile struct {
	ID        string
	UserID    string
	ProjectID string
	SlotID    string
	FileName  string
	URL       string
	Kind      string
	IsPrimary bool
	CreatedAt time.Time
}

// Backup is one immutable version record of a transcription.
type Backup struct {
	ID              string
	TranscriptionID string
	Version         int
	FilePath        string
	FileSize        int64
	BlockCount      int
	SpeakerCount    int
	WordCount       int
	ChangeSummary   string
	CreatedAt       time.Time
}

// Stats summarizes row counts for status reporting.
type Stats struct {
	Projects       int
	Transcriptions int
	Backups        int
	MediaFiles     int
}
