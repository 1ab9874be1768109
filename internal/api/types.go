package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Speaker maps a speaker code to its display name.
type Speaker struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Block is one transcript line.
type Block struct {
	Timestamp string `json:"timestamp,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
}

// Media references a media file in a snapshot header.
type Media struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Kind string `json:"kind"`
}

// Counts mirrors the METADATA section of a document.
type Counts struct {
	Words    int `json:"words"`
	Blocks   int `json:"blocks"`
	Speakers int `json:"speakers"`
}

// Snapshot is the transcription payload exchanged with clients.
type Snapshot struct {
	ProjectName string    `json:"projectName,omitempty"`
	Title       string    `json:"title,omitempty"`
	Date        string    `json:"date,omitempty"`
	Version     string    `json:"version,omitempty"`
	Media       []Media   `json:"media,omitempty"`
	Speakers    []Speaker `json:"speakers"`
	Blocks      []Block   `json:"blocks"`
	Counts      *Counts   `json:"counts,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// Backup describes a transcription version record.
type Backup struct {
	ID              string `json:"id"`
	TranscriptionID string `json:"transcriptionId"`
	Version         int    `json:"version"`
	FileName        string `json:"fileName"`
	FilePath        string `json:"filePath"`
	FileSize        int64  `json:"fileSize"`
	BlockCount      int    `json:"blockCount"`
	SpeakerCount    int    `json:"speakerCount"`
	WordCount       int    `json:"wordCount"`
	ChangeSummary   string `json:"changeSummary,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// BackupResponse wraps a single version record.
type BackupResponse struct {
	Backup Backup `json:"backup"`
}

// BackupListResponse wraps a version history.
type BackupListResponse struct {
	TranscriptionID string   `json:"transcriptionId"`
	Backups         []Backup `json:"backups"`
}

// PreviewResponse carries a version record and its parsed content.
type PreviewResponse struct {
	Backup  Backup   `json:"backup"`
	Content Snapshot `json:"content"`
}

// CleanupResponse reports a retention pass.
type CleanupResponse struct {
	TranscriptionID string   `json:"transcriptionId"`
	Keep            int      `json:"keep"`
	Removed         int      `json:"removed"`
	DeletedFiles    []string `json:"deletedFiles"`
	MissingFiles    int      `json:"missingFiles"`
}

// Transcription describes a transcription row.
type Transcription struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	ProjectID      string `json:"projectId,omitempty"`
	Title          string `json:"title"`
	CurrentVersion int    `json:"currentVersion"`
	LastBackupAt   string `json:"lastBackupAt,omitempty"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// SessionMetadata summarizes a slot's working copy.
type SessionMetadata struct {
	MediaID             string `json:"mediaId"`
	TranscriptionNumber int    `json:"transcriptionNumber"`
	LastSaved           string `json:"lastSaved,omitempty"`
	WordCount           int    `json:"wordCount"`
	BlockCount          int    `json:"blockCount"`
	SpeakerCount        int    `json:"speakerCount"`
}

// SessionSlot is one entry of a session listing. Metadata fields are absent
// for slots that were never saved.
type SessionSlot struct {
	TranscriptionNumber int              `json:"transcriptionNumber"`
	Metadata            *SessionMetadata `json:"metadata,omitempty"`
}

// SessionListResponse lists the slots of a media item.
type SessionListResponse struct {
	MediaID string        `json:"mediaId"`
	Slots   []SessionSlot `json:"slots"`
}

// SessionResponse carries a slot's working copy.
type SessionResponse struct {
	MediaID             string   `json:"mediaId"`
	TranscriptionNumber int      `json:"transcriptionNumber"`
	Content             Snapshot `json:"content"`
}

// TrailFile is one autosave backup of a slot.
type TrailFile struct {
	FileName     string `json:"fileName"`
	Version      int    `json:"version"`
	Created      string `json:"created,omitempty"`
	Size         int64  `json:"size"`
	WordCount    int    `json:"wordCount"`
	BlockCount   int    `json:"blockCount"`
	SpeakerCount int    `json:"speakerCount"`
}

// SessionHistoryResponse lists a slot's trail newest first.
type SessionHistoryResponse struct {
	MediaID             string      `json:"mediaId"`
	TranscriptionNumber int         `json:"transcriptionNumber"`
	Backups             []TrailFile `json:"backups"`
}

// StoreStats carries row counts.
type StoreStats struct {
	Projects       int `json:"projects"`
	Transcriptions int `json:"transcriptions"`
	Backups        int `json:"backups"`
	MediaFiles     int `json:"mediaFiles"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	DatabasePath string      `json:"databasePath"`
	DataDir      string      `json:"dataDir"`
	LockFilePath string      `json:"lockFilePath"`
	Stats        *StoreStats `json:"stats,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
