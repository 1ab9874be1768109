package api

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quill/internal/retention"
	"quill/internal/sessions"
	"quill/internal/store"
	"quill/internal/transcript"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// DecodeSnapshot reads a JSON snapshot payload and converts it.
func DecodeSnapshot(r io.Reader) (transcript.Snapshot, error) {
	var payload Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return transcript.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return ToSnapshot(payload), nil
}

// ToSnapshot converts a client payload. Counts are recomputed from the
// blocks; header fields other than project, title, and media are ignored.
func ToSnapshot(payload Snapshot) transcript.Snapshot {
	snap := transcript.Snapshot{
		ProjectName: strings.TrimSpace(payload.ProjectName),
		Title:       strings.TrimSpace(payload.Title),
		Source:      strings.TrimSpace(payload.Source),
	}
	for _, m := range payload.Media {
		kind := transcript.MediaLocal
		if strings.EqualFold(strings.TrimSpace(m.Kind), string(transcript.MediaExternal)) {
			kind = transcript.MediaExternal
		}
		snap.Media = append(snap.Media, transcript.MediaRef{Name: m.Name, URL: m.URL, Kind: kind})
	}
	for _, sp := range payload.Speakers {
		snap.Speakers = append(snap.Speakers, transcript.Speaker{
			Code:        strings.TrimSpace(sp.Code),
			Name:        sp.Name,
			Description: sp.Description,
		})
	}
	for _, b := range payload.Blocks {
		snap.Blocks = append(snap.Blocks, transcript.Block{
			Timestamp: strings.TrimSpace(b.Timestamp),
			Speaker:   strings.TrimSpace(b.Speaker),
			Text:      b.Text,
		})
	}
	snap.Recount()
	return snap
}

// FromSnapshot converts a parsed snapshot to its API representation.
func FromSnapshot(s transcript.Snapshot) Snapshot {
	dto := Snapshot{
		ProjectName: s.ProjectName,
		Title:       s.Title,
		Date:        formatTime(s.Date),
		Version:     transcript.CurrentVersionLabel,
		Speakers:    make([]Speaker, 0, len(s.Speakers)),
		Blocks:      make([]Block, 0, len(s.Blocks)),
		Counts:      &Counts{Words: s.Counts.Words, Blocks: s.Counts.Blocks, Speakers: s.Counts.Speakers},
		Source:      s.Source,
	}
	if s.Version > 0 {
		dto.Version = strconv.Itoa(s.Version)
	}
	for _, m := range s.Media {
		dto.Media = append(dto.Media, Media{Name: m.Name, URL: m.URL, Kind: string(m.Kind)})
	}
	for _, sp := range s.Speakers {
		dto.Speakers = append(dto.Speakers, Speaker{Code: sp.Code, Name: sp.Name, Description: sp.Description})
	}
	for _, b := range s.Blocks {
		dto.Blocks = append(dto.Blocks, Block{Timestamp: b.Timestamp, Speaker: b.Speaker, Text: b.Text})
	}
	return dto
}

// FromBackup converts a version record.
func FromBackup(b *store.Backup) Backup {
	if b == nil {
		return Backup{}
	}
	return Backup{
		ID:              b.ID,
		TranscriptionID: b.TranscriptionID,
		Version:         b.Version,
		FileName:        filepath.Base(b.FilePath),
		FilePath:        b.FilePath,
		FileSize:        b.FileSize,
		BlockCount:      b.BlockCount,
		SpeakerCount:    b.SpeakerCount,
		WordCount:       b.WordCount,
		ChangeSummary:   b.ChangeSummary,
		CreatedAt:       formatTime(b.CreatedAt),
	}
}

// FromBackups converts a slice of version records.
func FromBackups(backups []*store.Backup) []Backup {
	out := make([]Backup, 0, len(backups))
	for _, b := range backups {
		out = append(out, FromBackup(b))
	}
	return out
}

// FromCleanup converts a retention result.
func FromCleanup(transcriptionID string, keep int, result retention.Result) CleanupResponse {
	deleted := result.DeletedPaths
	if deleted == nil {
		deleted = []string{}
	}
	return CleanupResponse{
		TranscriptionID: transcriptionID,
		Keep:            keep,
		Removed:         len(result.Removed),
		DeletedFiles:    deleted,
		MissingFiles:    result.MissingFiles,
	}
}

// FromTranscription converts a transcription row.
func FromTranscription(t *store.Transcription) Transcription {
	if t == nil {
		return Transcription{}
	}
	dto := Transcription{
		ID:             t.ID,
		UserID:         t.UserID,
		ProjectID:      t.ProjectID,
		Title:          t.Title,
		CurrentVersion: t.CurrentVersion,
		Active:         t.IsActive,
		CreatedAt:      formatTime(t.CreatedAt),
	}
	if t.LastBackupAt != nil {
		dto.LastBackupAt = formatTime(*t.LastBackupAt)
	}
	return dto
}

// FromSessionMetadata converts a slot summary.
func FromSessionMetadata(m sessions.Metadata) SessionMetadata {
	return SessionMetadata{
		MediaID:             m.MediaID,
		TranscriptionNumber: m.TranscriptionNumber,
		LastSaved:           formatTime(m.LastSaved),
		WordCount:           m.WordCount,
		BlockCount:          m.BlockCount,
		SpeakerCount:        m.SpeakerCount,
	}
}

// FromSlots converts a session listing.
func FromSlots(mediaID string, slots []sessions.SlotInfo) SessionListResponse {
	resp := SessionListResponse{MediaID: mediaID, Slots: make([]SessionSlot, 0, len(slots))}
	for _, slot := range slots {
		entry := SessionSlot{TranscriptionNumber: slot.Number}
		if slot.Metadata != nil {
			meta := FromSessionMetadata(*slot.Metadata)
			entry.Metadata = &meta
		}
		resp.Slots = append(resp.Slots, entry)
	}
	return resp
}

// FromTrailFile converts a session trail entry.
func FromTrailFile(f sessions.TrailFile) TrailFile {
	return TrailFile{
		FileName:     f.Name,
		Version:      f.Version,
		Created:      formatTime(f.Created),
		Size:         f.Size,
		WordCount:    f.Counts.Words,
		BlockCount:   f.Counts.Blocks,
		SpeakerCount: f.Counts.Speakers,
	}
}

// FromTrailFiles converts a session trail.
func FromTrailFiles(files []sessions.TrailFile) []TrailFile {
	out := make([]TrailFile, 0, len(files))
	for _, f := range files {
		out = append(out, FromTrailFile(f))
	}
	return out
}

// FromStats converts store row counts.
func FromStats(s store.Stats) *StoreStats {
	return &StoreStats{
		Projects:       s.Projects,
		Transcriptions: s.Transcriptions,
		Backups:        s.Backups,
		MediaFiles:     s.MediaFiles,
	}
}
