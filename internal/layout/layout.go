// Package layout maps users, projects, transcriptions, media, and live
// sessions onto directories under the data root.
//
//	<root>/users/user_<uid>/projects/<project>/transcriptions/<tid>/backups/
//	<root>/users/user_<uid>/projects/<project>/media/media-<n>/
//	<root>/users/user_<uid>/projects/<project>/media-index.json
//	<root>/users/user_<uid>/standalone_transcriptions/<media|no_media>/<tid>/backups/
//	<root>/live/sessions/<mediaId>/transcription_<n>/
//
// Every name segment is sanitized with textutil.SanitizeName, so callers may
// pass display names directly.
package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"quill/internal/textutil"
)

const (
	// MetadataFile summarizes a backup directory or a session slot.
	MetadataFile = "metadata.json"
	// MediaIndexFile tracks media slot numbers for a project.
	MediaIndexFile = "media-index.json"
	// CurrentFile is a live session's working copy.
	CurrentFile = "current.txt"
	// SessionBackupsDir holds a live session's timestamped trail.
	SessionBackupsDir = "backups"

	noMediaSegment      = "no_media"
	backupTimeLayout    = "2006-01-02T15-04-05"
	slotDirectoryPrefix = "transcription_"
)

var backupNamePattern = regexp.MustCompile(`^v([1-9][0-9]*)_([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}-[0-9]{2}-[0-9]{2})\.txt$`)

// Layout resolves paths under a data root.
type Layout struct {
	root string
}

// New returns a Layout rooted at dataDir.
func New(dataDir string) Layout {
	return Layout{root: filepath.Clean(dataDir)}
}

// Root returns the data directory.
func (l Layout) Root() string {
	return l.root
}

// UserDir is the per-user tree.
func (l Layout) UserDir(userID string) string {
	return filepath.Join(l.root, "users", "user_"+textutil.SanitizeName(userID, "unknown"))
}

// ProjectDir is the per-project tree of a user.
func (l Layout) ProjectDir(userID, project string) string {
	return filepath.Join(l.UserDir(userID), "projects", textutil.SanitizeName(project, "untitled"))
}

// BackupDir returns where version files of a transcription live. Project
// transcriptions nest under the project, the rest under their primary media
// name or no_media.
func (l Layout) BackupDir(userID, project, primaryMedia, transcriptionID string) string {
	tid := textutil.SanitizeName(transcriptionID, "unknown")
	if strings.TrimSpace(project) != "" {
		return filepath.Join(l.ProjectDir(userID, project), "transcriptions", tid, "backups")
	}
	mediaSegment := noMediaSegment
	if strings.TrimSpace(primaryMedia) != "" {
		mediaSegment = textutil.SanitizeName(primaryMedia, noMediaSegment)
	}
	return filepath.Join(l.UserDir(userID), "standalone_transcriptions", mediaSegment, tid, "backups")
}

// MediaRoot holds the numbered media slots of a project.
func (l Layout) MediaRoot(userID, project string) string {
	return filepath.Join(l.ProjectDir(userID, project), "media")
}

// MediaIndexPath is the project's media-index.json.
func (l Layout) MediaIndexPath(userID, project string) string {
	return filepath.Join(l.ProjectDir(userID, project), MediaIndexFile)
}

// SessionMediaDir holds every session slot for one media item.
func (l Layout) SessionMediaDir(mediaID string) string {
	return filepath.Join(l.root, "live", "sessions", textutil.SanitizeName(mediaID, "unknown"))
}

// SessionDir is the directory of one session slot.
func (l Layout) SessionDir(mediaID string, slot int) string {
	return filepath.Join(l.SessionMediaDir(mediaID), slotDirectoryPrefix+strconv.Itoa(slot))
}

// ParseSlotDir extracts the slot number from a session directory name.
func ParseSlotDir(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, slotDirectoryPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// BackupFileName names a version or trail file: v<n>_<UTC second stamp>.txt.
func BackupFileName(version int, at time.Time) string {
	return fmt.Sprintf("v%d_%s.txt", version, at.UTC().Format(backupTimeLayout))
}

// BackupName is a parsed backup file name.
type BackupName struct {
	Version int
	Stamp   string
	Time    time.Time
}

// ParseBackupFileName reports whether name is a well-formed backup file name
// and returns its parts. Names with path separators never match.
func ParseBackupFileName(name string) (BackupName, bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return BackupName{}, false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return BackupName{}, false
	}
	at, err := time.ParseInLocation(backupTimeLayout, m[2], time.UTC)
	if err != nil {
		return BackupName{}, false
	}
	return BackupName{Version: version, Stamp: m[2], Time: at}, true
}
