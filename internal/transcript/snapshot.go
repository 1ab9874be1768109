package transcript

import (
	"strings"
	"time"
)

// MediaKind distinguishes uploaded media from externally hosted links.
type MediaKind string

const (
	MediaLocal    MediaKind = "local"
	MediaExternal MediaKind = "external"
)

// MediaRef names one media file attached to the transcription.
type MediaRef struct {
	Name string
	URL  string
	Kind MediaKind
}

// Speaker maps a short speaker code to its display name.
type Speaker struct {
	Code        string
	Name        string
	Description string
}

// Block is one line of transcript text. Timestamp uses HH:MM:SS. A block with
// no timestamp, speaker, or text is an explicit empty line kept by the editor.
type Block struct {
	Timestamp string
	Speaker   string
	Text      string
}

// IsEmpty reports whether the block renders as a blank line.
func (b Block) IsEmpty() bool {
	return strings.TrimSpace(b.Timestamp) == "" && strings.TrimSpace(b.Speaker) == "" && b.Text == ""
}

// Counts are the derived counters written to the METADATA section.
type Counts struct {
	Words    int
	Blocks   int
	Speakers int
}

// Snapshot is the state of a transcription at one point in time.
type Snapshot struct {
	ProjectName string
	Title       string
	Date        time.Time
	// Version is the backup version number; zero renders as CURRENT.
	Version  int
	Media    []MediaRef
	Speakers []Speaker
	Blocks   []Block
	Counts   Counts
	// Source is an optional provenance note written as "Created From".
	Source string
}

// CountsOf derives counters from a block sequence. The speaker count is the
// number of distinct speaker codes referenced by blocks.
func CountsOf(blocks []Block) Counts {
	counts := Counts{Blocks: len(blocks)}
	seen := make(map[string]struct{})
	for _, block := range blocks {
		counts.Words += len(strings.Fields(block.Text))
		if code := strings.TrimSpace(block.Speaker); code != "" {
			seen[code] = struct{}{}
		}
	}
	counts.Speakers = len(seen)
	return counts
}

// Recount refreshes Counts from the current blocks.
func (s *Snapshot) Recount() {
	if s == nil {
		return
	}
	s.Counts = CountsOf(s.Blocks)
}

// IsEmpty reports whether the snapshot carries no blocks and no speakers.
func (s Snapshot) IsEmpty() bool {
	return len(s.Blocks) == 0 && len(s.Speakers) == 0
}
