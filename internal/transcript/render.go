package transcript

import (
	"strconv"
	"strings"
	"time"
)

const (
	// ByteOrderMark prefixes every rendered document.
	ByteOrderMark = "\uFEFF"
	// NoContentMarker stands in for an empty transcript section.
	NoContentMarker = "(No content)"
	// CurrentVersionLabel is written for working copies that carry no version.
	CurrentVersionLabel = "CURRENT"

	sectionHeader     = "TRANSCRIPTION BACKUP"
	sectionSpeakers   = "SPEAKERS"
	sectionTranscript = "TRANSCRIPT"
	sectionMetadata   = "METADATA"

	dateLayout = "2006-01-02T15:04:05.000Z07:00"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func marker(section string) string {
	return "=== " + section + " ==="
}

// FormatDate renders t the way the header Date line expects.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Render serializes a snapshot into the backup text format. Counters are
// recomputed from the blocks so the METADATA section always matches them.
func Render(s Snapshot) string {
	lines := make([]string, 0, len(s.Blocks)+len(s.Speakers)+len(s.Media)+16)

	lines = append(lines, marker(sectionHeader))
	if project := flatten(s.ProjectName); project != "" {
		lines = append(lines, "Project: "+project)
	}
	lines = append(lines,
		"Transcription: "+flatten(s.Title),
		"Date: "+FormatDate(s.Date),
		"Version: "+versionLabel(s.Version),
	)
	if len(s.Media) > 0 {
		lines = append(lines, "Media Files:")
		for _, media := range s.Media {
			lines = append(lines, "  - "+renderMedia(media))
		}
	}
	lines = append(lines, "")

	lines = append(lines, marker(sectionSpeakers))
	for _, speaker := range s.Speakers {
		lines = append(lines, renderSpeaker(speaker))
	}
	lines = append(lines, "")

	lines = append(lines, marker(sectionTranscript))
	if len(s.Blocks) == 0 {
		lines = append(lines, NoContentMarker)
	}
	for _, block := range s.Blocks {
		lines = append(lines, renderBlock(block))
	}
	lines = append(lines, "")

	counts := CountsOf(s.Blocks)
	lines = append(lines,
		marker(sectionMetadata),
		"Total Words: "+strconv.Itoa(counts.Words),
		"Total Blocks: "+strconv.Itoa(counts.Blocks),
		"Total Speakers: "+strconv.Itoa(counts.Speakers),
	)
	if source := flatten(s.Source); source != "" {
		lines = append(lines, "Created From: "+source)
	}

	return ByteOrderMark + strings.Join(lines, "\n")
}

func versionLabel(version int) string {
	if version <= 0 {
		return CurrentVersionLabel
	}
	return strconv.Itoa(version)
}

func renderMedia(media MediaRef) string {
	kind := media.Kind
	if kind != MediaExternal {
		kind = MediaLocal
	}
	name := flatten(media.Name)
	if kind == MediaExternal && strings.TrimSpace(media.URL) != "" {
		name = flatten(media.URL)
	}
	return name + " (" + string(kind) + ")"
}

func renderSpeaker(speaker Speaker) string {
	line := strings.TrimSpace(speaker.Code) + ": " + flatten(speaker.Name)
	desc := flatten(speaker.Description)
	// A name ending in ")" would be read back as a description, so it gets
	// an explicit empty one.
	if desc != "" || strings.HasSuffix(line, ")") {
		line += " (" + desc + ")"
	}
	return line
}

func renderBlock(block Block) string {
	text := lineBreaks.Replace(block.Text)
	timestamp := strings.TrimSpace(block.Timestamp)
	speaker := strings.TrimSpace(block.Speaker)

	if timestamp == "" && speaker == "" {
		if text == "" {
			return ""
		}
		if ambiguousPlain(text) {
			return ": " + text
		}
		return text
	}

	var b strings.Builder
	b.Grow(len(timestamp) + len(speaker) + len(text) + 5)
	b.WriteString(timestamp)
	if speaker != "" {
		if timestamp != "" {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(speaker)
		b.WriteByte(']')
	}
	b.WriteString(": ")
	b.WriteString(text)
	return b.String()
}

// ambiguousPlain reports whether untagged text written verbatim would parse
// back as something else.
func ambiguousPlain(text string) bool {
	switch {
	case text != strings.TrimSpace(text):
		return true
	case text == NoContentMarker:
		return true
	case strings.HasPrefix(text, ":"), strings.HasPrefix(text, "==="):
		return true
	}
	_, tagged := parseTagged(text)
	return tagged
}

func flatten(value string) string {
	return strings.TrimSpace(lineBreaks.Replace(value))
}
