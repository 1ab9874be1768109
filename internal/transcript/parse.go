package transcript

import (
	"strconv"
	"strings"
	"time"
)

type lineRule func(p *parser, line string)

// sectionRules maps each section name to the rule that consumes its lines.
// Lines before the first marker, and lines of unknown sections, are ignored.
var sectionRules = map[string]lineRule{
	sectionHeader:     (*parser).headerLine,
	sectionSpeakers:   (*parser).speakerLine,
	sectionTranscript: (*parser).transcriptLine,
	sectionMetadata:   (*parser).metadataLine,
}

type parser struct {
	snap        Snapshot
	rule        lineRule
	transcript  []string
	sawMetadata bool
}

// Parse reconstructs a snapshot from rendered text. It never fails: malformed
// lines degrade to plain blocks or are skipped. Byte-order marks and carriage
// returns are stripped first.
func Parse(text string) Snapshot {
	text = strings.ReplaceAll(text, ByteOrderMark, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	p := &parser{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if section, ok := sectionMarker(line); ok {
			p.flushTranscript()
			p.rule = sectionRules[section]
			if section == sectionMetadata {
				p.sawMetadata = true
			}
			continue
		}
		if p.rule != nil {
			p.rule(p, line)
		}
	}
	p.flushTranscript()

	if !p.sawMetadata {
		p.snap.Recount()
	}
	return p.snap
}

func sectionMarker(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 8 || !strings.HasPrefix(trimmed, "=== ") || !strings.HasSuffix(trimmed, " ===") {
		return "", false
	}
	return strings.TrimSpace(trimmed[4 : len(trimmed)-4]), true
}

func (p *parser) headerLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "- ") {
		p.mediaLine(strings.TrimSpace(trimmed[2:]))
		return
	}
	key, value, ok := strings.Cut(trimmed, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "Project":
		p.snap.ProjectName = value
	case "Transcription":
		p.snap.Title = value
	case "Date":
		if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
			p.snap.Date = parsed.UTC()
		}
	case "Version":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			p.snap.Version = n
		}
	}
}

func (p *parser) mediaLine(entry string) {
	name, kind := entry, MediaLocal
	if open := strings.LastIndex(entry, " ("); open >= 0 && strings.HasSuffix(entry, ")") {
		label := entry[open+2 : len(entry)-1]
		switch MediaKind(label) {
		case MediaExternal:
			name, kind = entry[:open], MediaExternal
		case MediaLocal, "current":
			name = entry[:open]
		}
	}
	ref := MediaRef{Name: name, Kind: kind}
	if kind == MediaExternal {
		ref.URL = name
	}
	p.snap.Media = append(p.snap.Media, ref)
}

func (p *parser) speakerLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	code, rest, ok := strings.Cut(trimmed, ":")
	if !ok {
		return
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	rest = strings.TrimSpace(rest)
	speaker := Speaker{Code: code, Name: rest}
	if strings.HasSuffix(rest, ")") {
		if open := strings.LastIndex(rest, " ("); open >= 0 {
			speaker.Name = strings.TrimSpace(rest[:open])
			speaker.Description = strings.TrimSpace(rest[open+2 : len(rest)-1])
		} else if strings.HasPrefix(rest, "(") {
			speaker.Name = ""
			speaker.Description = strings.TrimSpace(rest[1 : len(rest)-1])
		}
	}
	p.snap.Speakers = append(p.snap.Speakers, speaker)
}

func (p *parser) transcriptLine(line string) {
	p.transcript = append(p.transcript, line)
}

// flushTranscript converts buffered transcript lines into blocks. A single
// trailing blank line is the separator before the next section, not a block.
func (p *parser) flushTranscript() {
	lines := p.transcript
	p.transcript = nil
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == NoContentMarker:
			continue
		case trimmed == "":
			p.snap.Blocks = append(p.snap.Blocks, Block{})
		default:
			p.snap.Blocks = append(p.snap.Blocks, parseBlockLine(line))
		}
	}
}

func (p *parser) metadataLine(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	number := func() int {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	switch strings.TrimSpace(key) {
	case "Total Words":
		p.snap.Counts.Words = number()
	case "Total Blocks":
		p.snap.Counts.Blocks = number()
	case "Total Speakers":
		p.snap.Counts.Speakers = number()
	case "Created From":
		p.snap.Source = value
	}
}

func parseBlockLine(line string) Block {
	if block, ok := parseTagged(line); ok {
		return block
	}
	return Block{Text: strings.TrimSpace(line)}
}

// parseTagged matches "[HH:MM:SS][ ][[CODE]]:[ ]text". At least the colon
// must be present; a bare leading colon marks escaped plain text.
func parseTagged(line string) (Block, bool) {
	var block Block
	rest := line
	if len(rest) >= 8 && isClock(rest[:8]) {
		block.Timestamp = rest[:8]
		rest = rest[8:]
	}
	rest = strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Block{}, false
		}
		block.Speaker = strings.TrimSpace(rest[1:end])
		rest = strings.TrimLeft(rest[end+1:], " \t")
	}
	if !strings.HasPrefix(rest, ":") {
		return Block{}, false
	}
	block.Text = strings.TrimPrefix(rest[1:], " ")
	return block, true
}

func isClock(value string) bool {
	if len(value) != 8 || value[2] != ':' || value[5] != ':' {
		return false
	}
	for _, i := range [...]int{0, 1, 3, 4, 6, 7} {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
