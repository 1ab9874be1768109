package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxSegmentBytes is the longest path segment most filesystems accept.
const MaxSegmentBytes = 255

// SanitizeName converts a display name into a single path segment. The
// characters <>:"/\|?* and control characters become underscores, runs of
// whitespace collapse into one underscore, and the result is NFC-normalized
// and truncated to MaxSegmentBytes on a rune boundary. Empty input, or input
// that reduces to dots, yields fallback.
func SanitizeName(name, fallback string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
		inSpace = false
	}
	out := truncateBytes(b.String(), MaxSegmentBytes)
	if strings.Trim(out, ".") == "" {
		return fallback
	}
	return out
}

// SanitizeToken converts a string to a lowercase ASCII token. Letters are
// lowercased, digits and hyphens/underscores are kept, everything else becomes
// an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

func truncateBytes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
