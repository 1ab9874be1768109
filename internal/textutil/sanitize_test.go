package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Interview", "Interview"},
		{"reserved characters", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"whitespace runs", "  court   hearing\tday 2 ", "court_hearing_day_2"},
		{"hebrew", "ראיון ראשון", "ראיון_ראשון"},
		{"empty", "   ", "fallback"},
		{"dots only", "..", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in, "fallback"); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeNameNormalizesNFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"
	if SanitizeName(decomposed, "") != SanitizeName(composed, "") {
		t.Fatalf("expected NFC forms to match: %q vs %q", SanitizeName(decomposed, ""), SanitizeName(composed, ""))
	}
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ש", 200)
	got := SanitizeName(long, "")
	if len(got) > MaxSegmentBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxSegmentBytes, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Media-1", "media-1"},
		{"user 42", "user_42"},
		{"", "unknown"},
		{"***", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
