package transcript

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func sampleSnapshot() Snapshot {
	s := Snapshot{
		Title:   "Interview",
		Date:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Version: 3,
		Speakers: []Speaker{
			{Code: "J", Name: "Judge"},
			{Code: "M", Name: "Moshe", Description: "witness"},
		},
		Blocks: []Block{
			{Timestamp: "00:00:00", Speaker: "J", Text: "שלום"},
			{},
			{Timestamp: "00:00:30", Speaker: "M", Text: "תודה"},
		},
	}
	s.Recount()
	return s
}

func TestRenderGolden(t *testing.T) {
	got := Render(sampleSnapshot())
	want := "\uFEFF=== TRANSCRIPTION BACKUP ===\n" +
		"Transcription: Interview\n" +
		"Date: 2024-03-01T10:00:00.000Z\n" +
		"Version: 3\n" +
		"\n" +
		"=== SPEAKERS ===\n" +
		"J: Judge\n" +
		"M: Moshe (witness)\n" +
		"\n" +
		"=== TRANSCRIPT ===\n" +
		"00:00:00 [J]: שלום\n" +
		"\n" +
		"00:00:30 [M]: תודה\n" +
		"\n" +
		"=== METADATA ===\n" +
		"Total Words: 2\n" +
		"Total Blocks: 3\n" +
		"Total Speakers: 2"
	if got != want {
		t.Fatalf("unexpected render:\n%q\nwant:\n%q", got, want)
	}
}

func TestParseHebrewScenario(t *testing.T) {
	parsed := Parse(Render(sampleSnapshot()))
	if len(parsed.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %#v", len(parsed.Blocks), parsed.Blocks)
	}
	if !parsed.Blocks[1].IsEmpty() {
		t.Fatalf("expected second block empty, got %#v", parsed.Blocks[1])
	}
	if parsed.Blocks[2].Speaker != "M" || parsed.Blocks[2].Text != "תודה" {
		t.Fatalf("unexpected third block %#v", parsed.Blocks[2])
	}
	want := Counts{Words: 2, Blocks: 3, Speakers: 2}
	if parsed.Counts != want {
		t.Fatalf("counts = %+v, want %+v", parsed.Counts, want)
	}
	if parsed.Version != 3 || parsed.Title != "Interview" {
		t.Fatalf("unexpected header %+v", parsed)
	}
}

func TestRoundTripPreservesContent(t *testing.T) {
	s := Snapshot{
		ProjectName: "Case 12",
		Title:       "Hearing",
		Date:        time.Date(2025, 7, 9, 8, 30, 15, 250_000_000, time.UTC),
		Version:     12,
		Media: []MediaRef{
			{Name: "hearing.mp3", Kind: MediaLocal},
			{Name: "stream", URL: "https://example.com/a.mp4", Kind: MediaExternal},
		},
		Speakers: []Speaker{
			{Code: "A", Name: "Alice (Jr.)"},
			{Code: "B", Name: "", Description: "unknown"},
			{Code: "C", Name: "Carol", Description: "clerk"},
		},
		Blocks: []Block{
			{Timestamp: "00:00:01", Speaker: "A", Text: "Hello there"},
			{Text: "free text without tags"},
			{Text: "12:00:00 [X]: looks tagged"},
			{Text: ": leading colon"},
			{Text: "=== TRANSCRIPT ==="},
			{Text: NoContentMarker},
			{Text: "  padded  "},
			{Text: "[note] plain bracket"},
			{Timestamp: "00:01:00", Text: "timestamp only"},
			{Speaker: "C", Text: "speaker only"},
			{Timestamp: "00:02:00", Speaker: "B"},
			{},
			{},
		},
		Source: "Live Editor Session",
	}
	s.Recount()

	parsed := Parse(Render(s))
	if !reflect.DeepEqual(parsed.Blocks, s.Blocks) {
		t.Fatalf("blocks mismatch:\n got %#v\nwant %#v", parsed.Blocks, s.Blocks)
	}
	if !reflect.DeepEqual(parsed.Speakers, s.Speakers) {
		t.Fatalf("speakers mismatch:\n got %#v\nwant %#v", parsed.Speakers, s.Speakers)
	}
	if parsed.Counts != s.Counts {
		t.Fatalf("counts = %+v, want %+v", parsed.Counts, s.Counts)
	}
	if !parsed.Date.Equal(s.Date) {
		t.Fatalf("date = %v, want %v", parsed.Date, s.Date)
	}
	if parsed.ProjectName != s.ProjectName || parsed.Source != s.Source {
		t.Fatalf("header mismatch: %+v", parsed)
	}
	if len(parsed.Media) != 2 || parsed.Media[1].Kind != MediaExternal || parsed.Media[1].URL != "https://example.com/a.mp4" {
		t.Fatalf("media mismatch: %#v", parsed.Media)
	}
}

func TestEmptyTranscriptRendersMarker(t *testing.T) {
	s := Snapshot{Title: "Empty", Date: time.Unix(0, 0)}
	out := Render(s)
	if !strings.Contains(out, "=== TRANSCRIPT ===\n"+NoContentMarker+"\n") {
		t.Fatalf("expected no-content marker, got %q", out)
	}
	for _, section := range []string{"=== SPEAKERS ===", "=== METADATA ==="} {
		if !strings.Contains(out, section) {
			t.Fatalf("expected %s in %q", section, out)
		}
	}
	parsed := Parse(out)
	if len(parsed.Blocks) != 0 {
		t.Fatalf("expected zero blocks, got %#v", parsed.Blocks)
	}
	if parsed.Counts != (Counts{}) {
		t.Fatalf("expected zero counts, got %+v", parsed.Counts)
	}
	if parsed.Version != 0 {
		t.Fatalf("expected CURRENT version, got %d", parsed.Version)
	}
}

func TestParseToleratesCRLFAndMissingMetadata(t *testing.T) {
	text := "\uFEFF=== TRANSCRIPTION BACKUP ===\r\nTranscription: T\r\n\r\n" +
		"=== TRANSCRIPT ===\r\n00:00:05 [J]: one two\r\nloose line\r\n"
	parsed := Parse(text)
	want := []Block{
		{Timestamp: "00:00:05", Speaker: "J", Text: "one two"},
		{Text: "loose line"},
	}
	if !reflect.DeepEqual(parsed.Blocks, want) {
		t.Fatalf("blocks = %#v, want %#v", parsed.Blocks, want)
	}
	if parsed.Counts != (Counts{Words: 4, Blocks: 2, Speakers: 1}) {
		t.Fatalf("expected recomputed counts, got %+v", parsed.Counts)
	}
}

func TestParseGarbageNeverFails(t *testing.T) {
	parsed := Parse("no markers here\n[[[\n:::")
	if len(parsed.Blocks) != 0 || len(parsed.Speakers) != 0 {
		t.Fatalf("expected lines outside sections to be ignored, got %+v", parsed)
	}
}

func TestRenderFlattensLineBreaks(t *testing.T) {
	s := Snapshot{Blocks: []Block{{Speaker: "J", Text: "first\nsecond\r\nthird"}}}
	parsed := Parse(Render(s))
	if got := parsed.Blocks[0].Text; got != "first second third" {
		t.Fatalf("text = %q", got)
	}
}

func TestParseTranscriptSection(t *testing.T) {
	doc := "=== TRANSCRIPT ===\n00:00:01 [A]: hi\n\n(No content)\nplain\n"
	want := []Block{{Timestamp: "00:00:01", Speaker: "A", Text: "hi"}, {}, {Text: "plain"}}
	if blocks := Parse(doc).Blocks; !reflect.DeepEqual(blocks, want) {
		t.Fatalf("blocks = %#v, want %#v", blocks, want)
	}
}

func TestMarkerLikeSpeakerCodeRejected(t *testing.T) {
	s := Snapshot{Speakers: []Speaker{{Code: "=== A", Name: "B ==="}, {Code: "C", Name: "Carol"}}}
	if err := Validate(s); err == nil {
		t.Fatal("expected validation error for a marker-like speaker code")
	}

	s.Speakers[0].Code = "A ==="
	if err := Validate(s); err != nil {
		t.Fatalf("trailing equals signs should be allowed: %v", err)
	}
	if got := Parse(Render(s)).Speakers; len(got) != 2 || got[0].Code != "A ===" || got[1].Code != "C" {
		t.Fatalf("speakers = %#v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		ok   bool
	}{
		{name: "valid", snap: sampleSnapshot(), ok: true},
		{name: "bad timestamp", snap: Snapshot{Blocks: []Block{{Timestamp: "1:00", Text: "x"}}}},
		{name: "speaker bracket", snap: Snapshot{Blocks: []Block{{Speaker: "A]", Text: "x"}}}},
		{name: "empty code", snap: Snapshot{Speakers: []Speaker{{Name: "Nobody"}}}},
		{name: "code colon", snap: Snapshot{Speakers: []Speaker{{Code: "A:B"}}}},
		{name: "description parens", snap: Snapshot{Speakers: []Speaker{{Code: "A", Description: "x (y"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.snap)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func FuzzPlainTextRoundTrip(f *testing.F) {
	for _, seed := range []string{"hello", ": x", "00:00:00 [A]: y", "  ", "=== METADATA ===", NoContentMarker, "[a]:", "שלום עולם"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, text string) {
		if text == "" || strings.ContainsAny(text, "\r\n") || strings.Contains(text, ByteOrderMark) {
			t.Skip()
		}
		s := Snapshot{Blocks: []Block{{Text: text}, {Speaker: "S", Text: text}}}
		parsed := Parse(Render(s))
		if !reflect.DeepEqual(parsed.Blocks, s.Blocks) {
			t.Fatalf("round trip of %q produced %#v", text, parsed.Blocks)
		}
	})
}
