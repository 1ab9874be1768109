package main

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"quill/internal/transcript"
)

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func formatOptionalStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatStamp(*t)
}

// renderDocument renders snap for terminal output, without the byte order
// mark stored files carry.
func renderDocument(snap transcript.Snapshot) string {
	return strings.TrimPrefix(transcript.Render(snap), transcript.ByteOrderMark)
}

// writeJSON prints v as indented JSON. HTML escaping is off so transcript
// text keeps its angle brackets and ampersands.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
