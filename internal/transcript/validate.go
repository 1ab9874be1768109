package transcript

import (
	"fmt"
	"strings"
)

// Validate rejects snapshots whose fields cannot be rendered losslessly.
func Validate(s Snapshot) error {
	for i, speaker := range s.Speakers {
		code := strings.TrimSpace(speaker.Code)
		if code == "" {
			return fmt.Errorf("speaker %d: code is required", i+1)
		}
		if strings.ContainsAny(code, ":[]\r\n") {
			return fmt.Errorf("speaker %d: code %q contains a reserved character", i+1, code)
		}
		if strings.HasPrefix(code, "===") {
			return fmt.Errorf("speaker %d: code %q would read back as a section marker", i+1, code)
		}
		if strings.ContainsAny(speaker.Description, "()") {
			return fmt.Errorf("speaker %q: description must not contain parentheses", code)
		}
	}
	for i, block := range s.Blocks {
		if ts := strings.TrimSpace(block.Timestamp); ts != "" && !isClock(ts) {
			return fmt.Errorf("block %d: timestamp %q is not HH:MM:SS", i+1, block.Timestamp)
		}
		if strings.ContainsAny(block.Speaker, ":[]\r\n") {
			return fmt.Errorf("block %d: speaker %q contains a reserved character", i+1, block.Speaker)
		}
	}
	for i, media := range s.Media {
		if strings.TrimSpace(media.Name) == "" && strings.TrimSpace(media.URL) == "" {
			return fmt.Errorf("media %d: name is required", i+1)
		}
	}
	return nil
}
