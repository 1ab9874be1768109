package versions

import (
	"context"
	"path/filepath"

	"quill/internal/logging"
	"quill/internal/retention"
)

// Cleanup keeps the keep newest versions of a transcription and removes the
// rest. A negative keep uses the configured keep count.
func (s *Service) Cleanup(ctx context.Context, userID, transcriptionID string, keep int) (retention.Result, error) {
	if _, err := s.authorize(ctx, userID, transcriptionID, false); err != nil {
		return retention.Result{}, err
	}
	if keep < 0 {
		keep = s.opts.KeepCount
	}
	var result retention.Result
	err := s.locks.With(ctx, lockKey(transcriptionID), func() error {
		var err error
		result, err = s.retention.Prune(ctx, transcriptionID, keep)
		if err != nil {
			return err
		}
		if len(result.Removed) > 0 {
			dir := filepath.Dir(result.Removed[0].FilePath)
			s.refreshSummary(ctx, logging.WithContext(ctx, s.logger), transcriptionID, dir)
		}
		return nil
	})
	return result, err
}
