package podcast

import (
	"context"
	"fmt"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/storage"
)

// segmentStatuses 按时间线检查每个段落的音频与时间戳文件
func segmentStatuses(ctx context.Context, store storage.Storage, entries []podcast.TimelineEntry) ([]podcast.SegmentStatus, error) {
	statuses := make([]podcast.SegmentStatus, 0, len(entries))
	for i, e := range entries {
		audioOK, err := store.Exists(ctx, e.AudioFile)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", e.AudioFile, err)
		}
		timestampOK, err := store.Exists(ctx, e.TimestampFile)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", e.TimestampFile, err)
		}

		s := podcast.SegmentStatus{
			Position:     i,
			Speaker:      e.Speaker,
			SegmentIndex: e.SegmentIndex,
		}
		switch {
		case audioOK && timestampOK:
			s.Status = podcast.SegmentFileStatusSuccess
		case audioOK || timestampOK:
			s.Status = podcast.SegmentFileStatusFailed
		default:
			s.Status = podcast.SegmentFileStatusPending
		}
		if audioOK {
			s.AudioURL = store.PublicURL(e.AudioFile)
		}
		if timestampOK {
			s.TimestampURL = store.PublicURL(e.TimestampFile)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}
