package podcast

import (
	"context"
	"path"
	"strings"

	"podcaster/internal/model/podcast"
)

// Artifact 合并后的最终音频
type Artifact struct {
	Key      string  `json:"key"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"` // 秒，尽力而为
	Strategy string  `json:"strategy"`
	Segments int     `json:"segments"`
}

// Concatenator 按时间线顺序合并段落音频
type Concatenator interface {
	Concatenate(ctx context.Context, podcastID string, entries []podcast.TimelineEntry) (*Artifact, error)
}

func totalDuration(entries []podcast.TimelineEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].EndTime
}

// audioExt 取第一个条目的扩展名，默认 mp3
func audioExt(entries []podcast.TimelineEntry) string {
	if len(entries) == 0 {
		return "mp3"
	}
	ext := strings.TrimPrefix(path.Ext(entries[0].AudioFile), ".")
	if ext == "" {
		return "mp3"
	}
	return ext
}
