package podcast

import (
	"context"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/rs/zerolog/log"

	"podcaster/internal/config"
	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/audiomerge"
	"podcaster/internal/pkg/storage"
)

// MemoryConcatenator 在内存中解码拼接，输出 16-bit PCM WAV
type MemoryConcatenator struct {
	storage    storage.Storage
	gapSeconds float64
}

// NewMemoryConcatenator 创建内存合并器，gapSeconds 为段间静音
func NewMemoryConcatenator(store storage.Storage, gapSeconds float64) *MemoryConcatenator {
	return &MemoryConcatenator{storage: store, gapSeconds: gapSeconds}
}

// Concatenate 实现 Concatenator
func (c *MemoryConcatenator) Concatenate(ctx context.Context, podcastID string, entries []podcast.TimelineEntry) (*Artifact, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTimeline
	}

	buffers := make([]*audio.IntBuffer, 0, len(entries))
	for _, e := range entries {
		data, err := storage.ReadAll(ctx, c.storage, e.AudioFile)
		if err != nil {
			return nil, &ConcatenationError{Strategy: config.StrategyMemory, Err: fmt.Errorf("read %s: %w", e.AudioFile, err)}
		}
		buf, err := audiomerge.Decode(data)
		if err != nil {
			return nil, &ConcatenationError{Strategy: config.StrategyMemory, Err: fmt.Errorf("decode %s: %w", e.AudioFile, err)}
		}
		buffers = append(buffers, buf)
	}

	merged, err := audiomerge.Merge(buffers, c.gapSeconds)
	if err != nil {
		return nil, &ConcatenationError{Strategy: config.StrategyMemory, Err: err}
	}
	data, err := audiomerge.EncodeWAV(merged)
	if err != nil {
		return nil, &ConcatenationError{Strategy: config.StrategyMemory, Err: err}
	}

	outKey := FinalKey(podcastID, "wav")
	url, err := storage.WriteBytes(ctx, c.storage, outKey, data, "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("write final audio: %w", err)
	}

	duration := audiomerge.BufferDuration(merged).Seconds()
	log.Info().
		Str("podcast_id", podcastID).
		Str("output", outKey).
		Int("segments", len(entries)).
		Float64("duration", duration).
		Msg("最终音频合并成功")

	return &Artifact{
		Key:      outKey,
		URL:      url,
		Duration: duration,
		Strategy: config.StrategyMemory,
		Segments: len(entries),
	}, nil
}
