package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/tts"
)

// TimelineBuilder 根据段落目录下的对齐文件生成时间线
type TimelineBuilder struct {
	storage storage.Storage
}

// NewTimelineBuilder 创建时间线构建器
func NewTimelineBuilder(store storage.Storage) *TimelineBuilder {
	return &TimelineBuilder{storage: store}
}

type timelineCandidate struct {
	name    string // 对齐文件名
	base    string
	doc     *tts.AlignmentDocument
	speaker string
	stamp   int64
}

// Build 扫描对齐文件，计算累计起止时间并写入 merged_timeline.json
// 同样的输入重复执行得到字节相同的文件
func (b *TimelineBuilder) Build(ctx context.Context, podcastID string) ([]podcast.TimelineEntry, error) {
	if err := ValidatePodcastID(podcastID); err != nil {
		return nil, err
	}
	dir := SegmentsDir(podcastID)
	names, err := b.storage.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	audioByBase := make(map[string]string)
	for _, name := range names {
		if path.Ext(name) != alignmentExt {
			audioByBase[trimExt(name)] = name
		}
	}

	var candidates []timelineCandidate
	for _, name := range names {
		if path.Ext(name) != alignmentExt || name == TimelineFileName {
			continue
		}
		data, err := storage.ReadAll(ctx, b.storage, storage.Join(dir, name))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("podcast_id", podcastID).Str("file", name).Msg("读取对齐文件失败，跳过")
			continue
		}
		doc, err := tts.ParseAlignmentDocument(name, data)
		if err != nil {
			log.Warn().Err(err).Str("podcast_id", podcastID).Str("file", name).Msg("对齐文件无效，跳过")
			continue
		}

		base := trimExt(name)
		c := timelineCandidate{name: name, base: base, doc: doc, speaker: doc.Speaker, stamp: math.MaxInt64}
		if speaker, stamp, ok := parseSegmentBaseName(base); ok {
			c.stamp = stamp
			if c.speaker == "" {
				c.speaker = speaker
			}
		}
		if c.speaker == "" {
			c.speaker = base
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return nil, ErrEmptyTimeline
	}
	candidates = dropSuperseded(podcastID, candidates)
	sortCandidates(candidates)

	entries := make([]podcast.TimelineEntry, 0, len(candidates))
	var cursor float64
	for _, c := range candidates {
		audioName, ok := audioByBase[c.base]
		if !ok {
			audioName = c.base + ".mp3"
		}
		duration := roundMillis(c.doc.Duration())
		end := roundMillis(cursor + duration)
		entries = append(entries, podcast.TimelineEntry{
			Speaker:       c.speaker,
			AudioFile:     storage.Join(dir, audioName),
			TimestampFile: storage.Join(dir, c.name),
			Duration:      duration,
			StartTime:     cursor,
			EndTime:       end,
			SegmentIndex:  c.doc.SegmentIndex,
		})
		cursor = end
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	if _, err := storage.WriteBytes(ctx, b.storage, TimelineKey(podcastID), data, "application/json"); err != nil {
		return nil, fmt.Errorf("write timeline: %w", err)
	}

	log.Info().
		Str("podcast_id", podcastID).
		Int("entries", len(entries)).
		Float64("duration", cursor).
		Msg("时间线生成成功")
	return entries, nil
}

// Load 读取已生成的时间线
func (b *TimelineBuilder) Load(ctx context.Context, podcastID string) ([]podcast.TimelineEntry, error) {
	if err := ValidatePodcastID(podcastID); err != nil {
		return nil, err
	}
	data, err := storage.ReadAll(ctx, b.storage, TimelineKey(podcastID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTimelineNotFound
		}
		return nil, fmt.Errorf("read timeline: %w", err)
	}

	var entries []podcast.TimelineEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}
	return entries, nil
}

// dropSuperseded 同一 segment_index 被重新合成过时只保留时间戳最新的文件
// 只在全部文件都带 segment_index 时生效
func dropSuperseded(podcastID string, cs []timelineCandidate) []timelineCandidate {
	latest := make(map[int]int, len(cs))
	for i, c := range cs {
		if c.doc.SegmentIndex == nil {
			return cs
		}
		j, ok := latest[*c.doc.SegmentIndex]
		if !ok || supersedes(c, cs[j]) {
			latest[*c.doc.SegmentIndex] = i
		}
	}
	if len(latest) == len(cs) {
		return cs
	}

	kept := make([]timelineCandidate, 0, len(latest))
	for i, c := range cs {
		if latest[*c.doc.SegmentIndex] == i {
			kept = append(kept, c)
			continue
		}
		log.Info().
			Str("podcast_id", podcastID).
			Int("segment_index", *c.doc.SegmentIndex).
			Str("file", c.name).
			Str("replaced_by", cs[latest[*c.doc.SegmentIndex]].name).
			Msg("段落已重新合成，忽略旧文件")
	}
	return kept
}

func supersedes(a, b timelineCandidate) bool {
	if a.stamp != b.stamp {
		return a.stamp > b.stamp
	}
	return a.name > b.name
}

// sortCandidates 全部带 segment_index 时按序号排序，否则按文件名中的时间戳
func sortCandidates(cs []timelineCandidate) {
	byIndex := true
	for _, c := range cs {
		if c.doc.SegmentIndex == nil {
			byIndex = false
			break
		}
	}

	sort.SliceStable(cs, func(i, j int) bool {
		if byIndex && *cs[i].doc.SegmentIndex != *cs[j].doc.SegmentIndex {
			return *cs[i].doc.SegmentIndex < *cs[j].doc.SegmentIndex
		}
		if !byIndex && cs[i].stamp != cs[j].stamp {
			return cs[i].stamp < cs[j].stamp
		}
		return strings.Compare(cs[i].name, cs[j].name) < 0
	})
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
