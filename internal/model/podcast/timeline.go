package podcast

// TimelineEntry 时间线条目（外部文档格式，字段为 camelCase）
type TimelineEntry struct {
	Speaker       string  `json:"speaker"`
	AudioFile     string  `json:"audioFile"`     // 存储 key
	TimestampFile string  `json:"timestampFile"` // 存储 key
	Duration      float64 `json:"duration"`      // 秒
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	SegmentIndex  *int    `json:"segmentIndex,omitempty"`
}

// SegmentStatus 段落文件状态查询结果
type SegmentStatus struct {
	Position     int               `json:"position"`
	Speaker      string            `json:"speaker"`
	SegmentIndex *int              `json:"segment_index,omitempty"`
	Status       SegmentFileStatus `json:"status"`
	AudioURL     string            `json:"audio_url,omitempty"`
	TimestampURL string            `json:"timestamp_url,omitempty"`
}
