package tts

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Alignment 对齐数据，兼容两种厂商格式：
//   - 字符级：characters + character_start/end_times_seconds（ElevenLabs）
//   - 词/音素级：words + phonemes（火山引擎 frontend）
type Alignment struct {
	Characters                 []string        `json:"characters,omitempty"`
	CharacterStartTimesSeconds []float64       `json:"character_start_times_seconds,omitempty"`
	CharacterEndTimesSeconds   []float64       `json:"character_end_times_seconds,omitempty"`
	Words                      []WordTiming    `json:"words,omitempty"`
	Phonemes                   []PhonemeTiming `json:"phonemes,omitempty"`
}

// WordTiming 词级时间（秒）
type WordTiming struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	UnitType  string  `json:"unit_type,omitempty"`
}

// PhonemeTiming 音素级时间（秒）
type PhonemeTiming struct {
	Phone     string  `json:"phone"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Empty 没有任何时间单元
func (a *Alignment) Empty() bool {
	return a == nil || (len(a.CharacterEndTimesSeconds) == 0 && len(a.Words) == 0 && len(a.Phonemes) == 0)
}

// Duration 最后一个单元的结束时间
func (a *Alignment) Duration() float64 {
	if a == nil {
		return 0
	}
	if n := len(a.CharacterEndTimesSeconds); n > 0 {
		return a.CharacterEndTimesSeconds[n-1]
	}
	if n := len(a.Words); n > 0 {
		return a.Words[n-1].EndTime
	}
	if n := len(a.Phonemes); n > 0 {
		return a.Phonemes[n-1].EndTime
	}
	return 0
}

// AlignmentDocument 每个段落写入存储的对齐文件
// 厂商原始格式平铺在顶层，额外携带段落序号等元数据
type AlignmentDocument struct {
	SegmentIndex    *int    `json:"segment_index,omitempty"`
	Speaker         string  `json:"speaker,omitempty"`
	Provider        string  `json:"provider,omitempty"`
	VoiceID         string  `json:"voice_id,omitempty"`
	Text            string  `json:"text,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"` // 厂商无逐字时间时使用
	Alignment
}

// Duration 段落时长：优先使用对齐数据，其次 duration_seconds
func (d *AlignmentDocument) Duration() float64 {
	if !d.Alignment.Empty() {
		return d.Alignment.Duration()
	}
	return d.DurationSeconds
}

// ErrEmptyAlignment 对齐数据为空
var ErrEmptyAlignment = errors.New("alignment data is empty")

// AlignmentParseError 对齐文件无法解析或为空
type AlignmentParseError struct {
	File string
	Err  error
}

func (e *AlignmentParseError) Error() string {
	return fmt.Sprintf("parse alignment %s: %v", e.File, e.Err)
}

func (e *AlignmentParseError) Unwrap() error {
	return e.Err
}

// ParseAlignmentDocument 解析对齐文件，时长 <= 0 视为无效
func ParseAlignmentDocument(file string, data []byte) (*AlignmentDocument, error) {
	var doc AlignmentDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &AlignmentParseError{File: file, Err: err}
	}
	if doc.Duration() <= 0 {
		return nil, &AlignmentParseError{File: file, Err: ErrEmptyAlignment}
	}
	return &doc, nil
}
