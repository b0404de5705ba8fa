package podcast

import (
	"fmt"

	"podcaster/internal/pkg/tts"
)

// Segment 脚本中的一段，index 是唯一标识
type Segment struct {
	Index           int            `json:"index"`
	SpeakerTag      string         `json:"speaker_tag"`
	Text            string         `json:"text"`
	VoiceID         string         `json:"voice_id,omitempty"`    // 为空时按 speaker 映射
	ProviderID      string         `json:"provider_id,omitempty"` // 为空时使用批次默认 provider
	ModelID         string         `json:"model_id,omitempty"`
	LanguageCode    string         `json:"language_code,omitempty"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

// Validate 校验段落
func (s *Segment) Validate() error {
	if s.Index < 0 {
		return fmt.Errorf("segment index must be >= 0, got %d", s.Index)
	}
	if s.Text == "" {
		return fmt.Errorf("segment %d: text is empty", s.Index)
	}
	return nil
}

// SynthesisResult 单段合成结果
type SynthesisResult struct {
	Index        int           `bson:"index" json:"index"`
	Speaker      string        `bson:"speaker" json:"speaker"`
	ProviderID   string        `bson:"provider_id" json:"provider_id"`
	Status       ResultStatus  `bson:"status" json:"status"`
	AudioRef     string        `bson:"audio_ref,omitempty" json:"audio_ref,omitempty"`         // 存储 key
	AudioURL     string        `bson:"audio_url,omitempty" json:"audio_url,omitempty"`         // 公开URL
	AlignmentRef string        `bson:"alignment_ref,omitempty" json:"alignment_ref,omitempty"` // 存储 key
	DurationMs   int64         `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Error        string        `bson:"error,omitempty" json:"error,omitempty"`
	ErrorKind    tts.ErrorKind `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	RetryCount   int           `bson:"retry_count" json:"retry_count"`
}

// ProviderAlert 厂商告警（鉴权失败、余额不足）
type ProviderAlert struct {
	ProviderID   string        `json:"provider_id"`
	Kind         tts.ErrorKind `json:"kind"`
	Message      string        `json:"message"`
	SegmentIndex int           `json:"segment_index"`
}

// SynthesisSummary 批次汇总
type SynthesisSummary struct {
	Total            int             `json:"total"`
	Success          int             `json:"success"`
	Failed           int             `json:"failed"`
	Skipped          int             `json:"skipped"`
	RetryableIndices []int           `json:"retryable_indices"` // 所有未成功的段落（failed + skipped），可整体重新提交
	Alerts           []ProviderAlert `json:"alerts,omitempty"`
}

// SynthesisOutcome 批次结果
type SynthesisOutcome struct {
	Success bool              `json:"success"` // failed == 0
	Results []SynthesisResult `json:"results"` // 按 index 排序
	Summary SynthesisSummary  `json:"summary"`
}
