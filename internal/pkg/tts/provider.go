// Package tts 定义与厂商无关的语音合成接口
//
// 每个厂商实现 Provider；支持时间戳的厂商额外实现 TimestampProvider，
// 支持音色列表的厂商实现 VoiceLister。调用方通过类型断言探测能力。
package tts

import (
	"context"
)

// SpeechRequest 合成请求
type SpeechRequest struct {
	Text            string         `json:"text"`
	VoiceID         string         `json:"voice_id"`
	ModelID         string         `json:"model_id,omitempty"`
	LanguageCode    string         `json:"language_code,omitempty"`
	OutputFormat    string         `json:"output_format,omitempty"`    // mp3 / wav / ogg，厂商自行映射
	ProviderOptions map[string]any `json:"provider_options,omitempty"` // 厂商私有参数
}

// SpeechResponse 合成结果
type SpeechResponse struct {
	Audio           []byte  `json:"-"`
	ContentType     string  `json:"content_type"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"` // 0 表示厂商未返回
}

// VoiceModel 音色信息
type VoiceModel struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Gender           string         `json:"gender,omitempty"`
	LanguageCodes    []string       `json:"language_codes,omitempty"`
	Provider         string         `json:"provider"`
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

// Provider 语音合成厂商
type Provider interface {
	// ID 返回注册表中的 key
	ID() string

	// GenerateSpeech 合成语音
	GenerateSpeech(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error)
}

// TimestampProvider 可选能力：合成语音并返回对齐数据
type TimestampProvider interface {
	Provider
	GenerateSpeechWithTimestamps(ctx context.Context, req *SpeechRequest) (*SpeechResponse, *Alignment, error)
}

// VoiceLister 可选能力：列出音色
type VoiceLister interface {
	ListVoices(ctx context.Context, languageFilter string) ([]VoiceModel, error)
}

// SupportsTimestamps 探测 provider 是否支持时间戳
func SupportsTimestamps(p Provider) (TimestampProvider, bool) {
	tp, ok := p.(TimestampProvider)
	return tp, ok
}
