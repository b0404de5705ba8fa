package podcast

import (
	"errors"
	"fmt"

	"podcaster/internal/pkg/ffmpeg"
)

var (
	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoSegments 批次为空
	ErrNoSegments = errors.New("no segments to synthesize")
	// ErrEmptyTimeline 没有可用的时间线条目
	ErrEmptyTimeline = errors.New("timeline is empty")
	// ErrTimelineNotFound 时间线文件不存在
	ErrTimelineNotFound = errors.New("timeline document not found")
	// ErrUnknownStrategy 未知的合并策略
	ErrUnknownStrategy = errors.New("unknown concatenation strategy")
	// ErrVoicesUnsupported provider 不支持列出音色
	ErrVoicesUnsupported = errors.New("provider does not support listing voices")
)

// VoiceMappingError 段落没有 voice_id 且 speaker 不在映射中
type VoiceMappingError struct {
	Index   int
	Speaker string
}

func (e *VoiceMappingError) Error() string {
	return fmt.Sprintf("segment %d: no voice mapped for speaker %q", e.Index, e.Speaker)
}

// ConcatenationError 合并失败
type ConcatenationError struct {
	Strategy string
	Stderr   string
	Err      error
}

// Error 包装的 ffmpeg.ExecError 自带 stderr，此时不再重复
func (e *ConcatenationError) Error() string {
	var execErr *ffmpeg.ExecError
	if e.Stderr != "" && !errors.As(e.Err, &execErr) {
		return fmt.Sprintf("concatenate (%s): %v: %s", e.Strategy, e.Err, e.Stderr)
	}
	return fmt.Sprintf("concatenate (%s): %v", e.Strategy, e.Err)
}

func (e *ConcatenationError) Unwrap() error {
	return e.Err
}
