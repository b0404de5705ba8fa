package podcast

// ResultStatus 段落合成结果状态
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success" // 成功
	ResultStatusFailed  ResultStatus = "failed"  // 失败（可能仍会重试）
	ResultStatusSkipped ResultStatus = "skipped" // 跳过（未找到音色）
)

// String 返回状态的字符串表示
func (s ResultStatus) String() string {
	return string(s)
}

// TaskStatus 合成任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // 待处理
	TaskStatusProcessing TaskStatus = "processing" // 处理中
	TaskStatusCompleted  TaskStatus = "completed"  // 已完成
	TaskStatusFailed     TaskStatus = "failed"     // 失败
)

// String 返回状态的字符串表示
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal completed / failed 之后不允许再变更
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition 状态机：pending -> processing -> completed | failed
// pending 也可以直接失败（例如启动前就被取消）
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return to == TaskStatusProcessing || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusProcessing || to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// SegmentFileStatus 段落文件状态（由存储中的文件推断）
type SegmentFileStatus string

const (
	SegmentFileStatusSuccess SegmentFileStatus = "success" // 音频与时间戳都存在
	SegmentFileStatusFailed  SegmentFileStatus = "failed"  // 只存在其中一个
	SegmentFileStatusPending SegmentFileStatus = "pending" // 都不存在
)
