package podcast

import (
	"context"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/tts"
	podcastsvc "podcaster/internal/service/podcast"
)

// PodcastService handler 依赖的服务能力，podcastsvc.Service 实现了该接口
type PodcastService interface {
	Synthesize(ctx context.Context, req *podcastsvc.SynthesisRequest) (*podcast.SynthesisOutcome, error)
	StartSynthesis(ctx context.Context, req *podcastsvc.SynthesisRequest) (*podcast.SynthesisTask, error)
	BuildTimeline(ctx context.Context, podcastID string) ([]podcast.TimelineEntry, error)
	Merge(ctx context.Context, podcastID, strategy string) (*podcastsvc.Artifact, error)
	SegmentStatuses(ctx context.Context, podcastID string) ([]podcast.SegmentStatus, error)
	GetTask(ctx context.Context, taskID string) (*podcast.SynthesisTask, error)
	ListTasks(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error)
	ListVoices(ctx context.Context, providerID, language string) ([]tts.VoiceModel, error)
}

// Handler 播客语音模块处理器
type Handler struct {
	podcastService PodcastService
}

// NewHandler 创建播客语音模块处理器
func NewHandler(podcastService PodcastService) *Handler {
	return &Handler{
		podcastService: podcastService,
	}
}
