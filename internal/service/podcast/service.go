package podcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"podcaster/internal/config"
	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/ctxutil"
	applog "podcaster/internal/pkg/logger"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/tts"
)

// Service 播客语音流水线：合成 -> 时间线 -> 合并
type Service struct {
	registry        ProviderRegistry
	storage         storage.Storage
	orchestrator    *Orchestrator
	timeline        *TimelineBuilder
	tracker         *Tracker
	concatenators   map[string]Concatenator
	defaultProvider string
	defaultStrategy string

	wg sync.WaitGroup // 后台任务
}

// Options 服务依赖
type Options struct {
	Registry        ProviderRegistry
	Storage         storage.Storage
	Tracker         *Tracker
	Orchestrator    OrchestratorOptions
	AudioTool       AudioTool // 为 nil 时不提供 subprocess 策略
	TempDir         string
	GapSeconds      float64
	DefaultProvider string
	DefaultStrategy string
}

// NewService 创建服务
func NewService(opts Options) *Service {
	s := &Service{
		registry:        opts.Registry,
		storage:         opts.Storage,
		orchestrator:    NewOrchestrator(opts.Registry, opts.Storage, opts.Orchestrator),
		timeline:        NewTimelineBuilder(opts.Storage),
		tracker:         opts.Tracker,
		concatenators:   make(map[string]Concatenator),
		defaultProvider: opts.DefaultProvider,
		defaultStrategy: opts.DefaultStrategy,
	}
	s.concatenators[config.StrategyMemory] = NewMemoryConcatenator(opts.Storage, opts.GapSeconds)
	if opts.AudioTool != nil {
		s.concatenators[config.StrategySubprocess] = NewSubprocessConcatenator(opts.Storage, opts.AudioTool, opts.TempDir)
	}
	if s.defaultStrategy == "" {
		s.defaultStrategy = config.StrategySubprocess
	}
	if _, ok := s.concatenators[s.defaultStrategy]; !ok {
		log.Warn().Str("strategy", s.defaultStrategy).Msg("合并策略不可用，改用 memory")
		s.defaultStrategy = config.StrategyMemory
	}
	return s
}

func (s *Service) prepare(req *SynthesisRequest) error {
	if req.ProviderID == "" {
		req.ProviderID = s.defaultProvider
	}
	return ValidateRequest(req)
}

// Synthesize 同步合成
func (s *Service) Synthesize(ctx context.Context, req *SynthesisRequest) (*podcast.SynthesisOutcome, error) {
	if err := s.prepare(req); err != nil {
		return nil, err
	}
	return s.orchestrator.Run(ctx, req, nil)
}

// StartSynthesis 创建任务并在后台合成，返回 pending 状态的任务
// 后台合成不受请求 ctx 取消的影响
func (s *Service) StartSynthesis(ctx context.Context, req *SynthesisRequest) (*podcast.SynthesisTask, error) {
	if s.tracker == nil {
		return nil, fmt.Errorf("task tracking is not configured")
	}
	if err := s.prepare(req); err != nil {
		return nil, err
	}

	task, err := s.tracker.Create(ctx, req.PodcastID, len(req.Segments))
	if err != nil {
		return nil, err
	}

	bgCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTask(bgCtx, task.ID, req)
	}()
	return task, nil
}

func (s *Service) runTask(ctx context.Context, taskID string, req *SynthesisRequest) {
	lc := applog.Component("synthesis_task").With().Str("task_id", taskID).Str("podcast_id", req.PodcastID)
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		lc = lc.Str("request_id", requestID)
	}
	logger := lc.Logger()

	if err := s.tracker.Start(ctx, taskID); err != nil {
		logger.Error().Err(err).Msg("任务启动失败")
		return
	}

	completed := 0
	observer := func(result podcast.SynthesisResult, terminal bool) {
		if !terminal {
			return
		}
		completed++
		if err := s.tracker.Progress(ctx, taskID, completed, result.Index); err != nil {
			logger.Warn().Err(err).Msg("更新任务进度失败")
		}
	}

	outcome, err := s.orchestrator.Run(ctx, req, observer)
	if err != nil {
		if ferr := s.tracker.Fail(ctx, taskID, err.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("标记任务失败出错")
		}
		return
	}
	if err := s.tracker.Complete(ctx, taskID, outcome); err != nil {
		logger.Error().Err(err).Msg("标记任务完成出错")
		_ = s.tracker.Fail(ctx, taskID, err.Error())
		return
	}
	logger.Info().
		Int("success", outcome.Summary.Success).
		Int("failed", outcome.Summary.Failed).
		Msg("合成任务完成")
}

// Wait 等待所有后台任务结束
func (s *Service) Wait() {
	s.wg.Wait()
}

// BuildTimeline 生成时间线
func (s *Service) BuildTimeline(ctx context.Context, podcastID string) ([]podcast.TimelineEntry, error) {
	return s.timeline.Build(ctx, podcastID)
}

// Merge 按当前段落文件重新生成时间线后合并最终音频
// 重新合成过的段落因此总会使用最新的文件
func (s *Service) Merge(ctx context.Context, podcastID, strategy string) (*Artifact, error) {
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	concatenator, ok := s.concatenators[strings.ToLower(strategy)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}

	entries, err := s.timeline.Build(ctx, podcastID)
	if err != nil {
		return nil, err
	}
	return concatenator.Concatenate(ctx, podcastID, entries)
}

// SegmentStatuses 按时间线查询段落文件状态
func (s *Service) SegmentStatuses(ctx context.Context, podcastID string) ([]podcast.SegmentStatus, error) {
	entries, err := s.timeline.Load(ctx, podcastID)
	if err != nil {
		return nil, err
	}
	return segmentStatuses(ctx, s.storage, entries)
}

// GetTask 查询任务
func (s *Service) GetTask(ctx context.Context, taskID string) (*podcast.SynthesisTask, error) {
	if s.tracker == nil {
		return nil, podcast.ErrTaskNotFound
	}
	return s.tracker.Get(ctx, taskID)
}

// ListTasks 查询播客的任务
func (s *Service) ListTasks(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error) {
	if s.tracker == nil {
		return nil, nil
	}
	return s.tracker.ListByPodcast(ctx, podcastID)
}

// CleanupTasks 清理过期任务
func (s *Service) CleanupTasks(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.tracker == nil {
		return 0, nil
	}
	return s.tracker.Cleanup(ctx, maxAge)
}

// ListVoices 列出 provider 的音色
func (s *Service) ListVoices(ctx context.Context, providerID, language string) ([]tts.VoiceModel, error) {
	if providerID == "" {
		providerID = s.defaultProvider
	}
	provider, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	lister, ok := provider.(tts.VoiceLister)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVoicesUnsupported, providerID)
	}
	return lister.ListVoices(ctx, language)
}
