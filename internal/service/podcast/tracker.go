package podcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/cache"
	"podcaster/internal/pkg/id"
	podcastrepo "podcaster/internal/repository/podcast"
)

// DefaultTaskMaxAge Cleanup 默认保留时长
const DefaultTaskMaxAge = 24 * time.Hour

// TaskCache cache.RedisCache 实现了该接口
type TaskCache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
}

// Tracker 异步合成任务状态
// pending -> processing -> completed | failed，终态不可再变更
type Tracker struct {
	repo  podcastrepo.TaskRepository
	cache TaskCache // 可选
}

// NewTracker 创建任务跟踪器，cache 可以为 nil
func NewTracker(repo podcastrepo.TaskRepository, taskCache TaskCache) *Tracker {
	return &Tracker{repo: repo, cache: taskCache}
}

// Create 创建 pending 任务
func (t *Tracker) Create(ctx context.Context, podcastID string, total int) (*podcast.SynthesisTask, error) {
	if total <= 0 {
		return nil, fmt.Errorf("task total must be > 0, got %d", total)
	}
	task := &podcast.SynthesisTask{
		ID:        id.NewWithPrefix("task"),
		PodcastID: podcastID,
		Status:    podcast.TaskStatusPending,
		Progress:  podcast.TaskProgress{Total: total},
	}
	if err := t.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.refresh(ctx, task.ID)
	return task, nil
}

// Start pending -> processing
func (t *Tracker) Start(ctx context.Context, taskID string) error {
	return t.transition(ctx, taskID, podcast.TaskStatusProcessing, podcastrepo.TaskUpdate{})
}

// Progress 记录完成数，只增不减
func (t *Tracker) Progress(ctx context.Context, taskID string, completed, currentSegment int) error {
	if err := t.repo.UpdateProgress(ctx, taskID, completed, currentSegment); err != nil {
		return err
	}
	t.refresh(ctx, taskID)
	return nil
}

// Complete processing -> completed，结果数必须等于 total
func (t *Tracker) Complete(ctx context.Context, taskID string, outcome *podcast.SynthesisOutcome) error {
	task, err := t.repo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if outcome == nil || len(outcome.Results) != task.Progress.Total {
		got := 0
		if outcome != nil {
			got = len(outcome.Results)
		}
		return fmt.Errorf("%w: task %s expects %d results, got %d",
			podcast.ErrInvalidTransition, taskID, task.Progress.Total, got)
	}

	summary := outcome.Summary
	return t.transition(ctx, taskID, podcast.TaskStatusCompleted, podcastrepo.TaskUpdate{
		Completed: task.Progress.Total,
		Results:   outcome.Results,
		Summary:   &summary,
	})
}

// Fail pending | processing -> failed，必须给出原因
func (t *Tracker) Fail(ctx context.Context, taskID, message string) error {
	if message == "" {
		return fmt.Errorf("%w: failure message is required", podcast.ErrInvalidTransition)
	}
	return t.transition(ctx, taskID, podcast.TaskStatusFailed, podcastrepo.TaskUpdate{ErrorMessage: message})
}

// Get 优先读缓存
func (t *Tracker) Get(ctx context.Context, taskID string) (*podcast.SynthesisTask, error) {
	if t.cache != nil {
		var task podcast.SynthesisTask
		err := t.cache.Get(ctx, cache.SynthesisTaskCacheKey(taskID), &task)
		if err == nil {
			return &task, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("task_id", taskID).Msg("读取任务缓存失败")
		}
	}

	task, err := t.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.store(ctx, task)
	return task, nil
}

// ListByPodcast 播客的所有任务
func (t *Tracker) ListByPodcast(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error) {
	return t.repo.FindByPodcastID(ctx, podcastID)
}

// Cleanup 删除超过 maxAge 的任务，maxAge <= 0 时使用默认值
// 缓存依赖 TTL 过期
func (t *Tracker) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = DefaultTaskMaxAge
	}
	n, err := t.repo.DeleteCreatedBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("cleanup tasks: %w", err)
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Dur("max_age", maxAge).Msg("过期任务已清理")
	}
	return n, nil
}

func (t *Tracker) transition(ctx context.Context, taskID string, to podcast.TaskStatus, update podcastrepo.TaskUpdate) error {
	update.Status = to
	if err := t.repo.Transition(ctx, taskID, sourcesOf(to), update); err != nil {
		return err
	}
	t.refresh(ctx, taskID)
	return nil
}

// sourcesOf 可以转移到 to 的状态
func sourcesOf(to podcast.TaskStatus) []podcast.TaskStatus {
	var from []podcast.TaskStatus
	for _, s := range []podcast.TaskStatus{
		podcast.TaskStatusPending,
		podcast.TaskStatusProcessing,
		podcast.TaskStatusCompleted,
		podcast.TaskStatusFailed,
	} {
		if s.CanTransition(to) && s != to {
			from = append(from, s)
		}
	}
	return from
}

func (t *Tracker) refresh(ctx context.Context, taskID string) {
	if t.cache == nil {
		return
	}
	task, err := t.repo.FindByID(ctx, taskID)
	if err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("刷新任务缓存失败")
		return
	}
	t.store(ctx, task)
}

func (t *Tracker) store(ctx context.Context, task *podcast.SynthesisTask) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, cache.SynthesisTaskCacheKey(task.ID), task, cache.SynthesisTaskCacheTTL); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID).Msg("写入任务缓存失败")
	}
}
