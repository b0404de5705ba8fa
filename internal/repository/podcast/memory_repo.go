package podcast

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"podcaster/internal/model/podcast"
)

// MemoryTaskRepo 进程内任务仓库，未配置 MongoDB 时使用
type MemoryTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*podcast.SynthesisTask
	now   func() time.Time
}

// NewMemoryTaskRepo 创建进程内任务仓库
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[string]*podcast.SynthesisTask),
		now:   time.Now,
	}
}

// Create 创建任务
func (r *MemoryTaskRepo) Create(ctx context.Context, t *podcast.SynthesisTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	now := r.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = podcast.TaskStatusPending
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

// FindByID 根据ID查询
func (r *MemoryTaskRepo) FindByID(ctx context.Context, id string) (*podcast.SynthesisTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, podcast.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// FindByPodcastID 查询播客的所有任务（按创建时间倒序）
func (r *MemoryTaskRepo) FindByPodcastID(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []*podcast.SynthesisTask
	for _, t := range r.tasks {
		if t.PodcastID == podcastID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Transition 条件更新状态
func (r *MemoryTaskRepo) Transition(ctx context.Context, id string, from []podcast.TaskStatus, update TaskUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return podcast.ErrTaskNotFound
	}
	if !slices.Contains(from, t.Status) {
		return fmt.Errorf("%w: task %s", podcast.ErrInvalidTransition, id)
	}

	t.Status = update.Status
	t.UpdatedAt = r.now()
	if update.Results != nil {
		t.Results = slices.Clone(update.Results)
	}
	if update.Summary != nil {
		s := cloneSummary(*update.Summary)
		t.Summary = &s
	}
	if update.ErrorMessage != "" {
		t.ErrorMessage = update.ErrorMessage
	}
	t.Progress.Completed = max(t.Progress.Completed, update.Completed)
	return nil
}

// UpdateProgress 更新进度，只在处理中时生效
func (r *MemoryTaskRepo) UpdateProgress(ctx context.Context, id string, completed, currentSegment int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return podcast.ErrTaskNotFound
	}
	if t.Status != podcast.TaskStatusProcessing {
		return fmt.Errorf("%w: task %s", podcast.ErrInvalidTransition, id)
	}
	t.Progress.Completed = max(t.Progress.Completed, completed)
	t.Progress.CurrentSegment = currentSegment
	t.UpdatedAt = r.now()
	return nil
}

// DeleteCreatedBefore 删除早于 before 创建的任务
func (r *MemoryTaskRepo) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tasks {
		if t.CreatedAt.Before(before) {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func cloneTask(t *podcast.SynthesisTask) *podcast.SynthesisTask {
	c := *t
	c.Results = slices.Clone(t.Results)
	if t.Summary != nil {
		s := cloneSummary(*t.Summary)
		c.Summary = &s
	}
	return &c
}

func cloneSummary(s podcast.SynthesisSummary) podcast.SynthesisSummary {
	s.RetryableIndices = slices.Clone(s.RetryableIndices)
	s.Alerts = slices.Clone(s.Alerts)
	return s
}
