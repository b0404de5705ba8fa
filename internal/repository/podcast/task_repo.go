package podcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podcaster/internal/model/podcast"
)

// TaskUpdate 状态变更时一并写入的字段，零值字段不写
type TaskUpdate struct {
	Status       podcast.TaskStatus
	Completed    int // 以 $max 写入 progress.completed
	Results      []podcast.SynthesisResult
	Summary      *podcast.SynthesisSummary
	ErrorMessage string
}

// TaskRepository 合成任务仓库接口
type TaskRepository interface {
	Create(ctx context.Context, t *podcast.SynthesisTask) error
	FindByID(ctx context.Context, id string) (*podcast.SynthesisTask, error)
	FindByPodcastID(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error)
	// Transition 仅当当前状态在 from 中时更新，否则返回 ErrInvalidTransition
	Transition(ctx context.Context, id string, from []podcast.TaskStatus, update TaskUpdate) error
	// UpdateProgress 进度只增不减
	UpdateProgress(ctx context.Context, id string, completed, currentSegment int) error
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// TaskRepo 合成任务仓库实现
type TaskRepo struct {
	coll *mongo.Collection
}

// NewTaskRepo 创建合成任务仓库
func NewTaskRepo(db *mongo.Database) *TaskRepo {
	var t podcast.SynthesisTask
	return &TaskRepo{coll: db.Collection(t.Collection())}
}

// Create 创建任务
func (r *TaskRepo) Create(ctx context.Context, t *podcast.SynthesisTask) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = podcast.TaskStatusPending // 默认状态为待处理
	}
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

// FindByID 根据ID查询
func (r *TaskRepo) FindByID(ctx context.Context, id string) (*podcast.SynthesisTask, error) {
	var t podcast.SynthesisTask
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, podcast.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByPodcastID 查询播客的所有任务（按创建时间倒序）
func (r *TaskRepo) FindByPodcastID(ctx context.Context, podcastID string) ([]*podcast.SynthesisTask, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := r.coll.Find(ctx, bson.M{"podcast_id": podcastID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []*podcast.SynthesisTask
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Transition 条件更新状态
func (r *TaskRepo) Transition(ctx context.Context, id string, from []podcast.TaskStatus, update TaskUpdate) error {
	set := bson.M{
		"status":     update.Status,
		"updated_at": time.Now(),
	}
	if update.Results != nil {
		set["results"] = update.Results
	}
	if update.Summary != nil {
		set["summary"] = update.Summary
	}
	if update.ErrorMessage != "" {
		set["error_message"] = update.ErrorMessage
	}

	doc := bson.M{"$set": set}
	if update.Completed > 0 {
		doc["$max"] = bson.M{"progress.completed": update.Completed}
	}

	filter := bson.M{"id": id, "status": bson.M{"$in": from}}
	result, err := r.coll.UpdateOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// UpdateProgress 更新进度，只在处理中时生效
func (r *TaskRepo) UpdateProgress(ctx context.Context, id string, completed, currentSegment int) error {
	filter := bson.M{"id": id, "status": podcast.TaskStatusProcessing}
	update := bson.M{
		"$max": bson.M{"progress.completed": completed},
		"$set": bson.M{
			"progress.current_segment": currentSegment,
			"updated_at":               time.Now(),
		},
	}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// DeleteCreatedBefore 删除早于 before 创建的任务
func (r *TaskRepo) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *TaskRepo) missOrConflict(ctx context.Context, id string) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return podcast.ErrTaskNotFound
	}
	return fmt.Errorf("%w: task %s", podcast.ErrInvalidTransition, id)
}
