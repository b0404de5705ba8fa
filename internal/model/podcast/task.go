package podcast

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("synthesis task not found")
	// ErrInvalidTransition 非法状态变更
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// TaskProgress 任务进度
type TaskProgress struct {
	Completed      int `bson:"completed" json:"completed"`
	Total          int `bson:"total" json:"total"`
	CurrentSegment int `bson:"current_segment" json:"current_segment"` // 最近一个完成的段落 index
}

// SynthesisTask 异步合成任务
type SynthesisTask struct {
	ID           string            `bson:"id" json:"task_id"`
	PodcastID    string            `bson:"podcast_id" json:"podcast_id"`
	Status       TaskStatus        `bson:"status" json:"status"`
	Progress     TaskProgress      `bson:"progress" json:"progress"`
	Results      []SynthesisResult `bson:"results,omitempty" json:"results,omitempty"`
	Summary      *SynthesisSummary `bson:"summary,omitempty" json:"summary,omitempty"`
	ErrorMessage string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (t *SynthesisTask) Collection() string {
	return "synthesis_tasks"
}

// EnsureIndexes 创建和维护索引
func (t *SynthesisTask) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "podcast_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_podcast_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
