package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"podcaster/internal/model/podcast"
)

// EnsureIndexes 创建所有模型的索引
// 在应用启动时调用，模型通过 Model 接口声明自己的索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	models := []Model{
		&podcast.SynthesisTask{},
	}
	return EnsureAllIndexes(ctx, db, models...)
}
