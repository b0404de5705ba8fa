package mongodb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

// Model 需要维护索引的集合
type Model interface {
	Collection() string
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}

// EnsureAllIndexes 依次为模型建索引，遇到第一个错误即返回
func EnsureAllIndexes(ctx context.Context, db *mongo.Database, models ...Model) error {
	for _, model := range models {
		if err := model.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", model.Collection(), err)
		}
		log.Debug().Str("collection", model.Collection()).Msg("索引已就绪")
	}
	return nil
}
