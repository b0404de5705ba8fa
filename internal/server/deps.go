package server

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"podcaster/internal/config"
	"podcaster/internal/handler"
	"podcaster/internal/pkg/cache"
	"podcaster/internal/pkg/ffmpeg"
	"podcaster/internal/pkg/mongodb"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/storagefactory"
	"podcaster/internal/pkg/ttsfactory"
	podcastrepo "podcaster/internal/repository/podcast"
	podcastsvc "podcaster/internal/service/podcast"
)

// Dependencies 服务依赖，HTTP 服务与 CLI 子命令共用
type Dependencies struct {
	Storage storage.Storage
	Service *podcastsvc.Service
	Tracker *podcastsvc.Tracker

	mongo *mongodb.Client
	redis *cache.RedisCache
}

// NewDependencies 根据配置创建依赖
// MongoDB 与 Redis 都是可选的：没有 MongoDB 时任务保存在进程内，没有 Redis 时不缓存
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}

	registry := ttsfactory.NewRegistry(cfg.TTS)
	if err := registry.Validate(); err != nil {
		log.Warn().Err(err).Msg("TTS providers not fully configured")
	}

	deps := &Dependencies{Storage: store}

	// 初始化 MongoDB (可选)
	var repo podcastrepo.TaskRepository
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(ctx, &cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, tasks are kept in memory")
		} else {
			deps.mongo = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			// 创建索引
			if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
			repo = podcastrepo.NewTaskRepo(client.Database())
		}
	}
	if repo == nil {
		repo = podcastrepo.NewMemoryTaskRepo()
	}

	// 初始化 Redis (可选)
	var taskCache podcastsvc.TaskCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			deps.redis = rc
			taskCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}
	deps.Tracker = podcastsvc.NewTracker(repo, taskCache)

	var limiter *rate.Limiter
	if cfg.Synthesis.RateLimit > 0 {
		burst := cfg.Synthesis.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Synthesis.RateLimit), burst)
	}

	// 默认策略是 memory 时，只有找得到 ffmpeg 才允许按请求切换到 subprocess
	var tool podcastsvc.AudioTool
	if cfg.Synthesis.Strategy == config.StrategySubprocess || ffmpegAvailable(cfg.FFmpeg.Path) {
		tool = ffmpeg.NewClient(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath)
	}

	deps.Service = podcastsvc.NewService(podcastsvc.Options{
		Registry: registry,
		Storage:  store,
		Tracker:  deps.Tracker,
		Orchestrator: podcastsvc.OrchestratorOptions{
			Concurrency:  cfg.Synthesis.Concurrency,
			MaxRetries:   cfg.Synthesis.MaxRetries,
			RetryBackoff: cfg.Synthesis.RetryBackoff,
			Limiter:      limiter,
		},
		AudioTool:       tool,
		TempDir:         cfg.Synthesis.TempDir,
		GapSeconds:      cfg.Synthesis.GapSeconds,
		DefaultProvider: strings.ToLower(cfg.TTS.DefaultProvider),
		DefaultStrategy: cfg.Synthesis.Strategy,
	})

	log.Info().
		Str("storage", store.GetStorageType()).
		Strs("providers", registry.Available()).
		Str("strategy", cfg.Synthesis.Strategy).
		Int("concurrency", cfg.Synthesis.Concurrency).
		Msg("podcast pipeline initialized")

	return deps, nil
}

func ffmpegAvailable(path string) bool {
	if path == "" {
		path = "ffmpeg"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

// ReadyChecks 就绪检查项
func (d *Dependencies) ReadyChecks() map[string]handler.ReadyCheck {
	checks := map[string]handler.ReadyCheck{
		"storage": func(ctx context.Context) error {
			_, err := d.Storage.Exists(ctx, "healthcheck")
			return err
		},
	}
	if d.mongo != nil {
		checks["mongo"] = d.mongo.Ping
	}
	if d.redis != nil {
		checks["redis"] = d.redis.Ping
	}
	return checks
}

// Close 关闭连接
func (d *Dependencies) Close(ctx context.Context) {
	if d.mongo != nil {
		if err := d.mongo.Close(ctx); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
}
