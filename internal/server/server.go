package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"podcaster/internal/config"
	"podcaster/internal/handler"
	podcastHandler "podcaster/internal/handler/podcast"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/storage/local"
	"podcaster/internal/server/middleware"
	podcastsvc "podcaster/internal/service/podcast"
)

// Server HTTP 服务器
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	deps    *Dependencies
	service *podcastsvc.Service
}

// New 创建服务器实例
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		deps:    deps,
		service: deps.Service,
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.deps.ReadyChecks())
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储的文件通过 /storage 访问，PublicURL 指向这里
	if ls, ok := s.deps.Storage.(*local.LocalStorage); ok {
		s.engine.Static("/storage", ls.BasePath())
	}

	podcastHdl := podcastHandler.NewHandler(s.service)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		podcasts := v1.Group("/podcasts/:podcast_id")
		{
			podcasts.POST("/synthesis", podcastHdl.Synthesize)
			podcasts.POST("/timeline", podcastHdl.BuildTimeline)
			podcasts.POST("/merge", podcastHdl.Merge)
			podcasts.GET("/segments/status", podcastHdl.SegmentStatuses)
			podcasts.GET("/tasks", podcastHdl.ListTasks)
		}

		v1.GET("/synthesis-tasks/:task_id", podcastHdl.GetTask)
		v1.GET("/tts/:provider/voices", podcastHdl.ListVoices)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// 等待后台合成任务写完结果再关闭连接
		log.Info().Msg("waiting for background synthesis tasks")
		s.service.Wait()
		s.deps.Close(context.Background())

		if err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		s.deps.Close(context.Background())
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Storage 获取存储实例
func (s *Server) Storage() storage.Storage {
	return s.deps.Storage
}
