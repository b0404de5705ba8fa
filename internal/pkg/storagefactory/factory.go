package storagefactory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"podcaster/internal/config"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/storage/local"
	"podcaster/internal/pkg/storage/oss"
)

// NewStorage 根据 storage.type 创建段落音频与合成产物的存储
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case string(storage.StorageTypeLocal):
		if cfg.Local == nil || cfg.Local.BasePath == "" {
			return nil, errors.New("storage.local.base_path is required")
		}
		s, err := local.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("type", cfg.Type).Str("base_path", s.BasePath()).Msg("storage ready")
		return s, nil

	case string(storage.StorageTypeOSS):
		if cfg.OSS == nil || cfg.OSS.Bucket == "" || cfg.OSS.Endpoint == "" {
			return nil, errors.New("storage.oss.endpoint and storage.oss.bucket are required")
		}
		s, err := oss.NewOSSStorage(
			cfg.OSS.Endpoint,
			cfg.OSS.Bucket,
			cfg.OSS.AccessKeyID,
			cfg.OSS.AccessKeySecret,
			cfg.OSS.PublicBaseURL,
		)
		if err != nil {
			return nil, err
		}
		log.Info().Str("type", cfg.Type).Str("bucket", cfg.OSS.Bucket).Msg("storage ready")
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}
