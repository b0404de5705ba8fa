package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PublicBaseURL   string `mapstructure:"public_base_url"`   // 公网访问地址（可选，默认 https://<bucket>.<endpoint>）
}

// TTSConfig 语音合成服务配置
type TTSConfig struct {
	DefaultProvider string            `mapstructure:"default_provider"` // 默认 provider key
	Timeout         time.Duration     `mapstructure:"timeout"`          // 单次 HTTP 调用超时
	ElevenLabs      *ElevenLabsConfig `mapstructure:"elevenlabs,omitempty"`
	Volcengine      *VolcengineConfig `mapstructure:"volcengine,omitempty"`
	Google          *GoogleTTSConfig  `mapstructure:"google,omitempty"`
}

// ElevenLabsConfig ElevenLabs 配置
type ElevenLabsConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	DefaultModelID string `mapstructure:"default_model_id"`
	OutputFormat   string `mapstructure:"output_format"`
}

// VolcengineConfig 火山引擎语音合成配置
type VolcengineConfig struct {
	APIURL      string `mapstructure:"api_url"`
	AccessToken string `mapstructure:"access_token"`
	AppID       string `mapstructure:"app_id"`
	Cluster     string `mapstructure:"cluster"`
	SampleRate  int    `mapstructure:"sample_rate"`
}

// GoogleTTSConfig Google Cloud TTS 配置（REST + API Key）
type GoogleTTSConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SynthesisConfig 批量合成配置
type SynthesisConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`   // worker 数量
	MaxRetries   int           `mapstructure:"max_retries"`   // 单段最大重试次数
	RetryBackoff time.Duration `mapstructure:"retry_backoff"` // 重新入队前的等待时间
	RateLimit    float64       `mapstructure:"rate_limit"`    // 每秒请求数，0 表示不限
	RateBurst    int           `mapstructure:"rate_burst"`
	GapSeconds   float64       `mapstructure:"gap_seconds"`  // 内存拼接时段间静音
	Strategy     string        `mapstructure:"strategy"`     // subprocess, memory
	TempDir      string        `mapstructure:"temp_dir"`     // ffmpeg 临时目录
	TaskMaxAge   time.Duration `mapstructure:"task_max_age"` // 任务保留时长
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path      string `mapstructure:"path"`
	ProbePath string `mapstructure:"probe_path"`
}

// 合并策略
const (
	StrategySubprocess = "subprocess"
	StrategyMemory     = "memory"
)

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	return c.ValidatePipeline()
}

// ValidatePipeline 验证合成流水线相关配置（CLI 子命令不需要 server 配置）
func (c *Config) ValidatePipeline() error {
	switch c.Storage.Type {
	case "local":
		if c.Storage.Local == nil || c.Storage.Local.BasePath == "" {
			return errors.New("storage.local.base_path is required")
		}
	case "oss":
		if c.Storage.OSS == nil || c.Storage.OSS.Bucket == "" {
			return errors.New("storage.oss.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q", c.Storage.Type)
	}

	if c.Synthesis.Concurrency < 1 {
		return errors.New("synthesis.concurrency must be at least 1")
	}
	if c.Synthesis.MaxRetries < 0 {
		return errors.New("synthesis.max_retries must not be negative")
	}
	if c.Synthesis.GapSeconds < 0 {
		return errors.New("synthesis.gap_seconds must not be negative")
	}
	if c.Synthesis.RateLimit < 0 {
		return errors.New("synthesis.rate_limit must not be negative")
	}

	switch c.Synthesis.Strategy {
	case StrategySubprocess, StrategyMemory:
	default:
		return fmt.Errorf("invalid synthesis strategy %q, must be subprocess/memory", c.Synthesis.Strategy)
	}

	return nil
}
