package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"podcaster/internal/config"
	"podcaster/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "podcaster",
	Short: "Podcaster - multi-speaker podcast speech pipeline",
	Long: `Podcaster turns a multi-speaker script into podcast audio.
It synthesizes every segment through a TTS provider, builds a timeline
from the per-segment timestamps and concatenates the final audio.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.podcaster")
	}

	// 环境变量设置
	viper.SetEnvPrefix("PODCASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()
	bindSecrets()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "10m")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB / Redis 默认不连接，任务保存在进程内
	viper.SetDefault("mongo.uri", "")
	viper.SetDefault("mongo.database", "podcaster")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data")
	viper.SetDefault("storage.local.base_url", "http://localhost:8080/storage")

	// TTS
	viper.SetDefault("tts.default_provider", "elevenlabs")
	viper.SetDefault("tts.timeout", "60s")

	// Synthesis
	viper.SetDefault("synthesis.concurrency", 5)
	viper.SetDefault("synthesis.max_retries", 2)
	viper.SetDefault("synthesis.retry_backoff", "1s")
	viper.SetDefault("synthesis.rate_limit", 0)
	viper.SetDefault("synthesis.rate_burst", 1)
	viper.SetDefault("synthesis.gap_seconds", 0.5)
	viper.SetDefault("synthesis.strategy", config.StrategySubprocess)
	viper.SetDefault("synthesis.task_max_age", "24h")

	// FFmpeg
	viper.SetDefault("ffmpeg.path", "ffmpeg")
	viper.SetDefault("ffmpeg.probe_path", "ffprobe")
}

// bindSecrets 厂商凭证只从环境变量或配置文件读取
// 只绑定不设默认值，未配置的厂商小节在反序列化后保持 nil
func bindSecrets() {
	for _, key := range []string{
		"tts.elevenlabs.api_key",
		"tts.volcengine.access_token",
		"tts.volcengine.app_id",
		"tts.google.api_key",
		"storage.oss.access_key_id",
		"storage.oss.access_key_secret",
	} {
		_ = viper.BindEnv(key)
	}
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
