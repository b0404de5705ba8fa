package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"podcaster/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the podcast synthesis API server",
	Long: `Start the HTTP API: segment synthesis (sync or async), timeline building,
audio merging, segment status and task queries. Local storage is served under /storage.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()

	flags.StringP("host", "H", "0.0.0.0", "server host")
	flags.IntP("port", "p", 8080, "server port")
	flags.String("mode", "release", "server mode (debug/release/test)")

	flags.String("tts-provider", "elevenlabs", "default TTS provider (elevenlabs/volcengine/google)")
	flags.Int("concurrency", 5, "number of synthesis workers")
	flags.String("strategy", "subprocess", "concatenation strategy (subprocess/memory)")
	flags.Float64("gap-seconds", 0.5, "silence between segments for the memory strategy")
	flags.String("storage-dir", "./data", "base path of local storage")

	flags.String("log-level", "info", "log level (trace/debug/info/warn/error/fatal)")
	flags.String("log-format", "console", "log format (json/console)")

	_ = viper.BindPFlag("server.host", flags.Lookup("host"))
	_ = viper.BindPFlag("server.port", flags.Lookup("port"))
	_ = viper.BindPFlag("server.mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("tts.default_provider", flags.Lookup("tts-provider"))
	_ = viper.BindPFlag("synthesis.concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("synthesis.strategy", flags.Lookup("strategy"))
	_ = viper.BindPFlag("synthesis.gap_seconds", flags.Lookup("gap-seconds"))
	_ = viper.BindPFlag("storage.local.base_path", flags.Lookup("storage-dir"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().
		Str("addr", addr).
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Type).
		Str("tts_provider", cfg.TTS.DefaultProvider).
		Str("strategy", cfg.Synthesis.Strategy).
		Msg("starting server")

	return srv.Run(ctx, addr)
}
