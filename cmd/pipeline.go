package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"podcaster/internal/server"
	podcastsvc "podcaster/internal/service/podcast"
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <script.json>",
	Short: "Synthesize a script, build the timeline and merge the final audio",
	Long: `Run the whole pipeline for one podcast from a JSON script file:

  {
    "podcast_id": "ep1",
    "provider_id": "elevenlabs",
    "voice_map": {"Alice": "voice-id-a", "Bob": "voice-id-b"},
    "segments": [
      {"index": 0, "speaker_tag": "Alice", "text": "..."},
      {"index": 1, "speaker_tag": "Bob", "text": "..."}
    ]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runSynthesize,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <podcast_id>",
	Short: "Build merged_timeline.json from the synthesized segments",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

var mergeCmd = &cobra.Command{
	Use:   "merge <podcast_id>",
	Short: "Concatenate the segment audio in timeline order",
	Args:  cobra.ExactArgs(1),
	RunE:  runMerge,
}

var cleanupTasksCmd = &cobra.Command{
	Use:   "cleanup-tasks",
	Short: "Delete synthesis tasks older than --max-age",
	Args:  cobra.NoArgs,
	RunE:  runCleanupTasks,
}

func init() {
	rootCmd.AddCommand(synthesizeCmd, timelineCmd, mergeCmd, cleanupTasksCmd)

	sf := synthesizeCmd.Flags()
	sf.String("podcast-id", "", "override podcast_id from the script")
	sf.String("provider", "", "override provider_id from the script")
	sf.String("output-format", "", "audio format requested from the provider (mp3/wav)")
	sf.Int("concurrency", 0, "number of synthesis workers (default from config)")
	sf.Int("max-retries", -1, "retries per segment (default from config)")
	sf.String("strategy", "", "concatenation strategy (subprocess/memory)")
	sf.Bool("skip-merge", false, "only synthesize segments and build the timeline")

	mergeCmd.Flags().String("strategy", "", "concatenation strategy (subprocess/memory)")

	cleanupTasksCmd.Flags().Duration("max-age", 0, "delete tasks created before now-max-age (default synthesis.task_max_age)")
}

func loadScript(path string) (*podcastsvc.SynthesisRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var req podcastsvc.SynthesisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &req, nil
}

// pipeline 为 CLI 子命令创建依赖，返回的 ctx 在收到退出信号时取消
func pipeline(cmd *cobra.Command) (context.Context, *server.Dependencies, func(), error) {
	cfg := GetConfig()
	if err := cfg.ValidatePipeline(); err != nil {
		return nil, nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	deps, err := server.NewDependencies(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	cleanup := func() {
		deps.Service.Wait()
		deps.Close(context.Background())
		stop()
	}
	return ctx, deps, cleanup, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	req, err := loadScript(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("podcast-id"); v != "" {
		req.PodcastID = v
	}
	if v, _ := flags.GetString("provider"); v != "" {
		req.ProviderID = v
	}
	if v, _ := flags.GetString("output-format"); v != "" {
		req.OutputFormat = v
	}
	if v, _ := flags.GetInt("concurrency"); v > 0 {
		req.Concurrency = v
	}
	if v, _ := flags.GetInt("max-retries"); v >= 0 {
		req.MaxRetries = &v
	}
	strategy, _ := flags.GetString("strategy")
	skipMerge, _ := flags.GetBool("skip-merge")

	ctx, deps, cleanup, err := pipeline(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	outcome, err := deps.Service.Synthesize(ctx, req)
	if err != nil {
		return err
	}
	log.Info().
		Str("podcast_id", req.PodcastID).
		Int("success", outcome.Summary.Success).
		Int("failed", outcome.Summary.Failed).
		Int("skipped", outcome.Summary.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("segments synthesized")

	result := map[string]any{"synthesis": outcome}
	if !outcome.Success {
		_ = printJSON(cmd, result)
		return fmt.Errorf("%d segment(s) failed, retry indices %v", outcome.Summary.Failed, outcome.Summary.RetryableIndices)
	}

	entries, err := deps.Service.BuildTimeline(ctx, req.PodcastID)
	if err != nil {
		return err
	}
	result["timeline"] = entries

	if !skipMerge {
		artifact, err := deps.Service.Merge(ctx, req.PodcastID, strategy)
		if err != nil {
			return err
		}
		result["artifact"] = artifact
	}
	return printJSON(cmd, result)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	ctx, deps, cleanup, err := pipeline(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := deps.Service.BuildTimeline(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, entries)
}

func runMerge(cmd *cobra.Command, args []string) error {
	strategy, _ := cmd.Flags().GetString("strategy")

	ctx, deps, cleanup, err := pipeline(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	artifact, err := deps.Service.Merge(ctx, args[0], strategy)
	if err != nil {
		return err
	}
	return printJSON(cmd, artifact)
}

func runCleanupTasks(cmd *cobra.Command, args []string) error {
	maxAge, _ := cmd.Flags().GetDuration("max-age")
	if maxAge <= 0 {
		maxAge = GetConfig().Synthesis.TaskMaxAge
	}

	ctx, deps, cleanup, err := pipeline(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := deps.Service.CleanupTasks(ctx, maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d task(s)\n", n)
	return nil
}
