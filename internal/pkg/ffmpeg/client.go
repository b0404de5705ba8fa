package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client FFmpeg 客户端
// 用于封装 FFmpeg 命令调用
type Client struct {
	ffmpegPath  string // FFmpeg 可执行文件路径（默认: ffmpeg）
	ffprobePath string // FFprobe 可执行文件路径（默认: ffprobe）
}

// NewClient 创建 FFmpeg 客户端
func NewClient(ffmpegPath, ffprobePath string) *Client {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// ExecError ffmpeg / ffprobe 非零退出
type ExecError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// AudioInfo 音频信息
type AudioInfo struct {
	Duration   float64 // 时长（秒）
	FormatName string
	BitRate    int64
}

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// GetAudioInfo 获取音频信息
func (c *Client) GetAudioInfo(ctx context.Context, audioPath string) (*AudioInfo, error) {
	// ffprobe -v error -show_entries format=duration,format_name,bit_rate -of json audio.mp3
	output, err := c.run(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration,format_name,bit_rate",
		"-of", "json",
		audioPath,
	)
	if err != nil {
		return nil, err
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*AudioInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info AudioInfo
	info.FormatName = probe.Format.FormatName
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
		}
		info.Duration = d
	}
	if probe.Format.BitRate != "" {
		info.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	}
	return &info, nil
}

// ConcatAudios 合并多个音频文件
// 使用 concat demuxer，list 文件写在系统临时目录，任何路径上都会被删除
func (c *Client) ConcatAudios(ctx context.Context, audioPaths []string, outputPath string) error {
	if len(audioPaths) == 0 {
		return fmt.Errorf("no audios to concat")
	}

	manifest, err := BuildConcatList(audioPaths)
	if err != nil {
		return err
	}

	file, err := os.CreateTemp("", "concat_list_*.txt")
	if err != nil {
		return fmt.Errorf("create concat list file: %w", err)
	}
	concatListFile := file.Name()
	defer os.Remove(concatListFile) // 清理临时文件

	if _, err := file.WriteString(manifest); err != nil {
		file.Close()
		return fmt.Errorf("write concat list file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close concat list file: %w", err)
	}

	// ffmpeg -y -f concat -safe 0 -i concat_list.txt -c copy output.mp3
	if _, err := c.run(ctx, c.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatListFile,
		"-c", "copy", // 使用 copy 避免重新编码
		outputPath,
	); err != nil {
		return err
	}

	log.Info().
		Int("count", len(audioPaths)).
		Str("output", outputPath).
		Msg("音频合并成功")

	return nil
}

// BuildConcatList 生成 concat demuxer 的 list 内容
// 路径转为绝对路径，并按 ffmpeg 的引号规则转义单引号
func BuildConcatList(paths []string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("get absolute path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`))
	}
	return b.String(), nil
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ExecError{
			Command: filepath.Base(name),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}
