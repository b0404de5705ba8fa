package podcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"podcaster/internal/config"
	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/ffmpeg"
	"podcaster/internal/pkg/storage"
)

// AudioTool ffmpeg.Client 实现了该接口
type AudioTool interface {
	ConcatAudios(ctx context.Context, audioPaths []string, outputPath string) error
	GetAudioInfo(ctx context.Context, audioPath string) (*ffmpeg.AudioInfo, error)
}

// SubprocessConcatenator 调用 ffmpeg concat demuxer 无损拼接
// 本地存储直接使用文件路径，远程存储先下载到临时目录
type SubprocessConcatenator struct {
	storage storage.Storage
	tool    AudioTool
	tempDir string
}

// NewSubprocessConcatenator 创建 ffmpeg 合并器
func NewSubprocessConcatenator(store storage.Storage, tool AudioTool, tempDir string) *SubprocessConcatenator {
	return &SubprocessConcatenator{storage: store, tool: tool, tempDir: tempDir}
}

// Concatenate 实现 Concatenator
func (c *SubprocessConcatenator) Concatenate(ctx context.Context, podcastID string, entries []podcast.TimelineEntry) (*Artifact, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTimeline
	}

	outKey := FinalKey(podcastID, audioExt(entries))

	var (
		artifact *Artifact
		err      error
	)
	if lp, ok := c.storage.(storage.LocalPather); ok {
		artifact, err = c.concatLocal(ctx, lp, outKey, entries)
	} else {
		artifact, err = c.concatRemote(ctx, outKey, entries)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("podcast_id", podcastID).
		Str("output", outKey).
		Int("segments", len(entries)).
		Msg("最终音频合并成功")
	return artifact, nil
}

func (c *SubprocessConcatenator) concatLocal(ctx context.Context, lp storage.LocalPather, outKey string, entries []podcast.TimelineEntry) (*Artifact, error) {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		p, err := lp.LocalPath(e.AudioFile)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("segment audio %s: %w", e.AudioFile, storage.ErrNotFound)
		}
		paths = append(paths, p)
	}

	outPath, err := lp.LocalPath(outKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	// ffmpeg 先写同目录下的临时文件，成功后再 rename，失败时不留下半个成品
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".concat-*"+filepath.Ext(outPath))
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.run(ctx, paths, tmpPath); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, &ConcatenationError{Strategy: config.StrategySubprocess, Err: fmt.Errorf("move output: %w", err)}
	}

	return &Artifact{
		Key:      outKey,
		URL:      c.storage.PublicURL(outKey),
		Duration: c.probe(ctx, outPath, entries),
		Strategy: config.StrategySubprocess,
		Segments: len(entries),
	}, nil
}

func (c *SubprocessConcatenator) concatRemote(ctx context.Context, outKey string, entries []podcast.TimelineEntry) (*Artifact, error) {
	workDir, err := os.MkdirTemp(c.tempDir, "concat-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	ext := audioExt(entries)
	paths := make([]string, 0, len(entries))
	for i, e := range entries {
		p := filepath.Join(workDir, fmt.Sprintf("%04d%s", i, filepath.Ext(e.AudioFile)))
		if err := c.download(ctx, e.AudioFile, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	outPath := filepath.Join(workDir, "final."+ext)
	if err := c.run(ctx, paths, outPath); err != nil {
		return nil, err
	}
	duration := c.probe(ctx, outPath, entries)

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	url, err := c.storage.Upload(ctx, outKey, f, storage.ContentTypeByExt(outKey))
	if err != nil {
		return nil, fmt.Errorf("upload final audio: %w", err)
	}

	return &Artifact{
		Key:      outKey,
		URL:      url,
		Duration: duration,
		Strategy: config.StrategySubprocess,
		Segments: len(entries),
	}, nil
}

func (c *SubprocessConcatenator) download(ctx context.Context, key, dst string) error {
	rc, err := c.storage.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}
	return f.Close()
}

func (c *SubprocessConcatenator) run(ctx context.Context, paths []string, outPath string) error {
	if err := c.tool.ConcatAudios(ctx, paths, outPath); err != nil {
		cerr := &ConcatenationError{Strategy: config.StrategySubprocess, Err: err}
		var execErr *ffmpeg.ExecError
		if errors.As(err, &execErr) {
			cerr.Stderr = execErr.Stderr
		}
		return cerr
	}
	return nil
}

// probe 用 ffprobe 读取时长，失败时退回时间线总时长
func (c *SubprocessConcatenator) probe(ctx context.Context, outPath string, entries []podcast.TimelineEntry) float64 {
	info, err := c.tool.GetAudioInfo(ctx, outPath)
	if err != nil || info.Duration <= 0 {
		if err != nil {
			log.Warn().Err(err).Str("output", outPath).Msg("ffprobe 读取时长失败")
		}
		return totalDuration(entries)
	}
	return info.Duration
}
