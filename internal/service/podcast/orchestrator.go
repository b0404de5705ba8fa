package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/audiomerge"
	"podcaster/internal/pkg/storage"
	"podcaster/internal/pkg/tts"
	"podcaster/internal/pkg/workqueue"
)

const (
	DefaultConcurrency = 5
	DefaultMaxRetries  = 2
)

// ProviderRegistry 按 key 获取 provider，tts.Registry 实现了该接口
type ProviderRegistry interface {
	Get(id string) (tts.Provider, error)
}

// SynthesisRequest 一次批量合成
type SynthesisRequest struct {
	PodcastID    string            `json:"podcast_id"`
	Segments     []podcast.Segment `json:"segments"`
	ProviderID   string            `json:"provider_id,omitempty"` // 段落未指定时使用
	VoiceMap     map[string]string `json:"voice_map,omitempty"`   // speaker -> voice_id
	Concurrency  int               `json:"concurrency,omitempty"`
	MaxRetries   *int              `json:"max_retries,omitempty"` // nil 使用默认值，0 表示不重试
	OutputFormat string            `json:"output_format,omitempty"`
	BaseStamp    int64             `json:"base_stamp,omitempty"` // 文件名时间戳基准（毫秒），0 表示当前时间
}

// ResultObserver 接收段落结果
// terminal=false 表示失败后即将重试；调用是串行的
type ResultObserver func(result podcast.SynthesisResult, terminal bool)

// OrchestratorOptions 编排器参数
type OrchestratorOptions struct {
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	Limiter      *rate.Limiter // 可选，所有 worker 共享
}

// Orchestrator 段落合成编排
// 有界 worker 池消费 FIFO 队列，失败的段落以 retries+1 重新入队
type Orchestrator struct {
	registry ProviderRegistry
	storage  storage.Storage
	opts     OrchestratorOptions
	now      func() time.Time
}

// NewOrchestrator 创建编排器
func NewOrchestrator(registry ProviderRegistry, store storage.Storage, opts OrchestratorOptions) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Orchestrator{
		registry: registry,
		storage:  store,
		opts:     opts,
		now:      time.Now,
	}
}

// workItem 队列元素，pos 是段落在请求中的位置
type workItem struct {
	pos     int
	retries int
}

// batch 单次 Run 的共享状态
type batch struct {
	req        *SynthesisRequest
	maxRetries int
	baseStamp  int64
	queue      *workqueue.Queue[workItem]
	remaining  atomic.Int64

	// 每个位置只由当前持有该段落的 worker 写入
	results []podcast.SynthesisResult
	done    []bool

	mu       sync.Mutex
	halted   map[string]*tts.ProviderError
	alerts   []podcast.ProviderAlert
	observer ResultObserver
}

// ValidateRequest 校验请求
func ValidateRequest(req *SynthesisRequest) error {
	if err := ValidatePodcastID(req.PodcastID); err != nil {
		return err
	}
	if len(req.Segments) == 0 {
		return ErrNoSegments
	}
	seen := make(map[int]bool, len(req.Segments))
	for i := range req.Segments {
		seg := &req.Segments[i]
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if seen[seg.Index] {
			return fmt.Errorf("%w: duplicate segment index %d", ErrInvalidRequest, seg.Index)
		}
		seen[seg.Index] = true
	}
	if req.MaxRetries != nil && *req.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Run 合成所有段落，单个段落失败不会中断批次
// 返回的 results 按 index 排序；只有请求本身非法时返回 error
func (o *Orchestrator) Run(ctx context.Context, req *SynthesisRequest, observer ResultObserver) (*podcast.SynthesisOutcome, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	n := len(req.Segments)
	b := &batch{
		req:        req,
		maxRetries: o.opts.MaxRetries,
		baseStamp:  req.BaseStamp,
		queue:      workqueue.New[workItem](),
		results:    make([]podcast.SynthesisResult, n),
		done:       make([]bool, n),
		halted:     make(map[string]*tts.ProviderError),
		observer:   observer,
	}
	if req.MaxRetries != nil {
		b.maxRetries = *req.MaxRetries
	}
	if b.baseStamp == 0 {
		b.baseStamp = o.now().UnixMilli()
	}
	b.remaining.Store(int64(n))

	for pos := range req.Segments {
		b.queue.Push(workItem{pos: pos})
	}

	concurrency := o.opts.Concurrency
	if req.Concurrency > 0 {
		concurrency = req.Concurrency
	}
	workers := min(concurrency, n)

	logger := log.With().Str("podcast_id", req.PodcastID).Logger()
	logger.Info().
		Int("segments", n).
		Int("workers", workers).
		Int("max_retries", b.maxRetries).
		Msg("开始批量合成")

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				item, err := b.queue.Pop(ctx)
				if err != nil {
					return nil // 队列关闭或 ctx 取消
				}
				o.process(ctx, b, item)
			}
		})
	}
	_ = g.Wait()

	// ctx 取消时仍未结束的段落记为失败
	if err := ctx.Err(); err != nil {
		for pos := range b.done {
			if b.done[pos] {
				continue
			}
			seg := &req.Segments[pos]
			b.results[pos] = podcast.SynthesisResult{
				Index:      seg.Index,
				Speaker:    seg.SpeakerTag,
				ProviderID: o.providerFor(req, seg),
				Status:     podcast.ResultStatusFailed,
				Error:      err.Error(),
				ErrorKind:  tts.ErrorKindUnknown,
			}
			b.done[pos] = true
			b.notify(b.results[pos], true)
		}
	}

	outcome := summarize(b.results, b.alerts)
	logger.Info().
		Int("success", outcome.Summary.Success).
		Int("failed", outcome.Summary.Failed).
		Int("skipped", outcome.Summary.Skipped).
		Msg("批量合成结束")
	return outcome, nil
}

func (o *Orchestrator) providerFor(req *SynthesisRequest, seg *podcast.Segment) string {
	id := seg.ProviderID
	if id == "" {
		id = req.ProviderID
	}
	return strings.ToLower(strings.TrimSpace(id))
}

// process 处理一次出队，要么写入最终结果，要么重新入队
func (o *Orchestrator) process(ctx context.Context, b *batch, item workItem) {
	seg := &b.req.Segments[item.pos]
	providerID := o.providerFor(b.req, seg)
	result := podcast.SynthesisResult{
		Index:      seg.Index,
		Speaker:    seg.SpeakerTag,
		ProviderID: providerID,
		RetryCount: item.retries,
	}
	logger := log.With().
		Str("podcast_id", b.req.PodcastID).
		Int("segment_index", seg.Index).
		Str("provider", providerID).
		Int("retry", item.retries).
		Logger()

	if err := ctx.Err(); err != nil {
		result.Status = podcast.ResultStatusFailed
		result.Error = err.Error()
		result.ErrorKind = tts.ErrorKindUnknown
		b.finish(item.pos, result)
		return
	}

	voiceID := seg.VoiceID
	if voiceID == "" {
		voiceID = b.req.VoiceMap[seg.SpeakerTag]
	}
	if voiceID == "" {
		verr := &VoiceMappingError{Index: seg.Index, Speaker: seg.SpeakerTag}
		logger.Warn().Err(verr).Msg("未找到音色，跳过段落")
		result.Status = podcast.ResultStatusSkipped
		result.Error = verr.Error()
		b.finish(item.pos, result)
		return
	}

	if perr := b.haltedError(providerID); perr != nil {
		result.Status = podcast.ResultStatusFailed
		result.Error = fmt.Sprintf("provider %s halted: %s", providerID, perr.Error())
		result.ErrorKind = perr.Kind
		b.finish(item.pos, result)
		return
	}

	provider, err := o.registry.Get(providerID)
	if err != nil {
		// 配置错误不会因重试而恢复
		logger.Error().Err(err).Msg("获取 TTS provider 失败")
		result.Status = podcast.ResultStatusFailed
		result.Error = err.Error()
		result.ErrorKind = tts.KindOf(err)
		b.finish(item.pos, result)
		return
	}

	if err := o.attempt(ctx, b, seg, provider, voiceID, &result); err != nil {
		o.handleFailure(ctx, b, item, result, err)
		return
	}

	logger.Info().Str("audio", result.AudioRef).Int64("duration_ms", result.DurationMs).Msg("段落合成成功")
	result.Status = podcast.ResultStatusSuccess
	b.finish(item.pos, result)
}

// attempt 调用 provider 并写入音频与对齐文件
func (o *Orchestrator) attempt(ctx context.Context, b *batch, seg *podcast.Segment, provider tts.Provider, voiceID string, result *podcast.SynthesisResult) error {
	if o.opts.Limiter != nil {
		if err := o.opts.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	speechReq := &tts.SpeechRequest{
		Text:            seg.Text,
		VoiceID:         voiceID,
		ModelID:         seg.ModelID,
		LanguageCode:    seg.LanguageCode,
		OutputFormat:    b.req.OutputFormat,
		ProviderOptions: seg.ProviderOptions,
	}

	var (
		resp      *tts.SpeechResponse
		alignment *tts.Alignment
		err       error
	)
	if tp, ok := provider.(tts.TimestampProvider); ok {
		resp, alignment, err = tp.GenerateSpeechWithTimestamps(ctx, speechReq)
	} else {
		resp, err = provider.GenerateSpeech(ctx, speechReq)
	}
	if err != nil {
		return err
	}
	if resp == nil || len(resp.Audio) == 0 {
		return tts.NewProviderError(provider.ID(), tts.ErrorKindUnknown, "empty audio")
	}

	duration := resp.DurationSeconds
	if !alignment.Empty() {
		duration = alignment.Duration()
	}
	if duration <= 0 {
		probed, perr := audiomerge.Duration(resp.Audio)
		if perr != nil || probed <= 0 {
			// 没有时长的段落进不了时间线，不能记为成功
			return &tts.ProviderError{
				Provider: provider.ID(),
				Kind:     tts.ErrorKindInvalidParams,
				Message:  fmt.Sprintf("cannot determine duration of %q audio", resp.ContentType),
				Err:      perr,
			}
		}
		duration = probed
	}

	index := seg.Index
	doc := tts.AlignmentDocument{
		SegmentIndex:    &index,
		Speaker:         seg.SpeakerTag,
		Provider:        provider.ID(),
		VoiceID:         voiceID,
		Text:            seg.Text,
		DurationSeconds: duration,
	}
	if alignment != nil {
		doc.Alignment = *alignment
	}
	docBytes, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal alignment: %w", err)
	}

	base := segmentBaseName(seg.SpeakerTag, b.baseStamp+int64(seg.Index))
	ext := storage.ExtByContentType(resp.ContentType, "mp3")
	audioKey := storage.Join(SegmentsDir(b.req.PodcastID), base+"."+ext)
	alignmentKey := storage.Join(SegmentsDir(b.req.PodcastID), base+alignmentExt)

	// 先写音频再写对齐文件，只有音频存在时段落状态为 failed
	audioURL, err := storage.WriteBytes(ctx, o.storage, audioKey, resp.Audio, resp.ContentType)
	if err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	if _, err := storage.WriteBytes(ctx, o.storage, alignmentKey, docBytes, "application/json"); err != nil {
		return fmt.Errorf("write alignment: %w", err)
	}

	result.ProviderID = provider.ID()
	result.AudioRef = audioKey
	result.AudioURL = audioURL
	result.AlignmentRef = alignmentKey
	result.DurationMs = int64(math.Round(duration * 1000))
	return nil
}

func (o *Orchestrator) handleFailure(ctx context.Context, b *batch, item workItem, result podcast.SynthesisResult, err error) {
	logger := log.With().
		Str("podcast_id", b.req.PodcastID).
		Int("segment_index", result.Index).
		Str("provider", result.ProviderID).
		Int("retry", item.retries).
		Logger()

	result.Status = podcast.ResultStatusFailed
	result.Error = err.Error()
	result.ErrorKind = tts.KindOf(err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Error = ctxErr.Error()
		result.ErrorKind = tts.ErrorKindUnknown
		b.finish(item.pos, result)
		return
	}

	if result.ErrorKind.HaltsProvider() {
		var perr *tts.ProviderError
		if !errors.As(err, &perr) {
			perr = &tts.ProviderError{Provider: result.ProviderID, Kind: result.ErrorKind, Message: err.Error()}
		}
		b.halt(result.ProviderID, perr, result.Index)
		logger.Error().Err(err).Str("kind", string(result.ErrorKind)).Msg("厂商不可用，本批次停止调用")
		b.finish(item.pos, result)
		return
	}

	if item.retries >= b.maxRetries {
		logger.Error().Err(err).Str("kind", string(result.ErrorKind)).Msg("段落合成失败，已达重试上限")
		b.finish(item.pos, result)
		return
	}

	logger.Warn().Err(err).Str("kind", string(result.ErrorKind)).Msg("段落合成失败，重新入队")
	b.notify(result, false)

	if o.opts.RetryBackoff > 0 {
		timer := time.NewTimer(o.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Error = ctx.Err().Error()
			result.ErrorKind = tts.ErrorKindUnknown
			b.finish(item.pos, result)
			return
		case <-timer.C:
		}
	}
	if !b.queue.Push(workItem{pos: item.pos, retries: item.retries + 1}) {
		// 队列已关闭只会发生在所有段落都结束之后，这里按失败处理
		b.finish(item.pos, result)
	}
}

// finish 写入最终结果，最后一个段落结束时关闭队列
func (b *batch) finish(pos int, result podcast.SynthesisResult) {
	b.results[pos] = result
	b.done[pos] = true
	b.notify(result, true)
	if b.remaining.Add(-1) == 0 {
		b.queue.Close()
	}
}

func (b *batch) notify(result podcast.SynthesisResult, terminal bool) {
	if b.observer == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer(result, terminal)
}

func (b *batch) haltedError(providerID string) *tts.ProviderError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.halted[providerID]
}

func (b *batch) halt(providerID string, perr *tts.ProviderError, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.halted[providerID]; ok {
		return
	}
	b.halted[providerID] = perr
	b.alerts = append(b.alerts, podcast.ProviderAlert{
		ProviderID:   providerID,
		Kind:         perr.Kind,
		Message:      perr.Error(),
		SegmentIndex: index,
	})
}

// summarize 汇总结果，results 按 index 排序
func summarize(results []podcast.SynthesisResult, alerts []podcast.ProviderAlert) *podcast.SynthesisOutcome {
	sorted := make([]podcast.SynthesisResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	summary := podcast.SynthesisSummary{
		Total:            len(sorted),
		RetryableIndices: []int{},
		Alerts:           alerts,
	}
	for _, r := range sorted {
		switch r.Status {
		case podcast.ResultStatusSuccess:
			summary.Success++
			continue
		case podcast.ResultStatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.RetryableIndices = append(summary.RetryableIndices, r.Index)
	}

	return &podcast.SynthesisOutcome{
		Success: summary.Failed == 0,
		Results: sorted,
		Summary: summary,
	}
}
