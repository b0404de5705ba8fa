package podcast

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"

	"podcaster/internal/pkg/audiomerge"
	"podcaster/internal/pkg/cache"
	"podcaster/internal/pkg/storage/local"
	"podcaster/internal/pkg/tts"
)

const testRate = 8000

// wavOf 生成指定时长的单声道 WAV
func wavOf(seconds float64) []byte {
	frames := int(math.Round(seconds * testRate))
	data := make([]int, frames)
	for i := range data {
		data[i] = 1000
	}
	out, err := audiomerge.EncodeWAV(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: audiomerge.BitDepth,
	})
	if err != nil {
		panic(err)
	}
	return out
}

type speechFunc func(ctx context.Context, req *tts.SpeechRequest, call int) (*tts.SpeechResponse, *tts.Alignment, error)

// fakeProvider 只实现 GenerateSpeech
type fakeProvider struct {
	id    string
	speak speechFunc

	mu    sync.Mutex
	calls map[string]int // text -> 调用次数
}

func newFakeProvider(id string, speak speechFunc) *fakeProvider {
	return &fakeProvider{id: id, speak: speak, calls: make(map[string]int)}
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) call(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, *tts.Alignment, error) {
	p.mu.Lock()
	p.calls[req.Text]++
	n := p.calls[req.Text]
	p.mu.Unlock()
	return p.speak(ctx, req, n)
}

func (p *fakeProvider) GenerateSpeech(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, error) {
	resp, _, err := p.call(ctx, req)
	return resp, err
}

func (p *fakeProvider) Calls(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func (p *fakeProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// fakeTimestampProvider 额外实现 GenerateSpeechWithTimestamps
type fakeTimestampProvider struct {
	*fakeProvider
}

func (p *fakeTimestampProvider) GenerateSpeechWithTimestamps(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, *tts.Alignment, error) {
	return p.call(ctx, req)
}

// withDurations 按文本返回固定时长的音频和字符级对齐
func withDurations(durations map[string]float64) speechFunc {
	return func(ctx context.Context, req *tts.SpeechRequest, call int) (*tts.SpeechResponse, *tts.Alignment, error) {
		d := durations[req.Text]
		if d == 0 {
			d = 0.5
		}
		return &tts.SpeechResponse{Audio: wavOf(d), ContentType: "audio/wav", DurationSeconds: d},
			&tts.Alignment{
				Characters:                 []string{"x"},
				CharacterStartTimesSeconds: []float64{0},
				CharacterEndTimesSeconds:   []float64{d},
			}, nil
	}
}

func alwaysFail(kind tts.ErrorKind) speechFunc {
	return func(ctx context.Context, req *tts.SpeechRequest, call int) (*tts.SpeechResponse, *tts.Alignment, error) {
		return nil, nil, tts.NewProviderError("fake", kind, "boom")
	}
}

type testEnv struct {
	storage  *local.LocalStorage
	registry *tts.Registry
}

func newTestEnv(t *testing.T, providers ...tts.Provider) *testEnv {
	t.Helper()
	store, err := local.NewLocalStorage(t.TempDir(), "http://localhost/storage")
	if err != nil {
		t.Fatal(err)
	}
	registry := tts.NewRegistry()
	for _, p := range providers {
		p := p
		registry.Register(p.ID(), func() (tts.Provider, error) { return p, nil })
	}
	return &testEnv{storage: store, registry: registry}
}

func (e *testEnv) orchestrator(concurrency, maxRetries int) *Orchestrator {
	o := NewOrchestrator(e.registry, e.storage, OrchestratorOptions{Concurrency: concurrency, MaxRetries: maxRetries})
	o.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return o
}

func intPtr(v int) *int { return &v }

// memoryCache 模拟 RedisCache 的 JSON 语义
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.sets++
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}
