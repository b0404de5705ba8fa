package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/config"
)

// fakeElevenLabs 每段返回 0.5 秒 24kHz 静音
func fakeElevenLabs() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/with-timestamps") || r.Header.Get("xi-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"bad key"}}`))
			return
		}
		pcm := make([]byte, 24000) // 12000 个 16-bit 采样
		_ = json.NewEncoder(w).Encode(map[string]any{
			"audio_base64": base64.StdEncoding.EncodeToString(pcm),
			"alignment": map[string]any{
				"characters":                    []string{"h", "i"},
				"character_start_times_seconds": []float64{0, 0.25},
				"character_end_times_seconds":   []float64{0.25, 0.5},
			},
		})
	}))
}

func testConfig(t *testing.T, vendorURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Mode: "test"},
		Log:    config.LogConfig{Level: "error"},
		Storage: config.StorageConfig{
			Type:  "local",
			Local: &config.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/storage"},
		},
		TTS: config.TTSConfig{
			DefaultProvider: "elevenlabs",
			Timeout:         5 * time.Second,
			ElevenLabs: &config.ElevenLabsConfig{
				APIKey:       "test-key",
				BaseURL:      vendorURL,
				OutputFormat: "pcm_24000",
			},
		},
		Synthesis: config.SynthesisConfig{
			Concurrency: 2,
			MaxRetries:  1,
			GapSeconds:  0.5,
			Strategy:    config.StrategyMemory,
		},
	}
}

func request(srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestServerPipeline(t *testing.T) {
	Convey("HTTP 流水线：合成 -> 时间线 -> 合并", t, func() {
		vendor := fakeElevenLabs()
		defer vendor.Close()

		srv, err := New(context.Background(), testConfig(t, vendor.URL))
		So(err, ShouldBeNil)

		body := map[string]any{
			"segments": []map[string]any{
				{"index": 0, "speaker_tag": "Alice", "text": "hello"},
				{"index": 1, "speaker_tag": "Bob", "text": "hi"},
			},
			"voice_map": map[string]string{"Alice": "voice-a", "Bob": "voice-b"},
		}

		w, resp := request(srv, http.MethodPost, "/api/v1/podcasts/ep1/synthesis", body)
		So(w.Code, ShouldEqual, http.StatusOK)
		data := resp["data"].(map[string]any)
		So(data["success"], ShouldEqual, true)

		w, resp = request(srv, http.MethodPost, "/api/v1/podcasts/ep1/timeline", nil)
		So(w.Code, ShouldEqual, http.StatusOK)
		So(resp["data"].(map[string]any)["duration"], ShouldEqual, 1.0)

		w, _ = request(srv, http.MethodGet, "/api/v1/podcasts/ep1/segments/status", nil)
		So(w.Code, ShouldEqual, http.StatusOK)

		w, resp = request(srv, http.MethodPost, "/api/v1/podcasts/ep1/merge", nil)
		So(w.Code, ShouldEqual, http.StatusOK)
		artifact := resp["data"].(map[string]any)["artifact"].(map[string]any)
		So(artifact["key"], ShouldEqual, "podcasts/ep1/ep1_final.wav")
		So(artifact["duration"], ShouldAlmostEqual, 1.5, 0.001)

		Convey("本地存储的文件可以通过 /storage 下载", func() {
			w, _ := request(srv, http.MethodGet, "/storage/podcasts/ep1/ep1_final.wav", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.Len(), ShouldBeGreaterThan, 44)
		})

		Convey("异步任务可以查询", func() {
			body["async"] = true
			w, resp := request(srv, http.MethodPost, "/api/v1/podcasts/ep2/synthesis", body)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			task := resp["data"].(map[string]any)["task"].(map[string]any)
			taskID := task["task_id"].(string)

			srv.service.Wait()
			w, resp = request(srv, http.MethodGet, "/api/v1/synthesis-tasks/"+taskID, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			got := resp["data"].(map[string]any)["task"].(map[string]any)
			So(got["status"], ShouldEqual, "completed")

			w, resp = request(srv, http.MethodGet, "/api/v1/podcasts/ep2/tasks", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(resp["data"].(map[string]any)["total"], ShouldEqual, 1.0)
		})

		Convey("健康检查", func() {
			w, _ := request(srv, http.MethodGet, "/health", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			w, _ = request(srv, http.MethodGet, "/ready", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
