package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"podcaster/internal/pkg/audiomerge"
	"podcaster/internal/pkg/tts"
)

// ProviderID 注册表中的 key
const ProviderID = "elevenlabs"

const (
	defaultBaseURL      = "https://api.elevenlabs.io/v1"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
)

// Config ElevenLabs 配置
type Config struct {
	APIKey         string
	BaseURL        string
	DefaultModelID string
	OutputFormat   string // 例如 mp3_44100_128 / pcm_24000
	Timeout        time.Duration
}

// VoiceSettings 通过 ProviderOptions 传入
type VoiceSettings struct {
	Stability       *float64 `mapstructure:"stability" json:"stability,omitempty"`
	SimilarityBoost *float64 `mapstructure:"similarity_boost" json:"similarity_boost,omitempty"`
	Style           *float64 `mapstructure:"style" json:"style,omitempty"`
	UseSpeakerBoost *bool    `mapstructure:"use_speaker_boost" json:"use_speaker_boost,omitempty"`
	Speed           *float64 `mapstructure:"speed" json:"speed,omitempty"`
}

func (v VoiceSettings) empty() bool {
	return v.Stability == nil && v.SimilarityBoost == nil && v.Style == nil && v.UseSpeakerBoost == nil && v.Speed == nil
}

// Client ElevenLabs REST 客户端
type Client struct {
	apiKey       string
	baseURL      string
	modelID      string
	outputFormat string
	httpClient   *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &tts.ConfigError{Provider: ProviderID, Message: "api_key is required"}
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		modelID:      cfg.DefaultModelID,
		outputFormat: cfg.OutputFormat,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.modelID == "" {
		c.modelID = defaultModelID
	}
	if c.outputFormat == "" {
		c.outputFormat = defaultOutputFormat
	}
	if cfg.Timeout == 0 {
		c.httpClient.Timeout = 60 * time.Second
	}
	return c, nil
}

// ID 实现 tts.Provider
func (c *Client) ID() string {
	return ProviderID
}

type synthesisPayload struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

type timestampsResponse struct {
	AudioBase64         string         `json:"audio_base64"`
	Alignment           *tts.Alignment `json:"alignment"`
	NormalizedAlignment *tts.Alignment `json:"normalized_alignment"`
}

// GenerateSpeech 合成语音
func (c *Client) GenerateSpeech(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, error) {
	outputFormat := c.outputFormatFor(req.OutputFormat)
	body, status, header, err := c.postSynthesis(ctx, req, "", outputFormat)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	audioBytes, contentType, err := wrapPCM(body, outputFormat)
	if err != nil {
		return nil, err
	}
	if ct := header.Get("Content-Type"); ct != "" && !strings.HasPrefix(outputFormat, "pcm") {
		contentType = ct
	}
	return &tts.SpeechResponse{Audio: audioBytes, ContentType: contentType}, nil
}

// GenerateSpeechWithTimestamps 合成语音并返回字符级对齐
func (c *Client) GenerateSpeechWithTimestamps(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, *tts.Alignment, error) {
	outputFormat := c.outputFormatFor(req.OutputFormat)
	body, status, _, err := c.postSynthesis(ctx, req, "/with-timestamps", outputFormat)
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, parseError(status, body)
	}

	var resp timestampsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: status,
			Message: "invalid with-timestamps response", Err: err}
	}
	raw, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil || len(raw) == 0 {
		return nil, nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: status,
			Message: "audio_base64 missing or invalid", Err: err}
	}

	audioBytes, contentType, err := wrapPCM(raw, outputFormat)
	if err != nil {
		return nil, nil, err
	}

	alignment := resp.Alignment
	if alignment.Empty() {
		alignment = resp.NormalizedAlignment
	}
	if alignment.Empty() {
		alignment = nil
	}

	return &tts.SpeechResponse{
		Audio:           audioBytes,
		ContentType:     contentType,
		DurationSeconds: alignment.Duration(),
	}, alignment, nil
}

func (c *Client) postSynthesis(ctx context.Context, req *tts.SpeechRequest, suffix, outputFormat string) ([]byte, int, http.Header, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, 0, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, "text is empty")
	}
	if req.VoiceID == "" {
		return nil, 0, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidVoice, "voice_id is required")
	}

	var settings VoiceSettings
	if err := mapstructure.WeakDecode(req.ProviderOptions, &settings); err != nil {
		return nil, 0, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, fmt.Sprintf("invalid voice settings: %v", err))
	}

	payload := synthesisPayload{
		Text:         req.Text,
		ModelID:      req.ModelID,
		LanguageCode: req.LanguageCode,
	}
	if payload.ModelID == "" {
		payload.ModelID = c.modelID
	}
	if !settings.empty() {
		payload.VoiceSettings = &settings
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s%s?output_format=%s",
		c.baseURL, url.PathEscape(req.VoiceID), suffix, url.QueryEscape(outputFormat))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("voice", req.VoiceID).
		Str("model", payload.ModelID).
		Bool("timestamps", suffix != "").
		Msg("sending elevenlabs TTS request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, nil, tts.TransportError(ProviderID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, tts.TransportError(ProviderID, err)
	}
	return body, resp.StatusCode, resp.Header, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
		Settings map[string]any    `json:"settings"`
	} `json:"voices"`
}

// ListVoices 列出音色，languageFilter 按 labels.language / labels.accent 前缀过滤
func (c *Client) ListVoices(ctx context.Context, languageFilter string) ([]tts.VoiceModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, tts.TransportError(ProviderID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.TransportError(ProviderID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, body)
	}

	var vr voicesResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, Message: "invalid voices response", Err: err}
	}

	filter := strings.ToLower(languageFilter)
	voices := make([]tts.VoiceModel, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		language := v.Labels["language"]
		if filter != "" &&
			!strings.HasPrefix(strings.ToLower(language), filter) &&
			!strings.Contains(strings.ToLower(v.Labels["accent"]), filter) {
			continue
		}

		model := tts.VoiceModel{
			ID:       v.VoiceID,
			Name:     v.Name,
			Gender:   v.Labels["gender"],
			Provider: ProviderID,
			ProviderMetadata: map[string]any{
				"category": v.Category,
				"labels":   v.Labels,
				"settings": v.Settings,
			},
		}
		if language != "" {
			model.LanguageCodes = []string{language}
		}
		voices = append(voices, model)
	}
	return voices, nil
}

// errorBody ElevenLabs 错误响应：{"detail": {"status": "...", "message": "..."}}
// detail 也可能是字符串或校验错误数组
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type errorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// detail.status -> ErrorKind
var statusKinds = map[string]tts.ErrorKind{
	"invalid_api_key":              tts.ErrorKindAuthFailed,
	"missing_api_key":              tts.ErrorKindAuthFailed,
	"unauthorized":                 tts.ErrorKindAuthFailed,
	"quota_exceeded":               tts.ErrorKindInsufficientBalance,
	"payment_required":             tts.ErrorKindInsufficientBalance,
	"insufficient_credits":         tts.ErrorKindInsufficientBalance,
	"too_many_concurrent_requests": tts.ErrorKindQuotaExceeded,
	"rate_limit_exceeded":          tts.ErrorKindQuotaExceeded,
	"system_busy":                  tts.ErrorKindTransient,
	"voice_not_found":              tts.ErrorKindInvalidVoice,
	"max_character_limit_exceeded": tts.ErrorKindTextTooLong,
	"text_too_long":                tts.ErrorKindTextTooLong,
}

// parseError 根据 HTTP 状态码和 detail.status 分类
// ElevenLabs 的 quota_exceeded 表示额度（字符余额）用尽，归为 INSUFFICIENT_BALANCE
func parseError(status int, body []byte) *tts.ProviderError {
	perr := &tts.ProviderError{Provider: ProviderID, StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var detail errorDetail
		if err := json.Unmarshal(eb.Detail, &detail); err == nil {
			perr.Code = detail.Status
			perr.Message = detail.Message
		} else {
			var msg string
			if err := json.Unmarshal(eb.Detail, &msg); err == nil {
				perr.Message = msg
			} else {
				perr.Message = string(eb.Detail)
			}
		}
	} else {
		perr.Message = strings.TrimSpace(string(body))
	}

	if kind, ok := statusKinds[perr.Code]; ok {
		perr.Kind = kind
		return perr
	}
	if kind := tts.KindFromMessage(perr.Message); kind != "" {
		perr.Kind = kind
		return perr
	}
	perr.Kind = tts.KindFromHTTPStatus(status)
	return perr
}

func (c *Client) outputFormatFor(format string) string {
	switch strings.ToLower(format) {
	case "":
		return c.outputFormat
	case "mp3":
		return "mp3_44100_128"
	case "wav", "pcm":
		return "pcm_24000"
	default:
		return format
	}
}

// wrapPCM pcm_<rate> 返回的是裸 16-bit 单声道采样，补上 WAV 头
func wrapPCM(data []byte, outputFormat string) ([]byte, string, error) {
	if !strings.HasPrefix(outputFormat, "pcm_") {
		return data, contentTypeFor(outputFormat), nil
	}
	rate, err := strconv.Atoi(strings.TrimPrefix(outputFormat, "pcm_"))
	if err != nil || rate <= 0 {
		return nil, "", tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, "invalid output_format "+outputFormat)
	}

	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
	}
	wav, err := audiomerge.EncodeWAV(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: audiomerge.BitDepth,
	})
	if err != nil {
		return nil, "", fmt.Errorf("wrap pcm: %w", err)
	}
	return wav, "audio/wav", nil
}

func contentTypeFor(outputFormat string) string {
	switch {
	case strings.HasPrefix(outputFormat, "pcm"):
		return "audio/wav"
	case strings.HasPrefix(outputFormat, "ulaw"):
		return "audio/basic"
	case strings.HasPrefix(outputFormat, "opus"):
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
