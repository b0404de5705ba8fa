package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"podcaster/internal/pkg/tts"
)

// ProviderID 注册表中的 key
const ProviderID = "google"

const defaultBaseURL = "https://texttospeech.googleapis.com/v1"

// Config Google Cloud Text-to-Speech（REST，API Key 鉴权）
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Options ProviderOptions 中支持的字段
type Options struct {
	SpeakingRate    float64 `mapstructure:"speaking_rate"`
	Pitch           float64 `mapstructure:"pitch"`
	VolumeGainDb    float64 `mapstructure:"volume_gain_db"`
	SampleRateHertz int     `mapstructure:"sample_rate_hertz"`
}

// Client 不支持逐字时间戳，只实现 tts.Provider 与 tts.VoiceLister
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &tts.ConfigError{Provider: ProviderID, Message: "api_key is required"}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ID 实现 tts.Provider
func (c *Client) ID() string {
	return ProviderID
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SpeakingRate    float64 `json:"speakingRate,omitempty"`
	Pitch           float64 `json:"pitch,omitempty"`
	VolumeGainDb    float64 `json:"volumeGainDb,omitempty"`
	SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// GenerateSpeech 合成语音，时长由调用方根据音频推算
func (c *Client) GenerateSpeech(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, "text is empty")
	}
	if req.VoiceID == "" {
		return nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidVoice, "voice name is required")
	}

	var opts Options
	if err := mapstructure.WeakDecode(req.ProviderOptions, &opts); err != nil {
		return nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, fmt.Sprintf("invalid options: %v", err))
	}

	encoding, contentType := encodingFor(req.OutputFormat)
	payload := synthesizeRequest{
		Input: synthesisInput{Text: req.Text},
		Voice: voiceSelection{
			LanguageCode: languageFor(req),
			Name:         req.VoiceID,
		},
		AudioConfig: audioConfig{
			AudioEncoding:   encoding,
			SpeakingRate:    opts.SpeakingRate,
			Pitch:           opts.Pitch,
			VolumeGainDb:    opts.VolumeGainDb,
			SampleRateHertz: opts.SampleRateHertz,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text:synthesize", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("voice", req.VoiceID).
		Str("encoding", encoding).
		Int("text_length", len(req.Text)).
		Msg("sending google TTS request")

	body, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: status,
			Message: "invalid synthesize response", Err: err}
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil || len(audio) == 0 {
		return nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: status,
			Message: "audioContent missing or invalid", Err: err}
	}

	return &tts.SpeechResponse{Audio: audio, ContentType: contentType}, nil
}

type voicesResponse struct {
	Voices []struct {
		Name                   string   `json:"name"`
		LanguageCodes          []string `json:"languageCodes"`
		SsmlGender             string   `json:"ssmlGender"`
		NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
	} `json:"voices"`
}

// ListVoices 列出音色，languageFilter 直接传给 languageCode 参数
func (c *Client) ListVoices(ctx context.Context, languageFilter string) ([]tts.VoiceModel, error) {
	endpoint := c.baseURL + "/voices"
	if languageFilter != "" {
		endpoint += "?languageCode=" + url.QueryEscape(languageFilter)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	body, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	var vr voicesResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, Message: "invalid voices response", Err: err}
	}

	voices := make([]tts.VoiceModel, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, tts.VoiceModel{
			ID:            v.Name,
			Name:          v.Name,
			Gender:        strings.ToLower(v.SsmlGender),
			LanguageCodes: v.LanguageCodes,
			Provider:      ProviderID,
			ProviderMetadata: map[string]any{
				"natural_sample_rate_hertz": v.NaturalSampleRateHertz,
			},
		})
	}
	return voices, nil
}

// do 通过 X-Goog-Api-Key 头传递 key，不出现在 URL 中
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, tts.TransportError(ProviderID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, tts.TransportError(ProviderID, err)
	}
	return body, resp.StatusCode, nil
}

// errorResponse {"error": {"code": 400, "message": "...", "status": "INVALID_ARGUMENT"}}
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func parseError(status int, body []byte) *tts.ProviderError {
	perr := &tts.ProviderError{Provider: ProviderID, StatusCode: status}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		perr.Code = er.Error.Status
		perr.Message = er.Error.Message
	} else {
		perr.Message = strings.TrimSpace(string(body))
	}

	msg := strings.ToLower(perr.Message)
	switch {
	case strings.Contains(msg, "billing"):
		perr.Kind = tts.ErrorKindInsufficientBalance
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		perr.Kind = tts.ErrorKindAuthFailed
	case status == http.StatusTooManyRequests || perr.Code == "RESOURCE_EXHAUSTED":
		perr.Kind = tts.ErrorKindQuotaExceeded
	case status == http.StatusBadRequest && strings.Contains(msg, "voice"):
		perr.Kind = tts.ErrorKindInvalidVoice
	case status == http.StatusBadRequest && (strings.Contains(msg, "longer than") || strings.Contains(msg, "too long")):
		perr.Kind = tts.ErrorKindTextTooLong
	case perr.Code == "API_KEY_INVALID" || strings.Contains(msg, "api key not valid"):
		perr.Kind = tts.ErrorKindAuthFailed
	default:
		perr.Kind = tts.KindFromHTTPStatus(status)
	}
	return perr
}

func encodingFor(format string) (string, string) {
	switch strings.ToLower(format) {
	case "wav", "pcm", "linear16":
		return "LINEAR16", "audio/wav"
	case "ogg", "opus", "ogg_opus":
		return "OGG_OPUS", "audio/ogg"
	default:
		return "MP3", "audio/mpeg"
	}
}

// languageFor 未指定语言时从音色名推断，例如 en-US-Neural2-A -> en-US
func languageFor(req *tts.SpeechRequest) string {
	if req.LanguageCode != "" {
		return req.LanguageCode
	}
	parts := strings.SplitN(req.VoiceID, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return ""
}
