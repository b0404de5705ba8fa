package volcengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"podcaster/internal/pkg/id"
	"podcaster/internal/pkg/tts"
)

// ProviderID 注册表中的 key
const ProviderID = "volcengine"

const (
	defaultAPIURL     = "https://openspeech.bytedance.com/api/v1/tts"
	defaultCluster    = "volcano_tts"
	defaultSampleRate = 24000
)

// codeSuccess 火山引擎 HTTP 接口成功时返回 code=3000（而非 0），
// 这是该接口的约定，其他厂商不适用
const codeSuccess = 3000

// 火山引擎业务错误码
const (
	codeInvalidRequest  = 3001
	codeConcurrencyHit  = 3003
	codeBackendBusy     = 3005
	codeServiceStopped  = 3006
	codeTextTooLong     = 3010
	codeInvalidText     = 3011
	codeProcessTimeout  = 3030
	codeProcessError    = 3031
	codeWaitTimeout     = 3032
	codeBackendLinkFail = 3040
	codeVoiceNotExist   = 3050
)

// Config 火山引擎 TTS 配置
type Config struct {
	APIURL      string        // API 地址，默认: https://openspeech.bytedance.com/api/v1/tts
	AccessToken string        // 访问令牌（必需）
	AppID       string        // 应用ID
	Cluster     string        // 集群名称，默认: volcano_tts
	SampleRate  int           // 采样率，默认: 24000
	Timeout     time.Duration // HTTP 超时
}

// Options 通过 SpeechRequest.ProviderOptions 传入的参数
type Options struct {
	SpeedRatio  float64 `mapstructure:"speed_ratio"`
	VolumeRatio float64 `mapstructure:"volume_ratio"`
	PitchRatio  float64 `mapstructure:"pitch_ratio"`
	Emotion     string  `mapstructure:"emotion"`
}

// Client 火山引擎语音合成
// 参考: https://openspeech.bytedance.com/api/v1/tts
type Client struct {
	apiURL      string
	accessToken string
	appID       string
	cluster     string
	sampleRate  int
	httpClient  *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, &tts.ConfigError{Provider: ProviderID, Message: "access_token is required"}
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	cluster := cfg.Cluster
	if cluster == "" {
		cluster = defaultCluster
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiURL:      apiURL,
		accessToken: cfg.AccessToken,
		appID:       cfg.AppID,
		cluster:     cluster,
		sampleRate:  sampleRate,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// ID 实现 tts.Provider
func (c *Client) ID() string {
	return ProviderID
}

// GenerateSpeech 合成语音（丢弃时间戳）
func (c *Client) GenerateSpeech(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, error) {
	resp, _, err := c.GenerateSpeechWithTimestamps(ctx, req)
	return resp, err
}

// apiResponse 接口响应
type apiResponse struct {
	ReqID    string          `json:"reqid"`
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Sequence int             `json:"sequence"`
	Data     string          `json:"data"`
	Addition json.RawMessage `json:"addition"`
}

// GenerateSpeechWithTimestamps 合成语音并返回词/音素级时间戳
func (c *Client) GenerateSpeechWithTimestamps(ctx context.Context, req *tts.SpeechRequest) (*tts.SpeechResponse, *tts.Alignment, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, "text is empty")
	}
	if req.VoiceID == "" {
		return nil, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidVoice, "voice_type is required")
	}

	var opts Options
	if err := mapstructure.WeakDecode(req.ProviderOptions, &opts); err != nil {
		return nil, nil, tts.NewProviderError(ProviderID, tts.ErrorKindInvalidParams, fmt.Sprintf("invalid provider options: %v", err))
	}

	requestID := id.New()
	encoding := encodingFor(req.OutputFormat)
	body, err := json.Marshal(c.buildRequestConfig(req, requestID, encoding, opts))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer; %s", c.accessToken))
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("voice", req.VoiceID).
		Int("text_len", len([]rune(req.Text))).
		Msg("sending volcengine TTS request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, tts.TransportError(ProviderID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, tts.TransportError(ProviderID, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if err := json.Unmarshal([]byte(fixJSON(string(respBody))), &apiResp); err != nil {
			if resp.StatusCode != http.StatusOK {
				return nil, nil, statusError(resp.StatusCode, string(respBody))
			}
			return nil, nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: resp.StatusCode,
				Message: "failed to parse response", Err: err}
		}
	}

	if apiResp.Code != codeSuccess {
		return nil, nil, classify(resp.StatusCode, apiResp.Code, apiResp.Message)
	}

	audio, err := base64.StdEncoding.DecodeString(apiResp.Data)
	if err != nil || len(audio) == 0 {
		return nil, nil, &tts.ProviderError{Provider: ProviderID, Kind: tts.ErrorKindUnknown, StatusCode: resp.StatusCode,
			Message: "audio data missing or invalid", Err: err}
	}

	alignment, duration := parseAddition(apiResp.Addition)

	return &tts.SpeechResponse{
		Audio:           audio,
		ContentType:     contentTypeFor(encoding),
		DurationSeconds: duration,
	}, alignment, nil
}

// buildRequestConfig 构建请求
func (c *Client) buildRequestConfig(req *tts.SpeechRequest, requestID, encoding string, opts Options) map[string]any {
	appConfig := map[string]any{
		"token":   c.accessToken,
		"cluster": c.cluster,
	}
	if c.appID != "" {
		appConfig["appid"] = c.appID
	}

	audioConfig := map[string]any{
		"voice_type":   req.VoiceID,
		"encoding":     encoding,
		"rate":         c.sampleRate,
		"speed_ratio":  ratioOrDefault(opts.SpeedRatio),
		"volume_ratio": ratioOrDefault(opts.VolumeRatio),
		"pitch_ratio":  ratioOrDefault(opts.PitchRatio),
	}
	if req.LanguageCode != "" {
		audioConfig["language"] = req.LanguageCode
	}
	if opts.Emotion != "" {
		audioConfig["emotion"] = opts.Emotion
	}

	return map[string]any{
		"app":   appConfig,
		"user":  map[string]any{"uid": requestID},
		"audio": audioConfig,
		"request": map[string]any{
			"reqid":         requestID,
			"text":          req.Text,
			"text_type":     "plain",
			"operation":     "query",
			"with_frontend": "1",
			"frontend_type": "unitTson",
		},
	}
}

// parseAddition 解析 addition 中的时长（毫秒）和 frontend 时间戳
// frontend 可能是 JSON 字符串，也可能是对象
func parseAddition(raw json.RawMessage) (*tts.Alignment, float64) {
	if len(raw) == 0 {
		return nil, 0
	}

	var addition struct {
		Duration json.RawMessage `json:"duration"`
		Frontend json.RawMessage `json:"frontend"`
	}
	if err := json.Unmarshal(raw, &addition); err != nil {
		log.Warn().Err(err).Msg("failed to parse volcengine addition")
		return nil, 0
	}

	var duration float64
	if ms, ok := parseNumber(addition.Duration); ok {
		duration = ms / 1000.0
	}

	frontend := []byte(addition.Frontend)
	var frontendStr string
	if err := json.Unmarshal(frontend, &frontendStr); err == nil {
		frontend = []byte(fixJSON(frontendStr))
	}
	if len(frontend) == 0 {
		return nil, duration
	}

	var alignment tts.Alignment
	if err := json.Unmarshal(frontend, &alignment); err != nil {
		log.Warn().Err(err).Msg("failed to parse volcengine frontend data")
		return nil, duration
	}
	// 只保留词/音素级数据
	alignment.Characters = nil
	alignment.CharacterStartTimesSeconds = nil
	alignment.CharacterEndTimesSeconds = nil
	if alignment.Empty() {
		return nil, duration
	}
	return &alignment, duration
}

// parseNumber duration 可能是字符串或数字
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// classify 将业务错误码映射到统一分类
func classify(status, code int, message string) *tts.ProviderError {
	perr := &tts.ProviderError{
		Provider:   ProviderID,
		StatusCode: status,
		Code:       strconv.Itoa(code),
		Message:    message,
	}

	if kind := tts.KindFromMessage(message); kind != "" {
		perr.Kind = kind
		return perr
	}

	switch code {
	case codeTextTooLong:
		perr.Kind = tts.ErrorKindTextTooLong
	case codeVoiceNotExist:
		perr.Kind = tts.ErrorKindInvalidVoice
	case codeInvalidRequest, codeInvalidText:
		perr.Kind = tts.ErrorKindInvalidParams
	case codeConcurrencyHit:
		perr.Kind = tts.ErrorKindQuotaExceeded
	case codeBackendBusy, codeServiceStopped, codeProcessTimeout, codeProcessError, codeWaitTimeout, codeBackendLinkFail:
		perr.Kind = tts.ErrorKindTransient
	default:
		if status != http.StatusOK {
			perr.Kind = tts.KindFromHTTPStatus(status)
		} else {
			perr.Kind = tts.ErrorKindUnknown
		}
	}
	return perr
}

func statusError(status int, body string) *tts.ProviderError {
	kind := tts.KindFromMessage(body)
	if kind == "" {
		kind = tts.KindFromHTTPStatus(status)
	}
	return &tts.ProviderError{Provider: ProviderID, Kind: kind, StatusCode: status, Message: truncate(body, 512)}
}

func encodingFor(format string) string {
	switch strings.ToLower(format) {
	case "wav", "pcm", "ogg_opus":
		return strings.ToLower(format)
	default:
		return "mp3"
	}
}

func contentTypeFor(encoding string) string {
	switch encoding {
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/l16"
	case "ogg_opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

func ratioOrDefault(v float64) float64 {
	if v <= 0 {
		return 1.0
	}
	return v
}

// fixJSON 修复 frontend 中偶发的对象之间缺少逗号的问题
func fixJSON(s string) string {
	return strings.ReplaceAll(s, "}{", "},{")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
