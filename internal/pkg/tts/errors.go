package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind 厂商错误分类，决定重试策略
type ErrorKind string

const (
	ErrorKindAuthFailed          ErrorKind = "AUTH_FAILED"
	ErrorKindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	ErrorKindQuotaExceeded       ErrorKind = "QUOTA_EXCEEDED"
	ErrorKindInvalidVoice        ErrorKind = "INVALID_VOICE"
	ErrorKindTextTooLong         ErrorKind = "TEXT_TOO_LONG"
	ErrorKindInvalidParams       ErrorKind = "INVALID_PARAMS"
	ErrorKindTransient           ErrorKind = "TRANSIENT"
	ErrorKindUnknown             ErrorKind = "UNKNOWN"
)

// HaltsProvider 鉴权失败和余额不足时，本批次不应再调用该厂商
func (k ErrorKind) HaltsProvider() bool {
	return k == ErrorKindAuthFailed || k == ErrorKindInsufficientBalance
}

// ProviderError 厂商调用失败
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int    // HTTP 状态码，0 表示未拿到响应
	Code       string // 厂商业务错误码
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [code %s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError 创建厂商错误
func NewProviderError(provider string, kind ErrorKind, message string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message}
}

// TransportError 网络层失败（未拿到 HTTP 响应）
func TransportError(provider string, err error) *ProviderError {
	kind := ErrorKindTransient
	if errors.Is(err, context.Canceled) {
		kind = ErrorKindUnknown
	}
	return &ProviderError{Provider: provider, Kind: kind, Message: "request failed", Err: err}
}

// KindOf 对任意错误分类
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return ErrorKindInvalidParams
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindTransient
	}
	return ErrorKindUnknown
}

// KindFromHTTPStatus 根据 HTTP 状态码给出默认分类，厂商可以再根据响应体细化
func KindFromHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorKindAuthFailed
	case status == http.StatusPaymentRequired:
		return ErrorKindInsufficientBalance
	case status == http.StatusTooManyRequests:
		return ErrorKindQuotaExceeded
	case status == http.StatusRequestEntityTooLarge:
		return ErrorKindTextTooLong
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusNotFound:
		return ErrorKindInvalidParams
	case status >= 500 || status == http.StatusRequestTimeout:
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

// KindFromMessage 根据错误信息中的关键词分类，无法判断时返回 ""
func KindFromMessage(message string) ErrorKind {
	m := strings.ToLower(message)
	switch {
	case containsAny(m, "insufficient balance", "insufficient_balance", "insufficient credit", "not enough credits",
		"balance", "余额不足", "欠费", "billing"):
		return ErrorKindInsufficientBalance
	case containsAny(m, "invalid api key", "invalid_api_key", "unauthorized", "authenticate", "authentication",
		"api key not valid", "token invalid", "鉴权"):
		return ErrorKindAuthFailed
	case containsAny(m, "quota", "rate limit", "too many requests", "concurrency", "限流"):
		return ErrorKindQuotaExceeded
	case containsAny(m, "voice not found", "voice_not_found", "voice does not exist", "invalid voice", "音色"):
		return ErrorKindInvalidVoice
	case containsAny(m, "too long", "text_too_long", "max_character_limit", "character limit", "过长"):
		return ErrorKindTextTooLong
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ConfigError 配置错误：未知 provider、缺少凭证
type ConfigError struct {
	Provider  string
	Message   string
	Available []string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("tts config error: provider %q: %s", e.Provider, e.Message)
	if len(e.Available) > 0 {
		available := append([]string(nil), e.Available...)
		sort.Strings(available)
		msg += fmt.Sprintf(" (available: %s)", strings.Join(available, ", "))
	}
	return msg
}
