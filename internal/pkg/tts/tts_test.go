package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type stubProvider struct{ id string }

func (s *stubProvider) ID() string { return s.id }

func (s *stubProvider) GenerateSpeech(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error) {
	return &SpeechResponse{Audio: []byte("x"), ContentType: "audio/mpeg"}, nil
}

type stubTimestampProvider struct{ stubProvider }

func (s *stubTimestampProvider) GenerateSpeechWithTimestamps(ctx context.Context, req *SpeechRequest) (*SpeechResponse, *Alignment, error) {
	return &SpeechResponse{}, &Alignment{}, nil
}

func TestRegistry(t *testing.T) {
	Convey("Registry 按 key 解析 provider", t, func() {
		r := NewRegistry()
		builds := 0
		r.Register(" ElevenLabs ", func() (Provider, error) {
			builds++
			return &stubProvider{id: "elevenlabs"}, nil
		})
		r.Register("google", func() (Provider, error) {
			return nil, &ConfigError{Provider: "google", Message: "api_key is required"}
		})

		Convey("key 大小写与空白不敏感，实例被缓存", func() {
			p1, err := r.Get("elevenlabs")
			So(err, ShouldBeNil)
			p2, err := r.Get("ELEVENLABS")
			So(err, ShouldBeNil)
			So(p1, ShouldEqual, p2)
			So(builds, ShouldEqual, 1)
		})

		Convey("未知 key 返回 ConfigError 并列出可用 key", func() {
			_, err := r.Get("azure")
			var cerr *ConfigError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Available, ShouldResemble, []string{"elevenlabs", "google"})
			So(err.Error(), ShouldContainSubstring, "available: elevenlabs, google")
		})

		Convey("缺少凭证的 provider 在 Validate 时暴露", func() {
			err := r.Validate()
			var cerr *ConfigError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Provider, ShouldEqual, "google")
		})
	})
}

func TestSupportsTimestamps(t *testing.T) {
	Convey("通过类型断言探测时间戳能力", t, func() {
		_, ok := SupportsTimestamps(&stubProvider{id: "google"})
		So(ok, ShouldBeFalse)

		tp, ok := SupportsTimestamps(&stubTimestampProvider{stubProvider{id: "elevenlabs"}})
		So(ok, ShouldBeTrue)
		So(tp.ID(), ShouldEqual, "elevenlabs")
	})
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestKindOf(t *testing.T) {
	Convey("错误分类", t, func() {
		Convey("ProviderError 保留自身分类，包装后依然可识别", func() {
			err := NewProviderError("volcengine", ErrorKindInsufficientBalance, "余额不足")
			So(KindOf(err), ShouldEqual, ErrorKindInsufficientBalance)
			So(KindOf(fmt.Errorf("segment 3: %w", err)), ShouldEqual, ErrorKindInsufficientBalance)
		})

		Convey("网络错误归为 TRANSIENT", func() {
			So(KindOf(timeoutErr{}), ShouldEqual, ErrorKindTransient)
			So(KindOf(context.DeadlineExceeded), ShouldEqual, ErrorKindTransient)
			So(TransportError("google", timeoutErr{}).Kind, ShouldEqual, ErrorKindTransient)
		})

		Convey("普通错误归为 UNKNOWN", func() {
			So(KindOf(errors.New("boom")), ShouldEqual, ErrorKindUnknown)
		})

		Convey("只有鉴权失败和余额不足会停用 provider", func() {
			So(ErrorKindAuthFailed.HaltsProvider(), ShouldBeTrue)
			So(ErrorKindInsufficientBalance.HaltsProvider(), ShouldBeTrue)
			So(ErrorKindQuotaExceeded.HaltsProvider(), ShouldBeFalse)
			So(ErrorKindTransient.HaltsProvider(), ShouldBeFalse)
		})
	})
}

func TestKindFromHTTPStatusAndMessage(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, ErrorKindAuthFailed},
		{http.StatusPaymentRequired, ErrorKindInsufficientBalance},
		{http.StatusTooManyRequests, ErrorKindQuotaExceeded},
		{http.StatusBadRequest, ErrorKindInvalidParams},
		{http.StatusBadGateway, ErrorKindTransient},
		{http.StatusTeapot, ErrorKindUnknown},
	}
	for _, c := range cases {
		if got := KindFromHTTPStatus(c.status); got != c.want {
			t.Errorf("KindFromHTTPStatus(%d) = %s, want %s", c.status, got, c.want)
		}
	}

	messages := map[string]ErrorKind{
		"Insufficient balance for this request": ErrorKindInsufficientBalance,
		"账户余额不足":                                ErrorKindInsufficientBalance,
		"Invalid API key":                       ErrorKindAuthFailed,
		"quota exceeded for types: xxx":         ErrorKindQuotaExceeded,
		"voice_not_found":                       ErrorKindInvalidVoice,
		"text too long":                         ErrorKindTextTooLong,
		"something else":                        "",
	}
	for msg, want := range messages {
		if got := KindFromMessage(msg); got != want {
			t.Errorf("KindFromMessage(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestParseAlignmentDocument(t *testing.T) {
	Convey("解析两种对齐格式", t, func() {
		Convey("字符级：取最后一个字符的结束时间", func() {
			doc, err := ParseAlignmentDocument("a.json", []byte(`{
				"characters": ["H","i"],
				"character_start_times_seconds": [0, 0.4],
				"character_end_times_seconds": [0.4, 1.2]
			}`))
			So(err, ShouldBeNil)
			So(doc.Duration(), ShouldEqual, 1.2)
			So(doc.SegmentIndex, ShouldBeNil)
		})

		Convey("词级：取最后一个词的结束时间，并读取段落元数据", func() {
			doc, err := ParseAlignmentDocument("b.json", []byte(`{
				"segment_index": 2,
				"speaker": "Guest",
				"words": [{"word":"你好","start_time":0,"end_time":0.7,"unit_type":"text"},{"word":"。","start_time":0.7,"end_time":1.5}],
				"phonemes": [{"phone":"n","start_time":0,"end_time":0.1}]
			}`))
			So(err, ShouldBeNil)
			So(doc.Duration(), ShouldEqual, 1.5)
			So(*doc.SegmentIndex, ShouldEqual, 2)
			So(doc.Speaker, ShouldEqual, "Guest")
		})

		Convey("无逐字时间时使用 duration_seconds", func() {
			doc, err := ParseAlignmentDocument("c.json", []byte(`{"duration_seconds": 0.8}`))
			So(err, ShouldBeNil)
			So(doc.Duration(), ShouldEqual, 0.8)
		})

		Convey("空数据与非法 JSON 返回 AlignmentParseError", func() {
			_, err := ParseAlignmentDocument("d.json", []byte(`{"characters": []}`))
			var perr *AlignmentParseError
			So(errors.As(err, &perr), ShouldBeTrue)
			So(errors.Is(err, ErrEmptyAlignment), ShouldBeTrue)

			_, err = ParseAlignmentDocument("e.json", []byte(`{not json`))
			So(errors.As(err, &perr), ShouldBeTrue)
			So(perr.File, ShouldEqual, "e.json")
		})
	})
}
