// Package audiomerge 在内存中解码、拼接 WAV / MP3 音频，输出 16-bit PCM WAV
package audiomerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const (
	// BitDepth 输出位深
	BitDepth = 16
	// DefaultGapSeconds 段落之间默认静音
	DefaultGapSeconds = 0.5

	wavFormatPCM = 1
)

var (
	// ErrNoInput 没有可拼接的音频
	ErrNoInput = errors.New("audiomerge: no input buffers")
	// ErrUnsupportedFormat 既不是 WAV 也不是 MP3
	ErrUnsupportedFormat = errors.New("audiomerge: unsupported audio format")
)

// Format 音频容器格式
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = ""
)

// Detect 根据文件头判断格式
func Detect(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// Decode 解码为 16-bit 交织 PCM
func Decode(data []byte) (*audio.IntBuffer, error) {
	switch Detect(data) {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func decodeWAV(data []byte) (*audio.IntBuffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %w", ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("wav audio format %d: %w", d.WavAudioFormat, ErrUnsupportedFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}

	shift := int(d.BitDepth) - BitDepth
	for i, v := range buf.Data {
		switch {
		case d.BitDepth == 8:
			buf.Data[i] = (v - 128) << 8 // 8-bit WAV 为无符号
		case shift > 0:
			buf.Data[i] = v >> shift
		}
	}
	buf.SourceBitDepth = BitDepth
	return buf, nil
}

// go-mp3 固定输出 16-bit 小端双声道
func decodeMP3(data []byte) (*audio.IntBuffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: d.SampleRate()},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}, nil
}

// Duration 读取音频时长（秒），不完整解码 WAV
func Duration(data []byte) (float64, error) {
	switch Detect(data) {
	case FormatWAV:
		d := wav.NewDecoder(bytes.NewReader(data))
		dur, err := d.Duration()
		if err != nil {
			return 0, fmt.Errorf("failed to read wav duration: %w", err)
		}
		return dur.Seconds(), nil
	case FormatMP3:
		d, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return 0, fmt.Errorf("failed to decode mp3: %w", err)
		}
		if d.SampleRate() == 0 || d.Length() <= 0 {
			return 0, fmt.Errorf("mp3 length unavailable")
		}
		return float64(d.Length()/4) / float64(d.SampleRate()), nil
	default:
		return 0, ErrUnsupportedFormat
	}
}

// BufferDuration 缓冲区时长
func BufferDuration(buf *audio.IntBuffer) time.Duration {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 || buf.Format.NumChannels == 0 {
		return 0
	}
	frames := len(buf.Data) / buf.Format.NumChannels
	return time.Duration(float64(frames) / float64(buf.Format.SampleRate) * float64(time.Second))
}

// Merge 按顺序拼接，段间插入 gapSeconds 静音
// 采样率取第一个缓冲区，其余线性重采样；声道数取最大值，单声道复制到所有声道，其余缺失声道补零
func Merge(buffers []*audio.IntBuffer, gapSeconds float64) (*audio.IntBuffer, error) {
	if len(buffers) == 0 {
		return nil, ErrNoInput
	}
	if gapSeconds < 0 {
		return nil, fmt.Errorf("gap must be >= 0, got %v", gapSeconds)
	}

	for i, b := range buffers {
		if b == nil || b.Format == nil || b.Format.SampleRate <= 0 || b.Format.NumChannels <= 0 {
			return nil, fmt.Errorf("buffer %d has no format", i)
		}
	}

	rate := buffers[0].Format.SampleRate
	channels := 0
	for _, b := range buffers {
		channels = max(channels, b.Format.NumChannels)
	}
	gapFrames := int(math.Round(gapSeconds * float64(rate)))

	var out []int
	for i, b := range buffers {
		if i > 0 && gapFrames > 0 {
			out = append(out, make([]int, gapFrames*channels)...)
		}
		out = append(out, convert(b, rate, channels)...)
	}

	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           out,
		SourceBitDepth: BitDepth,
	}, nil
}

// convert 重采样并扩展声道
func convert(b *audio.IntBuffer, rate, channels int) []int {
	srcCh := b.Format.NumChannels
	srcFrames := len(b.Data) / srcCh
	if srcFrames == 0 {
		return nil
	}

	dstFrames := srcFrames
	if b.Format.SampleRate != rate {
		dstFrames = int(math.Round(float64(srcFrames) * float64(rate) / float64(b.Format.SampleRate)))
	}
	step := float64(b.Format.SampleRate) / float64(rate)

	out := make([]int, dstFrames*channels)
	for f := 0; f < dstFrames; f++ {
		pos := float64(f) * step
		i0 := int(pos)
		if i0 >= srcFrames {
			i0 = srcFrames - 1
		}
		i1 := min(i0+1, srcFrames-1)
		frac := pos - float64(i0)

		for c := 0; c < channels; c++ {
			var sc int
			switch {
			case srcCh == 1:
				sc = 0
			case c < srcCh:
				sc = c
			default:
				continue
			}
			v0 := b.Data[i0*srcCh+sc]
			if frac == 0 || i0 == i1 {
				out[f*channels+c] = v0
				continue
			}
			v1 := b.Data[i1*srcCh+sc]
			out[f*channels+c] = clamp16(float64(v0) + (float64(v1)-float64(v0))*frac)
		}
	}
	return out
}

func clamp16(v float64) int {
	r := int(math.Round(v))
	return min(max(r, math.MinInt16), math.MaxInt16)
}

// EncodeWAV 编码为 16-bit PCM WAV
func EncodeWAV(buf *audio.IntBuffer) ([]byte, error) {
	if buf == nil || buf.Format == nil {
		return nil, ErrNoInput
	}

	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, buf.Format.SampleRate, BitDepth, buf.Format.NumChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	return ws.buf, nil
}

// writeSeeker wav.Encoder 需要回写文件头长度
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	w.pos = int(abs)
	return abs, nil
}
