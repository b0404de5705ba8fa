package audiomerge

import (
	"testing"
	"time"

	"github.com/go-audio/audio"
	. "github.com/smartystreets/goconvey/convey"
)

func constBuffer(rate, channels, frames int, values ...int) *audio.IntBuffer {
	data := make([]int, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			data[f*channels+c] = values[c%len(values)]
		}
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
}

func TestMerge(t *testing.T) {
	Convey("内存拼接", t, func() {
		Convey("采样率取第一个，声道取最大，段间插入静音", func() {
			a := constBuffer(8000, 1, 4000, 1000)
			b := constBuffer(16000, 2, 8000, 200, -200)

			out, err := Merge([]*audio.IntBuffer{a, b}, 0.5)
			So(err, ShouldBeNil)
			So(out.Format.SampleRate, ShouldEqual, 8000)
			So(out.Format.NumChannels, ShouldEqual, 2)
			So(len(out.Data), ShouldEqual, 12000*2)
			So(BufferDuration(out), ShouldEqual, 1500*time.Millisecond)

			// 单声道复制到两个声道
			So(out.Data[0], ShouldEqual, 1000)
			So(out.Data[1], ShouldEqual, 1000)
			// 静音段
			So(out.Data[4000*2], ShouldEqual, 0)
			So(out.Data[8000*2-1], ShouldEqual, 0)
			// 重采样后的第二段
			So(out.Data[8000*2], ShouldEqual, 200)
			So(out.Data[8000*2+1], ShouldEqual, -200)
		})

		Convey("缺失的非单声道声道补零", func() {
			a := constBuffer(8000, 3, 10, 1, 2, 3)
			b := constBuffer(8000, 2, 10, 7, 8)
			out, err := Merge([]*audio.IntBuffer{a, b}, 0)
			So(err, ShouldBeNil)
			So(out.Format.NumChannels, ShouldEqual, 3)
			So(out.Data[10*3:10*3+3], ShouldResemble, []int{7, 8, 0})
		})

		Convey("上采样做线性插值", func() {
			a := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 8000}, Data: []int{0, 100}}
			b := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 4000}, Data: []int{0, 100}}
			out, err := Merge([]*audio.IntBuffer{a, b}, 0)
			So(err, ShouldBeNil)
			So(out.Data, ShouldResemble, []int{0, 100, 0, 50, 100, 100})
		})

		Convey("空输入报错", func() {
			_, err := Merge(nil, 0.5)
			So(err, ShouldEqual, ErrNoInput)
		})

		Convey("负的静音时长报错", func() {
			_, err := Merge([]*audio.IntBuffer{constBuffer(8000, 1, 1, 0)}, -1)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEncodeDecode(t *testing.T) {
	Convey("WAV 编码后可解码并读取时长", t, func() {
		buf := constBuffer(8000, 2, 12000, 300, -300)
		data, err := EncodeWAV(buf)
		So(err, ShouldBeNil)
		So(Detect(data), ShouldEqual, FormatWAV)

		decoded, err := Decode(data)
		So(err, ShouldBeNil)
		So(decoded.Format.SampleRate, ShouldEqual, 8000)
		So(decoded.Format.NumChannels, ShouldEqual, 2)
		So(decoded.Data, ShouldResemble, buf.Data)

		seconds, err := Duration(data)
		So(err, ShouldBeNil)
		So(seconds, ShouldAlmostEqual, 1.5, 0.001)
	})

	Convey("格式识别", t, func() {
		So(Detect([]byte("ID3\x04\x00")), ShouldEqual, FormatMP3)
		So(Detect([]byte{0xFF, 0xFB, 0x90}), ShouldEqual, FormatMP3)
		So(Detect([]byte("hello")), ShouldEqual, FormatUnknown)

		_, err := Decode([]byte("hello"))
		So(err, ShouldEqual, ErrUnsupportedFormat)
	})
}
