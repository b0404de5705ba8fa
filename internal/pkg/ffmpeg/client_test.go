package ffmpeg

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildConcatList(t *testing.T) {
	Convey("生成 concat list", t, func() {
		Convey("每行一个绝对路径", func() {
			list, err := BuildConcatList([]string{"/data/a.mp3", "/data/b.mp3"})
			So(err, ShouldBeNil)
			So(list, ShouldEqual, "file '/data/a.mp3'\nfile '/data/b.mp3'\n")
		})

		Convey("相对路径转为绝对路径", func() {
			list, err := BuildConcatList([]string{"x.mp3"})
			So(err, ShouldBeNil)
			abs, _ := filepath.Abs("x.mp3")
			So(list, ShouldEqual, "file '"+abs+"'\n")
		})

		Convey("单引号被转义", func() {
			list, err := BuildConcatList([]string{"/data/it's.mp3"})
			So(err, ShouldBeNil)
			So(list, ShouldEqual, `file '/data/it'\''s.mp3'`+"\n")
		})
	})
}

func TestParseProbeOutput(t *testing.T) {
	Convey("解析 ffprobe JSON", t, func() {
		info, err := parseProbeOutput([]byte(`{"format":{"duration":"3.500000","format_name":"mp3","bit_rate":"128000"}}`))
		So(err, ShouldBeNil)
		So(info.Duration, ShouldEqual, 3.5)
		So(info.FormatName, ShouldEqual, "mp3")
		So(info.BitRate, ShouldEqual, 128000)

		_, err = parseProbeOutput([]byte(`not json`))
		So(err, ShouldNotBeNil)
	})
}

func TestConcatAudiosErrors(t *testing.T) {
	Convey("合并失败", t, func() {
		Convey("空输入直接报错", func() {
			err := NewClient("", "").ConcatAudios(context.Background(), nil, "/tmp/out.mp3")
			So(err, ShouldNotBeNil)
		})

		Convey("可执行文件不存在时返回 ExecError", func() {
			c := NewClient(filepath.Join(t.TempDir(), "no-ffmpeg"), "")
			err := c.ConcatAudios(context.Background(), []string{"/data/a.mp3"}, filepath.Join(t.TempDir(), "out.mp3"))
			var execErr *ExecError
			So(errors.As(err, &execErr), ShouldBeTrue)
			So(execErr.Command, ShouldEqual, "no-ffmpeg")
		})
	})
}
