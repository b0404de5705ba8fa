package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/pkg/storage"
)

func TestLocalStorage(t *testing.T) {
	Convey("LocalStorage 读写列目录", t, func() {
		ctx := context.Background()
		baseURL := "http://localhost:8080/storage"
		s, err := NewLocalStorage(t.TempDir(), baseURL+"/")
		So(err, ShouldBeNil)

		Convey("写入后可读取，URL 基于 baseURL", func() {
			url, err := storage.WriteBytes(ctx, s, "podcasts/p1/segments/a.json", []byte(`{"a":1}`), "application/json")
			So(err, ShouldBeNil)
			So(url, ShouldEqual, baseURL+"/podcasts/p1/segments/a.json")

			data, err := storage.ReadAll(ctx, s, "podcasts/p1/segments/a.json")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"a":1}`)

			exists, err := s.Exists(ctx, "podcasts/p1/segments/a.json")
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)

			info, err := s.GetFileInfo(ctx, "podcasts/p1/segments/a.json")
			So(err, ShouldBeNil)
			So(info.Size, ShouldEqual, 7)
			So(info.ContentType, ShouldEqual, "application/json")
		})

		Convey("List 只返回直接子文件且有序", func() {
			for _, key := range []string{"d/b.mp3", "d/a.json", "d/sub/c.json"} {
				_, err := storage.WriteBytes(ctx, s, key, []byte("x"), "")
				So(err, ShouldBeNil)
			}
			names, err := s.List(ctx, "d")
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"a.json", "b.mp3"})
		})

		Convey("List 不存在的目录返回空", func() {
			names, err := s.List(ctx, "missing")
			So(err, ShouldBeNil)
			So(names, ShouldBeEmpty)
		})

		Convey("读取不存在的文件返回 ErrNotFound", func() {
			_, err := s.Download(ctx, "nope.mp3")
			So(errors.Is(err, storage.ErrNotFound), ShouldBeTrue)

			exists, err := s.Exists(ctx, "nope.mp3")
			So(err, ShouldBeNil)
			So(exists, ShouldBeFalse)
		})

		Convey("删除不存在的文件视为成功", func() {
			So(s.Delete(ctx, "nope.mp3"), ShouldBeNil)
		})

		Convey("拒绝越过根目录的 key", func() {
			_, err := s.LocalPath("../../etc/passwd")
			So(err, ShouldNotBeNil)
		})

		Convey("LocalPath 指向真实文件", func() {
			_, err := storage.WriteBytes(ctx, s, "x/y.txt", []byte("hi"), "text/plain")
			So(err, ShouldBeNil)
			p, err := s.LocalPath("x/y.txt")
			So(err, ShouldBeNil)
			So(strings.HasPrefix(p, s.BasePath()), ShouldBeTrue)
			data, err := os.ReadFile(p)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "hi")
			So(filepath.IsAbs(p), ShouldBeTrue)
		})

		Convey("ctx 取消后写入失败且不留下文件", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := storage.WriteBytes(cctx, s, "c/z.bin", []byte("data"), "")
			So(err, ShouldNotBeNil)
			names, _ := s.List(ctx, "c")
			So(names, ShouldBeEmpty)
		})
	})
}
