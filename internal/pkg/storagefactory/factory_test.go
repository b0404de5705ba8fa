package storagefactory

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/config"
	"podcaster/internal/pkg/storage"
)

func TestNewStorage(t *testing.T) {
	Convey("NewStorage 根据配置创建存储", t, func() {
		ctx := context.Background()

		Convey("local 配置创建本地存储", func() {
			s, err := NewStorage(ctx, &config.StorageConfig{
				Type:  "local",
				Local: &config.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/storage"},
			})
			So(err, ShouldBeNil)
			So(s.GetStorageType(), ShouldEqual, string(storage.StorageTypeLocal))
			So(s.PublicURL("podcasts/p1/p1_final.mp3"), ShouldEqual, "http://localhost:8080/storage/podcasts/p1/p1_final.mp3")

			_, ok := s.(storage.LocalPather)
			So(ok, ShouldBeTrue)
		})

		Convey("缺少 local 配置", func() {
			s, err := NewStorage(ctx, &config.StorageConfig{Type: "local"})
			So(err, ShouldNotBeNil)
			So(s, ShouldBeNil)
		})

		Convey("缺少 oss 配置", func() {
			s, err := NewStorage(ctx, &config.StorageConfig{Type: "oss"})
			So(err, ShouldNotBeNil)
			So(s, ShouldBeNil)
		})

		Convey("不支持的存储类型", func() {
			s, err := NewStorage(ctx, &config.StorageConfig{Type: "s3"})
			So(err, ShouldNotBeNil)
			So(s, ShouldBeNil)
		})
	})
}
