package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/config"
)

func TestInit(t *testing.T) {
	Convey("logger.Init 按配置初始化全局日志", t, func() {
		original := log.Logger
		Reset(func() {
			log.Logger = original
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		})

		Convey("非法级别回退到 info", func() {
			So(Init(&config.LogConfig{Level: "verbose", Format: "json"}), ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.InfoLevel)
		})

		Convey("文件输出", func() {
			path := filepath.Join(t.TempDir(), "app.log")
			So(Init(&config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path}), ShouldBeNil)

			l := Component("test")
			l.Info().Msg("hello")
			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"component":"test"`)
		})

		Convey("both 同时写文件并自动创建目录", func() {
			path := filepath.Join(t.TempDir(), "nested", "app.log")
			So(Init(&config.LogConfig{Level: "info", Format: "json", Output: "both", FilePath: path}), ShouldBeNil)

			log.Info().Msg("to both")
			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "to both")
		})

		Convey("文件输出缺少路径时报错", func() {
			So(Init(&config.LogConfig{Output: "file"}), ShouldNotBeNil)
		})

		Convey("未知输出目标报错", func() {
			So(Init(&config.LogConfig{Output: "syslog"}), ShouldNotBeNil)
		})
	})
}
