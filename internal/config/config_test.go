package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Storage: StorageConfig{
			Type:  "local",
			Local: &LocalConfig{BasePath: "./data", BaseURL: "http://localhost:8080/storage"},
		},
		Synthesis: SynthesisConfig{
			Concurrency: 5,
			MaxRetries:  2,
			GapSeconds:  0.5,
			Strategy:    StrategySubprocess,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Config.Validate 校验配置", t, func() {
		Convey("默认配置合法", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口非法", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("server.mode 非法", func() {
			cfg := validConfig()
			cfg.Server.Mode = "prod"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("local 存储缺少 base_path", func() {
			cfg := validConfig()
			cfg.Storage.Local = nil
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("oss 存储缺少 bucket", func() {
			cfg := validConfig()
			cfg.Storage = StorageConfig{Type: "oss", OSS: &OSSConfig{Endpoint: "oss-cn-hangzhou.aliyuncs.com"}}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("并发数必须大于 0", func() {
			cfg := validConfig()
			cfg.Synthesis.Concurrency = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("重试次数可以为 0 但不能为负", func() {
			cfg := validConfig()
			cfg.Synthesis.MaxRetries = 0
			So(cfg.Validate(), ShouldBeNil)
			cfg.Synthesis.MaxRetries = -1
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知合并策略", func() {
			cfg := validConfig()
			cfg.Synthesis.Strategy = "sox"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("ValidatePipeline 不检查 server 配置", func() {
			cfg := validConfig()
			cfg.Server = ServerConfig{}
			So(cfg.ValidatePipeline(), ShouldBeNil)
		})
	})
}
