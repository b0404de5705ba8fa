package ttsfactory

import (
	"podcaster/internal/config"
	"podcaster/internal/pkg/tts"
	"podcaster/internal/pkg/tts/elevenlabs"
	"podcaster/internal/pkg/tts/google"
	"podcaster/internal/pkg/tts/volcengine"
)

// NewRegistry 根据配置注册 provider
// 只注册配置了对应小节的厂商，凭证缺失在第一次 Get 时以 ConfigError 暴露
func NewRegistry(cfg config.TTSConfig) *tts.Registry {
	registry := tts.NewRegistry()

	if c := cfg.ElevenLabs; c != nil {
		registry.Register(elevenlabs.ProviderID, func() (tts.Provider, error) {
			return elevenlabs.NewClient(elevenlabs.Config{
				APIKey:         c.APIKey,
				BaseURL:        c.BaseURL,
				DefaultModelID: c.DefaultModelID,
				OutputFormat:   c.OutputFormat,
				Timeout:        cfg.Timeout,
			})
		})
	}

	if c := cfg.Volcengine; c != nil {
		registry.Register(volcengine.ProviderID, func() (tts.Provider, error) {
			return volcengine.NewClient(volcengine.Config{
				APIURL:      c.APIURL,
				AccessToken: c.AccessToken,
				AppID:       c.AppID,
				Cluster:     c.Cluster,
				SampleRate:  c.SampleRate,
				Timeout:     cfg.Timeout,
			})
		})
	}

	if c := cfg.Google; c != nil {
		registry.Register(google.ProviderID, func() (tts.Provider, error) {
			return google.NewClient(google.Config{
				APIKey:  c.APIKey,
				BaseURL: c.BaseURL,
				Timeout: cfg.Timeout,
			})
		})
	}

	return registry
}
