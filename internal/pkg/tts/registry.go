package tts

import (
	"sort"
	"strings"
	"sync"
)

// Factory 构建 provider；缺少凭证时应返回 *ConfigError
type Factory func() (Provider, error)

// Registry provider key -> factory
// 实例在第一次 Get 时构建并缓存
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Provider
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
	}
}

// Register 注册 provider，重复注册会覆盖
func (r *Registry) Register(id string, factory Factory) {
	key := normalizeID(id)
	if key == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
	delete(r.instances, key)
}

// Get 获取 provider 实例
func (r *Registry) Get(id string) (Provider, error) {
	key := normalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[key]; ok {
		return p, nil
	}
	factory, ok := r.factories[key]
	if !ok {
		return nil, &ConfigError{Provider: id, Message: "provider not registered", Available: r.availableLocked()}
	}
	p, err := factory()
	if err != nil {
		return nil, err
	}
	r.instances[key] = p
	return p, nil
}

// Available 已注册的 key（有序）
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableLocked()
}

// Validate 构建所有已注册的 provider，返回第一个错误
func (r *Registry) Validate() error {
	for _, id := range r.Available() {
		if _, err := r.Get(id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) availableLocked() []string {
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
