package source

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory 根据 Options 构造具体来源。
type Factory func(Options) (Source, error)

// Registration 记录一个来源类型的元数据与构造函数。
type Registration struct {
	Type        string
	Description string
	New         Factory
}

var globalRegistry = newRegistry()

type registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]Registration)}
}

// Register 将来源类型加入全局注册表，重复键会返回错误。
func Register(reg Registration) error {
	return globalRegistry.register(reg)
}

// MustRegister 在注册失败时 panic，适合在 init() 中调用。
func MustRegister(reg Registration) {
	if err := Register(reg); err != nil {
		panic(err)
	}
}

// Resolve 返回指定类型的注册信息，大小写不敏感。
func Resolve(sourceType string) (Registration, bool) {
	return globalRegistry.resolve(sourceType)
}

// List 返回按类型排序的注册列表。
func List() []Registration {
	return globalRegistry.list()
}

// Types 返回所有已注册的来源类型，供诊断接口使用。
func Types() []string {
	items := List()
	result := make([]string, len(items))
	for i, reg := range items {
		result[i] = reg.Type
	}
	return result
}

// New 根据 opts.Config.Type 选择并构造来源。
func New(opts Options) (Source, error) {
	reg, ok := Resolve(opts.Config.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported source type %q", opts.Config.Type)
	}
	return reg.New(opts)
}

func normalizeType(sourceType string) string {
	return strings.ToLower(strings.TrimSpace(sourceType))
}

func (r *registry) register(reg Registration) error {
	key := normalizeType(reg.Type)
	if key == "" {
		return fmt.Errorf("source type is required")
	}
	if reg.New == nil {
		return fmt.Errorf("source %s requires a factory", key)
	}
	reg.Type = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("source %s already registered", key)
	}
	r.entries[key] = reg
	return nil
}

func (r *registry) resolve(sourceType string) (Registration, bool) {
	key := normalizeType(sourceType)
	if key == "" {
		return Registration{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[key]
	return reg, ok
}

func (r *registry) list() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Registration, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.entries[key])
	}
	return result
}
