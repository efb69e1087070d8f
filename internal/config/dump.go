package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Dump 将生效配置渲染为 YAML，供 -print-config 使用；访问令牌不会出现在输出中。
func Dump(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("渲染配置失败: %w", err)
	}
	return out, nil
}
