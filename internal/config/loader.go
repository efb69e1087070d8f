package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultEndpoint = "https://api.github.com/repos/zukijourney/archives/contents"
	defaultTokenEnv = "GITHUB_TOKEN"
	defaultBase     = "submissions"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectLegacyHubs(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applySourceDefaults(&cfg.Source)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Source.Type == SourceTypeLocal {
		absRoot, err := filepath.Abs(cfg.Source.Root)
		if err != nil {
			return nil, fmt.Errorf("无法解析归档目录: %w", err)
		}
		cfg.Source.Root = absRoot
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheTTL", "1h")
	v.SetDefault("MaxCacheEntries", 1024)
	v.SetDefault("MaxRetries", 2)
	v.SetDefault("InitialBackoff", "500ms")
	v.SetDefault("UpstreamTimeout", "10s")
	v.SetDefault("Source.Type", SourceTypeGitHub)
	v.SetDefault("Source.BaseFolder", defaultBase)
	v.SetDefault("Source.Endpoint", defaultEndpoint)
	v.SetDefault("Source.TokenEnv", defaultTokenEnv)
	v.SetDefault("Source.Root", ".")
	v.SetDefault("Source.Watch", false)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(time.Hour)
	}
	if g.MaxCacheEntries == 0 {
		g.MaxCacheEntries = 1024
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(500 * time.Millisecond)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(10 * time.Second)
	}
}

func applySourceDefaults(s *SourceConfig) {
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	if s.Type == "" {
		s.Type = SourceTypeGitHub
	}
	s.BaseFolder = strings.Trim(strings.TrimSpace(s.BaseFolder), "/")
	if s.BaseFolder == "" {
		s.BaseFolder = defaultBase
	}
	s.Endpoint = strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	if s.Type == SourceTypeGitHub && s.Endpoint == "" {
		s.Endpoint = defaultEndpoint
	}
	if s.TokenEnv == "" {
		s.TokenEnv = defaultTokenEnv
	}
	if s.Root == "" {
		s.Root = "."
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectLegacyHubs 拒绝多 Hub 写法：一个实例只浏览一个归档来源。
func rejectLegacyHubs(v *viper.Viper) error {
	if v.IsSet("Hub") {
		return newFieldError("Hub", "不支持多上游配置，请改用单个 [Source] 段")
	}
	if raw, ok := v.Get("Source").([]interface{}); ok && len(raw) > 0 {
		return newFieldError("Source", "只能声明一个 [Source] 段")
	}
	return nil
}
