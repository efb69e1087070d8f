package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// MarshalYAML 以 Go Duration 字符串形式输出，便于 -print-config 阅读。
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

const (
	SourceTypeGitHub = "github"
	SourceTypeLocal  = "local"
)

// GlobalConfig 描述服务级运行时参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort" yaml:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel" yaml:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath" yaml:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize" yaml:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups" yaml:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress" yaml:"LogCompress"`
	CacheTTL        Duration `mapstructure:"CacheTTL" yaml:"CacheTTL"`
	MaxCacheEntries int      `mapstructure:"MaxCacheEntries" yaml:"MaxCacheEntries"`
	MaxRetries      int      `mapstructure:"MaxRetries" yaml:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff" yaml:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout" yaml:"UpstreamTimeout"`
}

// SourceConfig 决定目录列举的上游来源：GitHub contents API 或本地目录树。
type SourceConfig struct {
	Type       string `mapstructure:"Type" yaml:"Type"`
	BaseFolder string `mapstructure:"BaseFolder" yaml:"BaseFolder"`
	Endpoint   string `mapstructure:"Endpoint" yaml:"Endpoint,omitempty"`
	TokenEnv   string `mapstructure:"TokenEnv" yaml:"TokenEnv,omitempty"`
	Proxy      string `mapstructure:"Proxy" yaml:"Proxy,omitempty"`
	Root       string `mapstructure:"Root" yaml:"Root,omitempty"`
	Watch      bool   `mapstructure:"Watch" yaml:"Watch"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash" yaml:",inline"`
	Source SourceConfig `mapstructure:"Source" yaml:"Source"`
}

// Token 读取 TokenEnv 指向的环境变量，凭证本身从不写入配置结构。
func (s SourceConfig) Token() string {
	if s.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(s.TokenEnv))
}

// HasCredentials 表示 github 来源是否能拿到访问令牌。
func (s SourceConfig) HasCredentials() bool {
	return s.Token() != ""
}

// AuthMode 输出 `credentialed`、`anonymous` 或 `filesystem`，供日志字段使用。
func (s SourceConfig) AuthMode() string {
	if s.Type == SourceTypeLocal {
		return "filesystem"
	}
	if s.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}
