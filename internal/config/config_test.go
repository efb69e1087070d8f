package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.CacheTTL.DurationValue() != time.Hour {
		t.Fatalf("CacheTTL 整数秒应解析为 1h，得到 %s", cfg.Global.CacheTTL.DurationValue())
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 10*time.Second {
		t.Fatalf("UpstreamTimeout 默认应为 10s")
	}
	if cfg.Global.MaxCacheEntries != 1024 {
		t.Fatalf("MaxCacheEntries 默认应为 1024，得到 %d", cfg.Global.MaxCacheEntries)
	}
	if cfg.Global.MaxRetries != 2 {
		t.Fatalf("MaxRetries 默认应为 2，得到 %d", cfg.Global.MaxRetries)
	}
	if cfg.Source.Type != SourceTypeGitHub {
		t.Fatalf("Source.Type 应被解析，得到 %s", cfg.Source.Type)
	}
	if cfg.Source.BaseFolder != "submissions" {
		t.Fatalf("BaseFolder 应为 submissions，得到 %s", cfg.Source.BaseFolder)
	}
}

func TestLoadLocalResolvesRoot(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "local.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !filepath.IsAbs(cfg.Source.Root) {
		t.Fatalf("Root 应被转换为绝对路径: %s", cfg.Source.Root)
	}
	if !cfg.Source.Watch {
		t.Fatalf("Watch 应被解析")
	}
	if cfg.Global.CacheTTL.DurationValue() != 15*time.Minute {
		t.Fatalf("CacheTTL 字符串应被解析，得到 %s", cfg.Global.CacheTTL.DurationValue())
	}
	if cfg.Source.AuthMode() != "filesystem" {
		t.Fatalf("local 来源的 AuthMode 应为 filesystem")
	}
}

func TestValidateRejectsBadSource(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestSourceTypeValidation(t *testing.T) {
	testCases := []struct {
		name       string
		sourceType string
		shouldErr  bool
	}{
		{"github ok", "github", false},
		{"local ok", "local", false},
		{"case insensitive", "GitHub", false},
		{"missing type", "", true},
		{"unsupported type", "gitlab", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Source.Type = tc.sourceType
			cfg.Source.Root = "/srv/archive"
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for type %q", tc.sourceType)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for type %q: %v", tc.sourceType, err)
			}
		})
	}
}

func TestValidateLocalRequiresRoot(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Type = SourceTypeLocal
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Source.Root" {
		t.Fatalf("local 来源缺少 Root 应报 Source.Root 错误，得到 %v", err)
	}
	cfg.Source.Root = "/srv/archive"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("设置 Root 后应通过校验: %v", err)
	}
}

func TestValidateBaseFolder(t *testing.T) {
	for _, base := range []string{"", "../etc", "a//b", "a\\b", "."} {
		cfg := validConfig()
		cfg.Source.BaseFolder = base
		if err := cfg.Validate(); err == nil {
			t.Fatalf("BaseFolder %q 应当被拒绝", base)
		}
	}
	cfg := validConfig()
	cfg.Source.BaseFolder = "archive/submissions"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("多级 BaseFolder 应允许: %v", err)
	}
}

func TestValidateProxyScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Proxy = "socks5://127.0.0.1:1080"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("socks5 代理应允许: %v", err)
	}
	cfg.Source.Proxy = "ftp://127.0.0.1:21"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ftp 代理应被拒绝")
	}
}

func TestValidateReportsFieldPath(t *testing.T) {
	cfg := validConfig()
	cfg.Global.MaxCacheEntries = 0
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok {
		t.Fatalf("期望 FieldError，得到 %T", err)
	}
	if fieldErr.Field != "Global.MaxCacheEntries" {
		t.Fatalf("字段路径不正确: %s", fieldErr.Field)
	}
}

func TestSourceTokenFromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_TEST_TOKEN", " secret ")
	src := SourceConfig{Type: SourceTypeGitHub, TokenEnv: "ARCHIVE_TEST_TOKEN"}
	if src.Token() != "secret" {
		t.Fatalf("Token 应读取并裁剪环境变量，得到 %q", src.Token())
	}
	if src.AuthMode() != "credentialed" {
		t.Fatalf("存在令牌时应为 credentialed")
	}
	t.Setenv("ARCHIVE_TEST_TOKEN", "")
	if src.AuthMode() != "anonymous" {
		t.Fatalf("缺少令牌时应为 anonymous")
	}
}

func TestDumpOmitsToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "super-secret")
	cfg := validConfig()
	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump 失败: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "super-secret") {
		t.Fatalf("输出不应包含令牌: %s", text)
	}
	if !strings.Contains(text, "CacheTTL: 1h0m0s") {
		t.Fatalf("Duration 应以字符串输出: %s", text)
	}
	if !strings.Contains(text, "Type: github") {
		t.Fatalf("输出应包含 Source 段: %s", text)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			LogLevel:        "info",
			CacheTTL:        Duration(time.Hour),
			MaxCacheEntries: 16,
			MaxRetries:      1,
			InitialBackoff:  Duration(time.Second),
			UpstreamTimeout: Duration(time.Second),
		},
		Source: SourceConfig{
			Type:       SourceTypeGitHub,
			BaseFolder: "submissions",
			Endpoint:   "https://api.github.com/repos/zukijourney/archives/contents",
			TokenEnv:   "GITHUB_TOKEN",
		},
	}
}
