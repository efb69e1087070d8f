package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedSourceTypes = map[string]struct{}{
	SourceTypeGitHub: {},
	SourceTypeLocal:  {},
}

const supportedSourceTypeList = "github|local"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别")
		}
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.MaxCacheEntries <= 0 {
		return newFieldError("Global.MaxCacheEntries", "必须大于 0")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	s := &c.Source
	normalizedType := strings.ToLower(strings.TrimSpace(s.Type))
	if normalizedType == "" {
		return newFieldError(sourceField("Type"), "不能为空")
	}
	if _, ok := supportedSourceTypes[normalizedType]; !ok {
		return newFieldError(sourceField("Type"), "仅支持 "+supportedSourceTypeList)
	}
	s.Type = normalizedType

	if err := validateBaseFolder(s.BaseFolder); err != nil {
		return fmt.Errorf("%s: %w", sourceField("BaseFolder"), err)
	}

	switch s.Type {
	case SourceTypeGitHub:
		if err := validateEndpoint(s.Endpoint); err != nil {
			return fmt.Errorf("%s: %w", sourceField("Endpoint"), err)
		}
		if s.Proxy != "" {
			if err := validateProxy(s.Proxy); err != nil {
				return fmt.Errorf("%s: %w", sourceField("Proxy"), err)
			}
		}
	case SourceTypeLocal:
		if strings.TrimSpace(s.Root) == "" {
			return newFieldError(sourceField("Root"), "不能为空")
		}
	}

	return nil
}

func validateBaseFolder(base string) error {
	if base == "" {
		return errors.New("不能为空")
	}
	if strings.Contains(base, "\\") {
		return errors.New("不允许包含反斜杠")
	}
	for _, seg := range strings.Split(base, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("非法路径段: %q", seg)
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("缺少 contents API 地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

func validateProxy(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("仅支持 http/https/socks5 代理: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("代理缺少 Host: %s", raw)
	}
	return nil
}
