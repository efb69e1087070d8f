package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供来源类型/路径/命中状态字段，供目录列举日志复用。
func RequestFields(sourceKind, logicalPath, locator string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"source":    sourceKind,
		"path":      logicalPath,
		"locator":   locator,
		"cache_hit": cacheHit,
	}
}
