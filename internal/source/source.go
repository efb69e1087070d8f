package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/config"
)

// Source 是目录列举的唯一能力：给定 Locator 返回其下的条目。
// 返回的 Entry.Path 是包含 base 前缀的完整上游路径，顺序由上游决定。
type Source interface {
	Kind() string
	List(ctx context.Context, loc archive.Locator) ([]archive.Entry, error)
}

// FileOpener 是可选能力：读取单个文件正文。目标是目录时返回 ErrIsDirectory。
type FileOpener interface {
	Open(ctx context.Context, loc archive.Locator) (*File, error)
}

// Invalidator 由缓存实现，Watcher 借此在目录变化时丢弃过期列表。
type Invalidator interface {
	Invalidate(loc archive.Locator) bool
	InvalidatePrefix(prefix archive.Locator) int
}

// Watchable 是可选能力：监听来源变化并通知 Invalidator，返回的 Closer 用于停止监听。
type Watchable interface {
	Watch(ctx context.Context, inv Invalidator) (io.Closer, error)
}

// File 描述一次文件读取结果，调用方负责关闭 Body。
type File struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Header      http.Header
	Body        io.ReadCloser
}

// Options 汇总构造来源所需的依赖。
type Options struct {
	Config     config.SourceConfig
	Global     config.GlobalConfig
	Normalizer archive.Normalizer
	Logger     *logrus.Logger
	// Client 为空时根据 Global/Config 构建共享 http.Client。
	Client *http.Client
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}
