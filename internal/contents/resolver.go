package contents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/cache"
	"github.com/zukijourney/archive-browser/internal/logging"
	"github.com/zukijourney/archive-browser/internal/source"
)

// DefaultTimeout 是单次回源（含重试）的总时限。
const DefaultTimeout = 10 * time.Second

// Options 汇总 Resolver 的依赖，Cache 与 Source 必填。
type Options struct {
	Normalizer archive.Normalizer
	Cache      cache.Store
	Source     source.Source
	Logger     *logrus.Logger
	Timeout    time.Duration
	// TTL 仅用于诊断输出，真实 TTL 由 Cache 自身决定。
	TTL time.Duration
}

// Resolver 是目录列举的唯一入口。
type Resolver struct {
	normalizer archive.Normalizer
	cache      cache.Store
	source     source.Source
	logger     *logrus.Logger
	timeout    time.Duration
	ttl        time.Duration
}

// Description 是 /-/source 诊断接口的输出。
type Description struct {
	Kind       string `json:"kind"`
	BaseFolder string `json:"base_folder"`
	TTLSeconds int64  `json:"ttl_seconds"`
	TimeoutMs  int64  `json:"timeout_ms"`
	CanOpen    bool   `json:"can_open"`
	Watchable  bool   `json:"watchable"`
}

// NewResolver 校验依赖并填充默认值。
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Cache == nil {
		return nil, errors.New("resolver requires a cache")
	}
	if opts.Source == nil {
		return nil, errors.New("resolver requires a source")
	}
	normalizer := opts.Normalizer
	if normalizer == (archive.Normalizer{}) {
		normalizer = archive.NewNormalizer("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Resolver{
		normalizer: normalizer,
		cache:      opts.Cache,
		source:     opts.Source,
		logger:     logger,
		timeout:    timeout,
		ttl:        ttl,
	}, nil
}

// ListContents 返回 logicalPath 下的条目，Path 字段为不含 base 前缀的逻辑路径，顺序与上游一致。
// 失败时返回 *UnavailableError，绝不以空列表代替错误；空目录返回非 nil 的空切片。
func (r *Resolver) ListContents(ctx context.Context, logicalPath string) ([]archive.Entry, error) {
	started := time.Now()
	loc := r.normalizer.ToLocator(logicalPath)

	raw, hit, err := r.cache.Fetch(ctx, loc, func(loadCtx context.Context) ([]archive.Entry, error) {
		return r.load(loadCtx, loc)
	})

	fields := logging.RequestFields(r.source.Kind(), logicalPath, loc.String(), hit)
	fields["action"] = "list_contents"
	fields["duration_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		r.logger.WithFields(fields).WithError(err).Warn("contents unavailable")
		return nil, &UnavailableError{Path: logicalPath, Locator: loc, Err: err}
	}

	entries := make([]archive.Entry, len(raw))
	for i, item := range raw {
		entries[i] = archive.Entry{
			Name: item.Name,
			Kind: item.Kind,
			Path: r.normalizer.ToLogicalPath(item.Path),
		}
	}
	fields["entries"] = len(entries)
	r.logger.WithFields(fields).Debug("contents listed")
	return entries, nil
}

func (r *Resolver) load(ctx context.Context, loc archive.Locator) ([]archive.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	listing, err := r.source.List(ctx, loc)
	if err != nil {
		var upstream *source.UpstreamError
		if !errors.As(err, &upstream) && errors.Is(err, context.DeadlineExceeded) {
			return nil, &source.UpstreamError{URL: loc.String(), Timeout: true, Err: err}
		}
		return nil, err
	}
	return listing, nil
}

// Open 读取 logicalPath 指向的文件；来源不支持时返回 ErrOpenUnsupported。
// 调用方负责关闭 File.Body，因此这里不对整个读取过程施加超时。
func (r *Resolver) Open(ctx context.Context, logicalPath string) (*source.File, error) {
	opener, ok := r.source.(source.FileOpener)
	if !ok {
		return nil, ErrOpenUnsupported
	}
	loc := r.normalizer.ToLocator(logicalPath)
	file, err := opener.Open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", loc, err)
	}
	return file, nil
}

// Watch 在来源支持时启动变更监听，监听结果直接失效缓存。
func (r *Resolver) Watch(ctx context.Context) (func() error, bool, error) {
	watchable, ok := r.source.(source.Watchable)
	if !ok {
		return nil, false, nil
	}
	closer, err := watchable.Watch(ctx, r.cache)
	if err != nil {
		return nil, true, err
	}
	return closer.Close, true, nil
}

// Cache 暴露底层缓存，供诊断接口读取统计或清空。
func (r *Resolver) Cache() cache.Store {
	return r.cache
}

// Normalizer 返回当前生效的路径转换器。
func (r *Resolver) Normalizer() archive.Normalizer {
	return r.normalizer
}

// Describe 汇总来源信息。
func (r *Resolver) Describe() Description {
	_, canOpen := r.source.(source.FileOpener)
	_, watchable := r.source.(source.Watchable)
	return Description{
		Kind:       r.source.Kind(),
		BaseFolder: r.normalizer.Base(),
		TTLSeconds: int64(r.ttl / time.Second),
		TimeoutMs:  r.timeout.Milliseconds(),
		CanOpen:    canOpen,
		Watchable:  watchable,
	}
}
