package cache

import (
	"context"
	"time"

	"github.com/zukijourney/archive-browser/internal/archive"
)

const (
	// DefaultTTL 是目录列表的默认有效期。
	DefaultTTL = time.Hour
	// DefaultMaxEntries 限制常驻内存的目录数量，防止长时间运行后无限增长。
	DefaultMaxEntries = 1024
)

// Store 描述目录缓存需要提供的能力，Resolver 与诊断接口只依赖该接口。
type Store interface {
	// Get 返回 Locator 对应的记录，不判断新鲜度。
	Get(loc archive.Locator) (Record, bool)

	// Put 以当前时间写入新记录，覆盖旧值。
	Put(loc archive.Locator, listing []archive.Entry) Record

	// Fetch 在记录新鲜时直接返回缓存，否则调用 load 回源；同一 Locator 的并发 miss
	// 只会触发一次 load。第二个返回值表示是否命中缓存。
	Fetch(ctx context.Context, loc archive.Locator, load LoadFunc) ([]archive.Entry, bool, error)

	// Invalidate 删除单个 Locator 的记录。
	Invalidate(loc archive.Locator) bool

	// InvalidatePrefix 删除 prefix 自身及其子目录的全部记录，返回删除数量。
	InvalidatePrefix(prefix archive.Locator) int

	// Purge 清空缓存，返回删除数量。
	Purge() int

	// Stats 返回当前计数器快照。
	Stats() Stats
}

// LoadFunc 执行一次真实的回源加载。
type LoadFunc func(ctx context.Context) ([]archive.Entry, error)

// Record 是某个 Locator 的目录快照及抓取时间。
type Record struct {
	Listing   []archive.Entry
	FetchedAt time.Time
}

// Options 控制缓存的 TTL、容量与时钟，零值字段使用默认值。
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
}

// Stats 汇总缓存命中情况，供 /-/cache 诊断接口输出。
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"max_entries"`
	TTLSeconds int64 `json:"ttl_seconds"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Loads      int64 `json:"loads"`
	Evictions  int64 `json:"evictions"`
}

// IsFresh 判断记录在 now 时刻是否仍处于 ttl 有效期内（严格小于）。
func IsFresh(record Record, now time.Time, ttl time.Duration) bool {
	return now.Sub(record.FetchedAt) < ttl
}
