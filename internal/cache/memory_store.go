package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zukijourney/archive-browser/internal/archive"
)

// NewStore 构建进程内目录缓存，整站复用一份实例。
func NewStore(opts Options) Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &memoryStore{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		items:      make(map[archive.Locator]*list.Element),
		order:      list.New(),
		inflight:   make(map[archive.Locator]int),
	}
}

// memoryStore 以 map + 双向链表实现 LRU，singleflight 负责同一 Locator 的回源合并。
type memoryStore struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu    sync.Mutex
	items map[archive.Locator]*list.Element
	order *list.List
	// generation 在每次失效时递增；回源结果只有在期间未发生失效时才会写入。
	generation uint64
	inflight   map[archive.Locator]int

	flights singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	loads     atomic.Int64
	evictions atomic.Int64
}

type lruItem struct {
	key    archive.Locator
	record Record
}

func (s *memoryStore) Get(loc archive.Locator) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[loc]
	if !ok {
		return Record{}, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*lruItem).record, true
}

func (s *memoryStore) Put(loc archive.Locator, listing []archive.Entry) Record {
	record := Record{Listing: listing, FetchedAt: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(loc, record)
	return record
}

// putIfGeneration 仅在 gen 之后没有发生失效时写入，返回是否写入。
func (s *memoryStore) putIfGeneration(loc archive.Locator, listing []archive.Entry, gen uint64) bool {
	record := Record{Listing: listing, FetchedAt: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return false
	}
	s.putLocked(loc, record)
	return true
}

// putLocked 需在持有 s.mu 时调用。
func (s *memoryStore) putLocked(loc archive.Locator, record Record) {
	if elem, ok := s.items[loc]; ok {
		elem.Value = &lruItem{key: loc, record: record}
		s.order.MoveToFront(elem)
		return
	}

	s.items[loc] = s.order.PushFront(&lruItem{key: loc, record: record})
	for s.order.Len() > s.maxEntries {
		s.removeElement(s.order.Back())
		s.evictions.Add(1)
	}
}

func (s *memoryStore) Fetch(ctx context.Context, loc archive.Locator, load LoadFunc) ([]archive.Entry, bool, error) {
	if record, ok := s.fresh(loc); ok {
		s.hits.Add(1)
		return record.Listing, true, nil
	}
	s.misses.Add(1)

	// load 与发起者的取消解耦：某个调用方放弃等待不应中断其它调用方共享的回源，
	// 已完成的回源结果照常写入缓存，除非回源期间该缓存被失效过。
	detached := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(string(loc), func() (interface{}, error) {
		if record, ok := s.fresh(loc); ok {
			return record.Listing, nil
		}
		gen := s.beginLoad(loc)
		defer s.endLoad(loc)

		s.loads.Add(1)
		listing, err := load(detached)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			listing = []archive.Entry{}
		}
		s.putIfGeneration(loc, listing, gen)
		return listing, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		listing, ok := res.Val.([]archive.Entry)
		if !ok {
			return nil, false, fmt.Errorf("unexpected cache value %T", res.Val)
		}
		return listing, false, nil
	}
}

func (s *memoryStore) Invalidate(loc archive.Locator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpLocked(func(key archive.Locator) bool { return key == loc })
	elem, ok := s.items[loc]
	if !ok {
		return false
	}
	s.removeElement(elem)
	return true
}

func (s *memoryStore) InvalidatePrefix(prefix archive.Locator) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpLocked(func(key archive.Locator) bool { return key.HasPrefix(prefix) })
	removed := 0
	for key, elem := range s.items {
		if key.HasPrefix(prefix) {
			s.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (s *memoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpLocked(func(archive.Locator) bool { return true })
	removed := len(s.items)
	s.items = make(map[archive.Locator]*list.Element)
	s.order.Init()
	return removed
}

func (s *memoryStore) Stats() Stats {
	s.mu.Lock()
	entries := len(s.items)
	s.mu.Unlock()

	return Stats{
		Entries:    entries,
		MaxEntries: s.maxEntries,
		TTLSeconds: int64(s.ttl / time.Second),
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Loads:      s.loads.Load(),
		Evictions:  s.evictions.Load(),
	}
}

func (s *memoryStore) fresh(loc archive.Locator) (Record, bool) {
	record, ok := s.Get(loc)
	if !ok || !IsFresh(record, s.now(), s.ttl) {
		return Record{}, false
	}
	return record, true
}

func (s *memoryStore) beginLoad(loc archive.Locator) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight[loc]++
	return s.generation
}

func (s *memoryStore) endLoad(loc archive.Locator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[loc]--; s.inflight[loc] <= 0 {
		delete(s.inflight, loc)
	}
}

// bumpLocked 使进行中的回源结果作废，并让匹配的 Locator 之后的 Fetch 发起新的回源。
// 需在持有 s.mu 时调用。
func (s *memoryStore) bumpLocked(match func(archive.Locator) bool) {
	s.generation++
	for key := range s.inflight {
		if match(key) {
			s.flights.Forget(string(key))
		}
	}
}

// removeElement 需在持有 s.mu 时调用。
func (s *memoryStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*lruItem).key)
}
