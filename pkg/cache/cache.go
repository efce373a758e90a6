// Package cache implements the recent-block cache (C5): a generic,
// block-indexed cache for on-chain data that serves cached entries directly,
// fetches misses from the underlying Fetcher in rounds of at most
// requestBatchSize keys, and automatically refreshes its most recently used
// entries as new blocks arrive.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// requestBatchSize bounds how many missed keys Fetch handles in one round.
// Within a round every key is fetched by its own Fetcher call (see
// fetchMany), so this limits how many of those calls run at once; it does
// not group keys into a single Fetcher call.
const requestBatchSize = 200

// Block selects the chain state a fetch should be served from.
type Block struct {
	recent bool
	number uint64
}

// Recent returns the best-effort "whatever is cached" block selector.
func Recent() Block { return Block{recent: true} }

// AtBlock returns an exact-block selector.
func AtBlock(number uint64) Block { return Block{number: number} }

func (b Block) isRecent() bool   { return b.recent }
func (b Block) blockNumber() uint64 { return b.number }

// Fetcher retrieves fresh values for a set of keys at a given block.
type Fetcher[K comparable, V any] interface {
	FetchValues(ctx context.Context, keys map[K]struct{}, block Block) ([]V, error)
}

// Config tunes eviction, auto-update breadth, and retry behavior.
type Config struct {
	// NumberOfBlocksToCache: previous blocks stay cached until they are this
	// much older than the most recently fetched block.
	NumberOfBlocksToCache uint64
	// NumberOfEntriesToAutoUpdate: how many most-recently-used keys are
	// refetched each time the auto-updater runs.
	NumberOfEntriesToAutoUpdate int
	// MaximumRecentBlockAge: the oldest a cached entry may be and still
	// satisfy a Recent() request.
	MaximumRecentBlockAge uint64
	MaxRetries            int
	DelayBetweenRetries   time.Duration
}

// DefaultConfig mirrors the upstream default: cache exactly the current
// block, auto-update a single entry, no retries.
func DefaultConfig() Config {
	return Config{NumberOfBlocksToCache: 1, NumberOfEntriesToAutoUpdate: 1}
}

type entryKey[K comparable] struct {
	block uint64
	key   K
}

// Cache is a generic, block-indexed, LRU-bounded cache over a Fetcher.
type Cache[K comparable, V any] struct {
	config   Config
	fetcher  Fetcher[K, V]
	keyOf    func(V) K
	metrics  *Metrics
	label    string
	requests singleflight.Group

	mu                        sync.Mutex
	lru                       *list.List
	lruIndex                  map[K]*list.Element
	cachedMostRecentlyAtBlock map[K]uint64
	entries                   map[entryKey[K]][]V
	lastUpdateBlock           uint64
}

// Metrics are the cache-hit/miss counters, one vector shared across cache
// instances and labeled by cache type.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

// NewMetrics registers the hit/miss counter vectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recent_block_cache_hits",
		Help: "hits",
	}, []string{"cache_type"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recent_block_cache_misses",
		Help: "misses",
	}, []string{"cache_type"})
	if err := reg.Register(hits); err != nil {
		return nil, err
	}
	if err := reg.Register(misses); err != nil {
		return nil, err
	}
	return &Metrics{hits: hits, misses: misses}, nil
}

// New builds a Cache. keyOf recovers a value's cache key, used to file
// freshly fetched values under the right key after a batch fetch.
func New[K comparable, V any](
	config Config,
	fetcher Fetcher[K, V],
	keyOf func(V) K,
	metrics *Metrics,
	label string,
	currentBlock uint64,
) *Cache[K, V] {
	return &Cache[K, V]{
		config:                    config,
		fetcher:                   fetcher,
		keyOf:                     keyOf,
		metrics:                   metrics,
		label:                     label,
		lru:                       list.New(),
		lruIndex:                  make(map[K]*list.Element),
		cachedMostRecentlyAtBlock: make(map[K]uint64),
		entries:                   make(map[entryKey[K]][]V),
		lastUpdateBlock:           currentBlock,
	}
}

// touch marks key as most recently used, evicting the least-recently-used
// key once NumberOfEntriesToAutoUpdate is exceeded. Must be called with mu held.
func (c *Cache[K, V]) touch(key K) {
	if elem, ok := c.lruIndex[key]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	elem := c.lru.PushFront(key)
	c.lruIndex[key] = elem
	limit := c.config.NumberOfEntriesToAutoUpdate
	if limit <= 0 {
		limit = 1
	}
	for c.lru.Len() > limit {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.lruIndex, oldest.Value.(K))
	}
}

func (c *Cache[K, V]) recentlyUsedKeys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]K, 0, c.lru.Len())
	for e := c.lru.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(K))
	}
	return out
}

// get returns the cached values for key, if any, resolving Recent()
// requests to the most recent block seen for that key (subject to
// MaximumRecentBlockAge). Must be called with mu held.
func (c *Cache[K, V]) get(key K, block Block) ([]V, bool) {
	var blockNum uint64
	if block.isRecent() {
		latest, ok := c.cachedMostRecentlyAtBlock[key]
		if !ok {
			return nil, false
		}
		if c.lastUpdateBlock-latest > c.config.MaximumRecentBlockAge {
			return nil, false
		}
		blockNum = latest
	} else {
		blockNum = block.blockNumber()
	}

	values, ok := c.entries[entryKey[K]{block: blockNum, key: key}]
	if !ok {
		return nil, false
	}
	if len(values) > 0 {
		c.touch(key)
	}
	return values, true
}

// insert records values fetched at block, always inserting an (empty, if
// necessary) entry for every requested key: a key that legitimately has no
// values must still be remembered as cached, or it would be refetched on
// every subsequent lookup.
func (c *Cache[K, V]) insert(block uint64, keys []K, values []V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if prev, ok := c.cachedMostRecentlyAtBlock[key]; !ok || block > prev {
			c.cachedMostRecentlyAtBlock[key] = block
		}
		c.entries[entryKey[K]{block: block, key: key}] = []V{}
	}
	for _, v := range values {
		k := entryKey[K]{block: block, key: c.keyOf(v)}
		c.entries[k] = append(c.entries[k], v)
	}
}

func (c *Cache[K, V]) evictBlocksOlderThan(oldestToKeep uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.block < oldestToKeep {
			delete(c.entries, k)
		}
	}
	for key, block := range c.cachedMostRecentlyAtBlock {
		if block < oldestToKeep {
			delete(c.cachedMostRecentlyAtBlock, key)
		}
	}
}

// fetchOne fetches a single key, retrying up to MaxRetries times with
// DelayBetweenRetries between attempts, and coalesces concurrent identical
// requests for the same (key, block) pair through a singleflight group.
func (c *Cache[K, V]) fetchOne(ctx context.Context, key K, block Block) ([]V, error) {
	shareKey := fmt.Sprintf("%v|%t|%d", key, block.recent, block.number)
	result, err, _ := c.requests.Do(shareKey, func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
			values, err := c.fetcher.FetchValues(ctx, map[K]struct{}{key: {}}, block)
			if err == nil {
				return values, nil
			}
			lastErr = err
			if attempt < c.config.MaxRetries && c.config.DelayBetweenRetries > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.config.DelayBetweenRetries):
				}
			}
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return result.([]V), nil
}

// fetchMany fans out one fetchOne call per key concurrently, silently
// dropping keys whose fetch ultimately failed (matching the upstream
// behavior of treating a persistent per-key failure as "no data" rather than
// aborting the whole batch).
func (c *Cache[K, V]) fetchMany(ctx context.Context, keys []K, block Block) []V {
	var mu sync.Mutex
	var out []V

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			values, err := c.fetchOne(gctx, key, block)
			if err != nil {
				return nil
			}
			mu.Lock()
			out = append(out, values...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Fetch returns values for every requested key, serving whatever is already
// cached and fetching the rest in chunks of at most requestBatchSize keys,
// with one Fetcher call per key.
func (c *Cache[K, V]) Fetch(ctx context.Context, keys []K, block Block) ([]V, error) {
	var hits []V
	misses := make(map[K]struct{})
	hitCount := 0

	c.mu.Lock()
	for _, key := range keys {
		if values, ok := c.get(key, block); ok {
			hitCount++
			hits = append(hits, values...)
		} else {
			misses[key] = struct{}{}
		}
	}
	lastUpdateBlock := c.lastUpdateBlock
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.hits.WithLabelValues(c.label).Add(float64(hitCount))
		c.metrics.misses.WithLabelValues(c.label).Add(float64(len(misses)))
	}

	if len(misses) == 0 {
		return hits, nil
	}

	fetchBlockNum := lastUpdateBlock
	if !block.isRecent() {
		fetchBlockNum = block.blockNumber()
	}

	missKeys := make([]K, 0, len(misses))
	for k := range misses {
		missKeys = append(missKeys, k)
	}

	for start := 0; start < len(missKeys); start += requestBatchSize {
		end := min(start+requestBatchSize, len(missKeys))
		chunk := missKeys[start:end]

		fetched := c.fetchMany(ctx, chunk, AtBlock(fetchBlockNum))
		c.insert(fetchBlockNum, chunk, fetched)
		hits = append(hits, fetched...)

		c.mu.Lock()
		for _, v := range fetched {
			c.touch(c.keyOf(v))
		}
		c.mu.Unlock()
	}

	return hits, nil
}

// UpdateCacheAtBlock refetches every currently-tracked recently-used key at
// newBlock and evicts blocks that have fallen out of the cache window.
func (c *Cache[K, V]) UpdateCacheAtBlock(ctx context.Context, newBlock uint64) error {
	keys := c.recentlyUsedKeys()
	fetched := c.fetchMany(ctx, keys, AtBlock(newBlock))

	c.insert(newBlock, keys, fetched)

	c.mu.Lock()
	c.lastUpdateBlock = newBlock
	c.mu.Unlock()

	var oldestToKeep uint64
	if newBlock > c.config.NumberOfBlocksToCache-1 {
		oldestToKeep = newBlock - (c.config.NumberOfBlocksToCache - 1)
	}
	c.evictBlocksOlderThan(oldestToKeep)
	return nil
}
