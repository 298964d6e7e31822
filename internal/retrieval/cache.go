package retrieval

import (
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize is the cap applied when WithCacheSize isn't used.
const defaultCacheSize = 256

// CacheEntry is one cached retrieveRelevant result set. LastAccessed is
// exposed as data (not just internal eviction bookkeeping) per spec.
type CacheEntry struct {
	Results      []Result
	CachedAt     time.Time
	LastAccessed time.Time
}

// retrievalCache wraps golang-lru's recency-ordered cache, keyed by
// lower(trim(query)) + ":" + (topK ?? "all"). The underlying library
// already evicts least-recently-used on Add/Get; this wrapper layers
// LastAccessed bookkeeping on top (exposed via CacheEntry) and the
// "hit with smaller topK than cached, slice; never widen" lookup rule.
type retrievalCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *CacheEntry]
	nowFn func() time.Time
}

func newRetrievalCache(size int, nowFn func() time.Time) *retrievalCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	c, _ := lru.New[string, *CacheEntry](size)
	return &retrievalCache{lru: c, nowFn: nowFn}
}

// cacheKey builds the cache key for a query/topK pair. topK <= 0 means
// "all".
func cacheKey(query string, topK int) string {
	norm := strings.ToLower(strings.TrimSpace(query))
	if topK <= 0 {
		return norm + ":all"
	}
	return norm + ":" + strconv.Itoa(topK)
}

// get looks up query/topK. It first tries the exact key; failing that,
// it tries the "all" variant for the same query and, if present and
// long enough, slices it down to topK (never widening a smaller cached
// result to serve a larger request).
func (c *retrievalCache) get(query string, topK int) ([]Result, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	if entry, ok := c.lru.Get(key); ok {
		entry.LastAccessed = c.nowFn()
		return cloneResults(entry.Results), true
	}

	if topK > 0 {
		allKey := cacheKey(query, 0)
		if entry, ok := c.lru.Get(allKey); ok && len(entry.Results) >= topK {
			entry.LastAccessed = c.nowFn()
			return cloneResults(entry.Results[:topK]), true
		}
	}
	return nil, false
}

// put stores a defensive copy of results under query/topK's key.
func (c *retrievalCache) put(query string, topK int, results []Result) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	c.lru.Add(cacheKey(query, topK), &CacheEntry{
		Results:      cloneResults(results),
		CachedAt:     now,
		LastAccessed: now,
	})
}

// clear purges every cached entry.
func (c *retrievalCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
