package wacz

import (
	"container/list"
)

// warcCache is a memory-budgeted LRU cache of parsed WARC entries, keyed by
// the entry path inside the container.
//
// It keeps a hot WARC's framed records (and the buffer they slice into)
// resident so repeated capture opens skip the drain/inflate/frame work.
// Accounting uses the backing buffer size of each parsed WARC; when the
// budget would be exceeded, least recently used entries are evicted.
//
// With maxBytes <= 0 the cache is disabled: Get always misses and Put is a
// no-op, so every capture open re-parses its WARC.
//
// The archive's single-task discipline serializes access; the cache itself
// carries no lock.
type warcCache struct {
	metrics  *Metrics
	items    map[string]*list.Element // entry path -> *list.Element
	lru      *list.List               // front = most recently used
	curBytes int64
	maxBytes int64
}

// warcCacheItem is stored in the LRU list.
type warcCacheItem struct {
	path   string
	parsed *parsedWARC
}

func newWARCCache(maxBytes int64, metrics *Metrics) *warcCache {
	return &warcCache{
		metrics:  metrics,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		maxBytes: maxBytes,
	}
}

// get returns the cached parse for the given WARC entry path.
func (c *warcCache) get(path string) (*parsedWARC, bool) {
	if c == nil || c.maxBytes <= 0 {
		return nil, false
	}

	elem, ok := c.items[path]
	if !ok {
		c.metrics.IncWARCCacheMisses()
		return nil, false
	}
	c.lru.MoveToFront(elem)

	item, _ := elem.Value.(*warcCacheItem) //nolint:errcheck // internal invariant: LRU list only contains *warcCacheItem
	c.metrics.IncWARCCacheHits()
	return item.parsed, true
}

// put stores a parsed WARC, evicting LRU entries until it fits. A parse
// larger than the whole budget is not cached.
func (c *warcCache) put(path string, parsed *parsedWARC) {
	if c == nil || c.maxBytes <= 0 {
		return
	}
	if parsed.size > c.maxBytes {
		return
	}

	if elem, ok := c.items[path]; ok {
		old, _ := elem.Value.(*warcCacheItem) //nolint:errcheck // internal invariant: LRU list only contains *warcCacheItem
		c.curBytes -= old.parsed.size
		old.parsed = parsed
		c.curBytes += parsed.size
		c.lru.MoveToFront(elem)
	} else {
		for c.curBytes+parsed.size > c.maxBytes && c.lru.Len() > 0 {
			c.evictBack()
		}
		elem := c.lru.PushFront(&warcCacheItem{path: path, parsed: parsed})
		c.items[path] = elem
		c.curBytes += parsed.size
	}

	c.metrics.SetWARCCacheUsage(c.curBytes, c.lru.Len())
}

// evictBack removes the least recently used entry.
func (c *warcCache) evictBack() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	item, _ := elem.Value.(*warcCacheItem) //nolint:errcheck // internal invariant: LRU list only contains *warcCacheItem
	c.curBytes -= item.parsed.size
	delete(c.items, item.path)
	c.metrics.IncWARCCacheEvictions()
}

// clear drops every cached parse. Used on Close.
func (c *warcCache) clear() {
	if c == nil {
		return
	}
	c.items = make(map[string]*list.Element)
	c.lru = list.New()
	c.curBytes = 0
	c.metrics.SetWARCCacheUsage(0, 0)
}
