// Package l2p is the logical-to-physical mapping layer: a multi-granularity
// cache of LPN -> PPA entries backed by a bucket-chained hash table (same
// per-bucket-chain shape as a Hashtable_t) threaded through an
// intrusive LRU list so entries can be evicted in recency order, with
// "resident" entries pinned against eviction for coarser granularities the
// FTL keeps permanently cached (whole-zone or sub-zone mappings).
package l2p

import (
	"sync"

	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/stats"
)

/// Granularity names the unit an L2P entry maps at.
type Granularity int

const (
	Page Granularity = iota
	Chunk
	Zone
	SubZone
)

type entry struct {
	lpn      int64
	gran     Granularity
	addr     ppa.PPA
	resident bool

	hashNext *entry

	lruPrev *entry
	lruNext *entry
}

/// Cache is a capacity-bounded, hash-slotted LRU cache of L2P entries.
type Cache struct {
	mu        sync.Mutex
	slots     []*entry
	capacity  int
	size      int
	preread   int
	lruHead   *entry /// most recently used
	lruTail   *entry /// least recently used

	Hits      stats.Counter_t
	Misses    stats.Counter_t
	Evictions stats.Counter_t
}

/// New returns an empty cache with the given entry capacity, hash slot
/// count, and page-granularity prefetch-on-miss depth.
func New(capacity, hashSlots, preread int) *Cache {
	if hashSlots <= 0 {
		hashSlots = 1
	}
	return &Cache{
		slots:    make([]*entry, hashSlots),
		capacity: capacity,
		preread:  preread,
	}
}

/// Preread returns how many subsequent LPNs a page-granularity miss should
/// prefetch.
func (c *Cache) Preread() int { return c.preread }

func (c *Cache) slotFor(lpn int64) int {
	h := uint64(lpn) * 2654435761
	return int(h % uint64(len(c.slots)))
}

func (c *Cache) find(lpn int64) *entry {
	for e := c.slots[c.slotFor(lpn)]; e != nil; e = e.hashNext {
		if e.lpn == lpn {
			return e
		}
	}
	return nil
}

/// Get looks up lpn and, on a hit, promotes the entry to most-recently-used.
func (c *Cache) Get(lpn int64) (addr ppa.PPA, gran Granularity, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.find(lpn)
	if e == nil {
		c.Misses.Inc()
		return ppa.Unmapped, 0, false
	}
	c.Hits.Inc()
	c.touch(e)
	return e.addr, e.gran, true
}

/// Insert adds or updates the mapping for lpn, evicting a non-resident LRU
/// victim if the cache is at capacity. It returns false if the cache is full
/// of resident entries and cannot make room for a new one.
func (c *Cache) Insert(lpn int64, addr ppa.PPA, gran Granularity, resident bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.find(lpn); e != nil {
		e.addr, e.gran, e.resident = addr, gran, resident
		c.touch(e)
		return true
	}
	if c.size >= c.capacity {
		if !c.evictLocked() {
			return false
		}
	}
	e := &entry{lpn: lpn, gran: gran, addr: addr, resident: resident}
	slot := c.slotFor(lpn)
	e.hashNext = c.slots[slot]
	c.slots[slot] = e
	c.pushFront(e)
	c.size++
	return true
}

/// Remove deletes lpn's mapping if present, reporting whether it was found.
func (c *Cache) Remove(lpn int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.slotFor(lpn)
	var prev *entry
	for e := c.slots[slot]; e != nil; e = e.hashNext {
		if e.lpn == lpn {
			if prev == nil {
				c.slots[slot] = e.hashNext
			} else {
				prev.hashNext = e.hashNext
			}
			c.unlink(e)
			c.size--
			return true
		}
		prev = e
	}
	return false
}

/// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// touch moves e to the front of the LRU list; caller holds c.mu.
func (c *Cache) touch(e *entry) {
	if c.lruHead == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) pushFront(e *entry) {
	e.lruPrev = nil
	e.lruNext = c.lruHead
	if c.lruHead != nil {
		c.lruHead.lruPrev = e
	}
	c.lruHead = e
	if c.lruTail == nil {
		c.lruTail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.lruPrev != nil {
		e.lruPrev.lruNext = e.lruNext
	} else if c.lruHead == e {
		c.lruHead = e.lruNext
	}
	if e.lruNext != nil {
		e.lruNext.lruPrev = e.lruPrev
	} else if c.lruTail == e {
		c.lruTail = e.lruPrev
	}
	e.lruPrev, e.lruNext = nil, nil
}

// evictLocked removes the least-recently-used non-resident entry. Caller
// holds c.mu. Returns false if every entry is resident.
func (c *Cache) evictLocked() bool {
	e := c.lruTail
	for e != nil && e.resident {
		e = e.lruPrev
	}
	if e == nil {
		return false
	}
	slot := c.slotFor(e.lpn)
	var prev *entry
	for cur := c.slots[slot]; cur != nil; cur = cur.hashNext {
		if cur == e {
			if prev == nil {
				c.slots[slot] = cur.hashNext
			} else {
				prev.hashNext = cur.hashNext
			}
			break
		}
		prev = cur
	}
	c.unlink(e)
	c.size--
	c.Evictions.Inc()
	return true
}
