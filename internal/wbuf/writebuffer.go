// Package wbuf implements the device's write buffer(s): fixed-capacity LPN
// staging areas that aggregate host writes into oneshot-page-sized flushes,
// with a zone-assignment policy deciding which buffer a given write lands
// in. Buffer itself replaces a Circbuf_t-style raw byte ring (used for a
// single-producer/single-consumer daemon's I/O) with an ordered LPN
// list plus the {capacity, remaining, pgs, zid, flushing, flush_data, time,
// sqid} bookkeeping a write buffer needs, but keeps Circbuf_t's shape of a
// small struct with an explicit reset operation and full/empty queries.
package wbuf

import (
	"sync"

	"github.com/dingcuiyu/conzone-go/internal/geom"
)

/// Unassigned is the Zid value meaning "not currently claimed by any zone".
const Unassigned int64 = -1

/// Buffer is a single write-buffer instance.
type Buffer struct {
	mu sync.Mutex

	Capacity int /// total byte capacity
	Lpns     []int64
	Zid      int64 /// zone id this buffer is staging for, or Unassigned
	Flushing bool
	FlushData int /// bytes aggregated so far
	Time      int64
	Sqid      int
}

/// NewBuffer returns an idle buffer with the given byte capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{Capacity: capacity, Zid: Unassigned}
}

/// Remaining returns the number of bytes still free in the buffer.
func (b *Buffer) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Capacity - b.FlushData
}

/// Idle reports whether the buffer is unassigned and not flushing.
func (b *Buffer) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.Flushing && b.Zid == Unassigned
}

/// Pgs returns the number of LPNs currently staged.
func (b *Buffer) Pgs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Lpns)
}

/// Full reports whether the buffer has no room left for another page.
func (b *Buffer) Full(pageSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.FlushData+pageSize > b.Capacity
}

/// Append stages lpn, claiming the buffer for zid if it was unassigned.
/// Returns false if the buffer cannot accept the page (wrong zone, full, or
/// already flushing).
func (b *Buffer) Append(zid int64, lpn int64, pageSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Flushing {
		return false
	}
	if b.Zid != Unassigned && b.Zid != zid {
		return false
	}
	if b.FlushData+pageSize > b.Capacity {
		return false
	}
	b.Zid = zid
	b.Lpns = append(b.Lpns, lpn)
	b.FlushData += pageSize
	return true
}

/// BeginFlush snapshots the staged LPNs and marks the buffer flushing,
/// returning the LPNs to write out. The caller must eventually call
/// CompleteFlush (directly, or via Pool.Release once every outstanding
/// completion callback has run).
func (b *Buffer) BeginFlush(now int64, sqid int) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	lpns := append([]int64(nil), b.Lpns...)
	b.Flushing = true
	b.Time = now
	b.Sqid = sqid
	return lpns
}

// reset clears a buffer back to its idle state; called by Pool.Release.
func (b *Buffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Lpns = nil
	b.Zid = Unassigned
	b.Flushing = false
	b.FlushData = 0
	b.Time = 0
	b.Sqid = 0
}

/// CompleteFlush is the non-pooled equivalent of Pool.Release: it clears the
/// buffer directly, for callers managing a single Buffer outside a Pool.
func (b *Buffer) CompleteFlush() {
	b.reset()
}

/// Compact removes any staged LPN in [slba, elba) (e.g. a zone reset
/// invalidating tail writes still sitting in the buffer), preserving order
/// of what remains, and reports how many bytes were evicted. No-op while
/// the buffer is flushing.
func (b *Buffer) Compact(slba, elba int64, pageSize int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Flushing {
		return 0
	}
	kept := b.Lpns[:0]
	evicted := 0
	for _, lpn := range b.Lpns {
		if lpn >= slba && lpn < elba {
			evicted++
			continue
		}
		kept = append(kept, lpn)
	}
	b.Lpns = kept
	b.FlushData -= evicted * pageSize
	if len(b.Lpns) == 0 {
		b.Zid = Unassigned
	}
	return evicted * pageSize
}

/// Acquire implements zoned write-buffer selection against a Pool:
/// the buffer already assigned to zid, else an idle buffer, else — under the
/// static policy, and only if nothing is flushing — the buffer holding the
/// most pending data. Under the mod policy the buffer is chosen directly by
/// zid without any scan or stealing.
func Acquire(pool *Pool, policy geom.WBPolicy, zid int64) (idx int, buf *Buffer, ok bool) {
	if policy == geom.WBMod {
		i := int(((zid % int64(pool.Len())) + int64(pool.Len())) % int64(pool.Len()))
		b := pool.At(i)
		if b.Idle() || b.Zid == zid {
			return i, b, true
		}
		return 0, nil, false
	}

	found := -1
	pool.Each(func(i int, b *Buffer) {
		if found == -1 && !b.Idle() && b.Zid == zid {
			found = i
		}
	})
	if found != -1 {
		return found, pool.At(found), true
	}

	if i, b, ok := pool.Acquire(); ok {
		return i, b, true
	}

	stealIdx, stealData, anyFlushing := -1, -1, false
	pool.Each(func(i int, b *Buffer) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.Flushing {
			anyFlushing = true
			return
		}
		if b.Zid == zid {
			return
		}
		if b.FlushData > stealData {
			stealIdx, stealData = i, b.FlushData
		}
	})
	if anyFlushing || stealIdx == -1 {
		return 0, nil, false
	}
	return stealIdx, pool.At(stealIdx), true
}
