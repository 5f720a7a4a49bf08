package wbuf

import "sync"

const noSlot = ^uint32(0)

// slot wraps one Buffer with a free-list link and a release refcount,
// adapted from a Physmem_t/Physpg_t-style index-linked free list with
// per-page refcounts: instead of physical pages, each slot holds a write
// buffer, and instead of letting a page go once its mapping refcount drops
// to zero, a buffer returns to the free list once every in-flight release
// callback referencing it has run — buffer_flush schedules a future
// buffer_release that must complete before reuse, and more than one flush
// callback can be outstanding against the same buffer's prior generation.
type slot struct {
	buf    *Buffer
	refcnt int32
	nexti  uint32
}

/// Pool is a fixed-size collection of write buffers tracked by an
/// index-linked free list, so "grab any idle buffer" is O(1) instead of a
/// linear scan.
type Pool struct {
	mu      sync.Mutex
	slots   []slot
	freei   uint32
	freelen int
}

/// NewPool allocates n buffers of the given byte capacity, all initially on
/// the free list.
func NewPool(n, capacity int) *Pool {
	p := &Pool{slots: make([]slot, n)}
	for i := range p.slots {
		p.slots[i].buf = NewBuffer(capacity)
		p.slots[i].refcnt = 0
		if i == n-1 {
			p.slots[i].nexti = noSlot
		} else {
			p.slots[i].nexti = uint32(i + 1)
		}
	}
	if n > 0 {
		p.freei = 0
		p.freelen = n
	} else {
		p.freei = noSlot
	}
	return p
}

/// Len returns the total number of buffers in the pool.
func (p *Pool) Len() int { return len(p.slots) }

/// FreeLen returns how many buffers currently sit on the free list.
func (p *Pool) FreeLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freelen
}

/// Acquire pops an idle buffer off the free list and marks it referenced.
/// ok is false if every buffer is already assigned or flushing.
func (p *Pool) Acquire() (idx int, buf *Buffer, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.freei == noSlot {
		return 0, nil, false
	}
	i := p.freei
	p.freei = p.slots[i].nexti
	p.freelen--
	p.slots[i].refcnt = 1
	return int(i), p.slots[i].buf, true
}

/// At returns the buffer at idx without affecting the free list — used to
/// rescan assigned buffers during static-policy lookup.
func (p *Pool) At(idx int) *Buffer {
	return p.slots[idx].buf
}

/// Each calls f once per (index, buffer) pair in pool order.
func (p *Pool) Each(f func(idx int, buf *Buffer)) {
	for i := range p.slots {
		f(i, p.slots[i].buf)
	}
}

/// Hold increments idx's release refcount, e.g. when a second flush
/// completion callback is scheduled against the same buffer generation.
func (p *Pool) Hold(idx int) {
	p.mu.Lock()
	p.slots[idx].refcnt++
	p.mu.Unlock()
}

/// Release decrements idx's release refcount; once it reaches zero the
/// buffer's state is reset and the slot returns to the free list.
func (p *Pool) Release(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[idx].refcnt--
	if p.slots[idx].refcnt > 0 {
		return
	}
	p.slots[idx].buf.reset()
	p.slots[idx].nexti = p.freei
	p.freei = uint32(idx)
	p.freelen++
}
