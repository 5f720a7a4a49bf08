// Package line manages superblocks ("lines"): groups of one block per
// (channel, LUN, plane) that age together through free -> active -> full ->
// victim -> free. Free and full membership are tracked with container/list,
// the same list-wrapping idiom a BlkList_t uses for its block cache lists;
// victim selection and pSLC migration order are tracked with
// internal/heapq indexed min-heaps instead, since unlike a cache list those
// two need O(log n) removal/re-priority by handle, not just FIFO push/pop.
package line

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/heapq"
	"github.com/dingcuiyu/conzone-go/internal/status"
)

/// PageStatus names one page's lifecycle state within a block. Reserved is
/// a sub-state of valid: the page has been pre-claimed by
/// update_or_reserve_mapping for a multi-page mapping unit but its
/// reverse-map entry still reads InvalidLPN because no LPN owns it yet.
type PageStatus uint8

const (
	PageFree PageStatus = iota
	PageValid
	PageInvalid
	PageReserved
)

/// Block_t is one physical NAND block: one die's share of a line.
type Block_t struct {
	ID       int
	NandType geom.CellMode
	usedPgs  int32
	vpc      int32
	ipc      int32
	EraseCnt int32

	mu     sync.Mutex
	status []PageStatus
}

/// NewBlock returns a freshly-erased block with usedPgs programmable pages.
func NewBlock(id int, mode geom.CellMode, usedPgs int) *Block_t {
	return &Block_t{ID: id, NandType: mode, usedPgs: int32(usedPgs), status: make([]PageStatus, usedPgs)}
}

/// UsedPgs returns the number of programmable pages in the block.
func (b *Block_t) UsedPgs() int { return int(atomic.LoadInt32(&b.usedPgs)) }

/// VPC returns the block's valid-page count (reserved pages count as valid).
func (b *Block_t) VPC() int32 { return atomic.LoadInt32(&b.vpc) }

/// IPC returns the block's invalid-page count.
func (b *Block_t) IPC() int32 { return atomic.LoadInt32(&b.ipc) }

/// FreeCount returns how many of the block's pages are still unprogrammed.
func (b *Block_t) FreeCount() int {
	return int(b.usedPgs) - int(b.VPC()) - int(b.IPC())
}

/// StatusAt returns page pg's current status.
func (b *Block_t) StatusAt(pg int) PageStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status[pg]
}

/// MarkValid programs page pg directly with an owned mapping (free -> valid).
func (b *Block_t) MarkValid(pg int) {
	b.mu.Lock()
	b.status[pg] = PageValid
	b.mu.Unlock()
	atomic.AddInt32(&b.vpc, 1)
}

/// MarkReserved programs page pg as a pre-claimed, not-yet-owned slot
/// (free -> reserved); reserved pages count toward vpc like any valid page.
func (b *Block_t) MarkReserved(pg int) {
	b.mu.Lock()
	b.status[pg] = PageReserved
	b.mu.Unlock()
	atomic.AddInt32(&b.vpc, 1)
}

/// ClaimReserved transitions a reserved page to fully valid once an LPN
/// takes ownership of it (no vpc change; reserved already counted as valid).
func (b *Block_t) ClaimReserved(pg int) {
	b.mu.Lock()
	b.status[pg] = PageValid
	b.mu.Unlock()
}

/// MarkInvalid moves page pg from valid (or reserved) to invalid — an
/// overwrite, a zone reset, or a GC/migration relocation invalidating the
/// old mapping.
func (b *Block_t) MarkInvalid(pg int) {
	b.mu.Lock()
	b.status[pg] = PageInvalid
	b.mu.Unlock()
	atomic.AddInt32(&b.vpc, -1)
	atomic.AddInt32(&b.ipc, 1)
}

/// Erase resets the block's counters and per-page status after a NAND erase
/// and bumps EraseCnt.
func (b *Block_t) Erase() {
	b.mu.Lock()
	for i := range b.status {
		b.status[i] = PageFree
	}
	b.mu.Unlock()
	atomic.StoreInt32(&b.vpc, 0)
	atomic.StoreInt32(&b.ipc, 0)
	atomic.AddInt32(&b.EraseCnt, 1)
}

/// membership names which container a Line_t currently belongs to.
type membership int

const (
	memberNone membership = iota
	memberFree
	memberFull
	memberVictim
	memberActive
)

/// Line_t is a superblock: either an interleaved parent (writes rotate
/// across Blocks before the page index advances) or a sub-lined parent,
/// whose SubLines hold one block's worth of independent vpc/ipc/rpc each
/// while Blocks still lists every physical block for erase bookkeeping.
type Line_t struct {
	ID         int
	Tier       status.Tier
	Blocks     []*Block_t
	SubLines   []*Line_t
	PgsPerLine int

	rpc int32 /// reserved-but-not-yet-claimed pages (update_or_reserve_mapping bookkeeping)

	member       membership
	elem         *list.Element
	victimHandle heapq.Handle
	hasVictim    bool
	migHandle    heapq.Handle
	hasMig       bool
	writeOrder   int64
}

/// VPC sums the valid-page counts of every block in the line.
func (l *Line_t) VPC() int32 {
	var sum int32
	for _, b := range l.Blocks {
		sum += b.VPC()
	}
	return sum
}

/// IPC sums the invalid-page counts of every block in the line.
func (l *Line_t) IPC() int32 {
	var sum int32
	for _, b := range l.Blocks {
		sum += b.IPC()
	}
	return sum
}

/// RPC returns the line's reserved-page count.
func (l *Line_t) RPC() int32 { return atomic.LoadInt32(&l.rpc) }

/// IncRPC increments the reserved-page count by delta (delta may be negative,
/// e.g. dec_line_rpc during GC).
func (l *Line_t) IncRPC(delta int32) {
	atomic.AddInt32(&l.rpc, delta)
}

/// IsFull reports whether every page in the line is valid.
func (l *Line_t) IsFull() bool {
	return l.VPC() == int32(l.PgsPerLine)
}

/// Manager owns one tier's free list, full list, victim priority queue, and
/// (for the pSLC tier only) the migration FIFO ordering full sub-lines by
/// the order they filled.
type Manager struct {
	tier      status.Tier
	free      *list.List
	full      *list.List
	victimPQ  *heapq.Heap
	migPQ     *heapq.Heap /// nil for the normal tier: only pSLC lines migrate
	nextOrder int64
}

/// NewManager returns an empty line manager for the given tier. migrates
/// selects whether this tier feeds a migration FIFO (true for pSLC).
func NewManager(tier status.Tier, migrates bool) *Manager {
	m := &Manager{
		tier: tier,
		free: list.New(),
		full: list.New(),
	}
	m.victimPQ = heapq.New()
	if migrates {
		m.migPQ = heapq.New()
	}
	return m
}

/// AddFree inserts a freshly-created (or freshly-erased) line into the free
/// list.
func (m *Manager) AddFree(l *Line_t) {
	l.member = memberFree
	l.elem = m.free.PushBack(l)
}

/// FreeCount returns how many lines currently sit on the free list.
func (m *Manager) FreeCount() int { return m.free.Len() }

/// AllocateFree pulls a line off the free list for a write pointer to claim,
/// or returns nil if the tier has no free lines left.
func (m *Manager) AllocateFree() *Line_t {
	e := m.free.Front()
	if e == nil {
		return nil
	}
	l := e.Value.(*Line_t)
	m.free.Remove(e)
	l.elem = nil
	l.member = memberActive
	return l
}

/// MarkFull moves a line from active use into the full list. If this
/// manager runs a migration FIFO, the line is also pushed there keyed by
/// the order it filled.
func (m *Manager) MarkFull(l *Line_t) {
	l.member = memberFull
	l.elem = m.full.PushBack(l)
	if m.migPQ != nil {
		l.writeOrder = m.nextOrder
		m.nextOrder++
		l.migHandle = m.migPQ.Insert(l.writeOrder, l)
		l.hasMig = true
	}
}

/// MarkVictim moves a line from the full list into the victim priority
/// queue, keyed on its current vpc (lowest vpc is GC'd first).
func (m *Manager) MarkVictim(l *Line_t) {
	if l.elem != nil && l.member == memberFull {
		m.full.Remove(l.elem)
		l.elem = nil
	}
	l.member = memberVictim
	l.victimHandle = m.victimPQ.Insert(int64(l.VPC()), l)
	l.hasVictim = true
}

/// ReprioritizeVictim re-keys a line already in the victim queue after its
/// vpc changes (e.g. a further invalidation against it).
func (m *Manager) ReprioritizeVictim(l *Line_t) {
	if l.hasVictim {
		m.victimPQ.ChangePriority(l.victimHandle, int64(l.VPC()))
	}
}

/// PopVictim removes and returns the lowest-vpc line from the victim queue.
func (m *Manager) PopVictim() *Line_t {
	v, _, _, ok := m.victimPQ.Pop()
	if !ok {
		return nil
	}
	l := v.(*Line_t)
	l.hasVictim = false
	return l
}

/// PeekMigration returns the pSLC sub-line that filled longest ago, without
/// removing it. ok is false if this manager has no migration FIFO or it is
/// empty.
func (m *Manager) PeekMigration() (l *Line_t, ok bool) {
	if m.migPQ == nil {
		return nil, false
	}
	v, _, _, found := m.migPQ.Peek()
	if !found {
		return nil, false
	}
	return v.(*Line_t), true
}

/// PopMigration removes and returns the pSLC sub-line that filled longest
/// ago.
func (m *Manager) PopMigration() (l *Line_t, ok bool) {
	if m.migPQ == nil {
		return nil, false
	}
	v, _, _, found := m.migPQ.Pop()
	if !found {
		return nil, false
	}
	l = v.(*Line_t)
	l.hasMig = false
	return l, true
}

/// Erase resets a line's blocks and counters and returns it to the free
/// list; callers must have already issued the NAND erase for every block.
func (m *Manager) Erase(l *Line_t) {
	switch l.member {
	case memberFull:
		if l.elem != nil {
			m.full.Remove(l.elem)
			l.elem = nil
		}
	case memberVictim:
		if l.hasVictim {
			m.victimPQ.Remove(l.victimHandle)
			l.hasVictim = false
		}
	}
	if l.hasMig {
		m.migPQ.Remove(l.migHandle)
		l.hasMig = false
	}
	for _, b := range l.Blocks {
		b.Erase()
	}
	atomic.StoreInt32(&l.rpc, 0)
	m.AddFree(l)
}
