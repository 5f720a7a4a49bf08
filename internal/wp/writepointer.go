// Package wp implements write pointers: the cursors that decide the next
// physical address a tier's line-manager hands out to a page program. The
// device keeps one instance per pool (pSLC data, meta, normal), each walking
// its own current line; GC and migration relocate through the same instance
// as user writes to that pool, so there is no separate GC write pointer.
package wp

import (
	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/line"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/status"
)

/// WritePointer tracks the next unprogrammed address within its current
/// line. For an interleaved line, Ch/Lun/Pl rotate through every die before
/// Pg advances; for a sub-lined line, Ch/Lun/Pl stay fixed at the die the
/// sub-line belongs to and only Pg advances.
type WritePointer struct {
	geo  *geom.Params
	Tier status.Tier

	CurLine *line.Line_t
	SubIdx  int /// index into CurLine.SubLines, or -1 when walking CurLine itself

	Ch, Lun, Pl, Pg int

	/// NextLineHint, when set, is consumed by the next Advance that
	/// exhausts the current line instead of pulling a fresh one from the
	/// free list — akin to a reserved-next-line hint, used when a
	/// multi-granularity reservation spans two lines.
	NextLineHint *line.Line_t
}

/// New returns an unbound write pointer for the given tier; call Bind
/// before using it.
func New(geo *geom.Params, tier status.Tier) *WritePointer {
	return &WritePointer{geo: geo, Tier: tier, SubIdx: -1}
}

func (wp *WritePointer) dieCount() int {
	return wp.geo.Channels * wp.geo.LunsPerCh * wp.geo.PlanesPerLun
}

func (wp *WritePointer) dieIndex(ch, lun, pl int) int {
	return (ch*wp.geo.LunsPerCh+lun)*wp.geo.PlanesPerLun + pl
}

// bind resets the cursor to the start of l, choosing sub-line mode if l has
// sub-lines.
func (wp *WritePointer) bind(l *line.Line_t) {
	wp.CurLine = l
	wp.Ch, wp.Lun, wp.Pl, wp.Pg = 0, 0, 0, 0
	if len(l.SubLines) > 0 {
		wp.SubIdx = 0
	} else {
		wp.SubIdx = -1
	}
}

/// Bind claims a fresh line from mgr's free list. latch is notified if the
/// tier has run out of free lines. Returns false on exhaustion.
func (wp *WritePointer) Bind(mgr *line.Manager, latch *status.Latch_t) bool {
	l := mgr.AllocateFree()
	if l == nil {
		latch.Set(wp.Tier)
		return false
	}
	wp.bind(l)
	return true
}

// active returns whichever line (CurLine, or its current sub-line) the
// cursor is actually walking.
func (wp *WritePointer) active() *line.Line_t {
	if wp.SubIdx >= 0 {
		return wp.CurLine.SubLines[wp.SubIdx]
	}
	return wp.CurLine
}

/// Current returns the physical address the next program will use, without
/// advancing the pointer.
func (wp *WritePointer) Current() ppa.Fields {
	a := wp.active()
	var blk int
	if wp.SubIdx >= 0 {
		blk = a.Blocks[0].ID
	} else {
		blk = a.Blocks[wp.dieIndex(wp.Ch, wp.Lun, wp.Pl)].ID
	}
	return ppa.Fields{Ch: wp.Ch, Lun: wp.Lun, Pl: wp.Pl, Blk: blk, Pg: wp.Pg}
}

// advanceCursor moves to the next address within the active line/sub-line.
// Returns false once the line is exhausted.
func (wp *WritePointer) advanceCursor() bool {
	a := wp.active()
	if wp.SubIdx >= 0 {
		wp.Pg++
		return wp.Pg < a.PgsPerLine
	}
	wp.Pl++
	if wp.Pl >= wp.geo.PlanesPerLun {
		wp.Pl = 0
		wp.Lun++
		if wp.Lun >= wp.geo.LunsPerCh {
			wp.Lun = 0
			wp.Ch++
			if wp.Ch >= wp.geo.Channels {
				wp.Ch = 0
				wp.Pg++
			}
		}
	}
	pagesPerDie := a.PgsPerLine / wp.dieCount()
	return wp.Pg < pagesPerDie
}

/// Advance moves the write pointer to its next address. If doing so
/// exhausts the current line (or sub-line), that line is classified into
/// its tier's full list or victim priority queue and a new line is bound —
/// from NextLineHint if set, else pulled fresh from mgr's free list.
/// exhausted is the line that was just retired (nil if none was). ok is
/// false if the tier ran out of free lines to replace it with.
func (wp *WritePointer) Advance(mgr *line.Manager, latch *status.Latch_t) (exhausted *line.Line_t, ok bool) {
	if wp.advanceCursor() {
		return nil, true
	}

	old := wp.active()
	switch {
	case old.VPC() == int32(old.PgsPerLine):
		mgr.MarkFull(old)
	case old.IPC() > 0:
		mgr.MarkVictim(old)
	default:
		panic("wp: line exhausted with neither full vpc nor any invalid pages")
	}

	if wp.NextLineHint != nil {
		l := wp.NextLineHint
		wp.NextLineHint = nil
		wp.bind(l)
		return old, true
	}

	if !wp.Bind(mgr, latch) {
		wp.CurLine = nil
		return old, false
	}
	return old, true
}
