package wp

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/line"
	"github.com/dingcuiyu/conzone-go/internal/status"
)

func smallGeom() *geom.Params {
	g := geom.Default()
	g.Channels, g.LunsPerCh, g.PlanesPerLun = 2, 1, 1
	return g
}

func interleavedLine(g *geom.Params, id, pgsPerBlk int) *line.Line_t {
	l := &line.Line_t{ID: id, Tier: status.Normal, PgsPerLine: g.Channels * g.LunsPerCh * g.PlanesPerLun * pgsPerBlk}
	for i := 0; i < g.Channels*g.LunsPerCh*g.PlanesPerLun; i++ {
		l.Blocks = append(l.Blocks, line.NewBlock(i, geom.TLC, pgsPerBlk))
	}
	return l
}

func TestAdvanceRotatesDiesBeforePage(t *testing.T) {
	g := smallGeom()
	mgr := line.NewManager(status.Normal, false)
	l := interleavedLine(g, 0, 2)
	mgr.AddFree(l)

	w := New(g, status.Normal)
	latch := &status.Latch_t{}
	if !w.Bind(mgr, latch) {
		t.Fatal("Bind should succeed with a free line available")
	}

	first := w.Current()
	if first.Ch != 0 || first.Pg != 0 {
		t.Fatalf("first address = %+v", first)
	}
	if _, ok := w.Advance(mgr, latch); !ok {
		t.Fatal("Advance should succeed within the line")
	}
	second := w.Current()
	if second.Ch != 1 || second.Pg != 0 {
		t.Fatalf("second address = %+v, want ch=1 pg=0 (rotate dies before page)", second)
	}
}

func TestAdvanceExhaustsLineIntoFullList(t *testing.T) {
	g := smallGeom()
	mgr := line.NewManager(status.Normal, false)
	l := interleavedLine(g, 0, 1) // 1 page per die * 2 dies == 2 total pages
	second := interleavedLine(g, 1, 1)
	mgr.AddFree(l)
	mgr.AddFree(second)

	w := New(g, status.Normal)
	latch := &status.Latch_t{}
	w.Bind(mgr, latch)

	// Program both pages of the first line so it reads as full; the pointer
	// advances once per programmed page, so only the second Advance leaves
	// the line.
	for _, b := range l.Blocks {
		b.MarkValid(0)
	}

	if exhausted, ok := w.Advance(mgr, latch); !ok || exhausted != nil {
		t.Fatal("first Advance should move to the line's second die without leaving it")
	}
	exhausted, ok := w.Advance(mgr, latch)
	if !ok {
		t.Fatal("Advance should pull a fresh line from the free list")
	}
	if exhausted != l {
		t.Fatal("expected the exhausted line to be the one we just filled")
	}
	if w.CurLine != second {
		t.Fatal("write pointer should now be bound to the only remaining free line")
	}
}

func TestBindLatchesOnExhaustion(t *testing.T) {
	g := smallGeom()
	mgr := line.NewManager(status.PSLC, false)
	w := New(g, status.PSLC)
	latch := &status.Latch_t{}
	if w.Bind(mgr, latch) {
		t.Fatal("Bind should fail with no free lines")
	}
	if !latch.Full() {
		t.Fatal("latch should be set after exhausting the free list")
	}
}
