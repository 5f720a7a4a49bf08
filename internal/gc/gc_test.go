package gc

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/l2p"
	"github.com/dingcuiyu/conzone-go/internal/line"
	"github.com/dingcuiyu/conzone-go/internal/nandq"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/status"
	"github.com/dingcuiyu/conzone-go/internal/timing"
	"github.com/dingcuiyu/conzone-go/internal/wp"
)

// singleDieGeom returns a geometry with exactly one die and a one-page
// oneshot unit, so every relocated page flushes immediately and GC's
// aggregation logic can be checked one step at a time.
func singleDieGeom() *geom.Params {
	g := geom.Default()
	g.Channels, g.LunsPerCh, g.PlanesPerLun = 1, 1, 1
	g.PageSize = 4096
	g.OneshotPageSize = 4096
	g.PslcOneshotPageSize = 4096
	return g
}

func testRig(g *geom.Params) (*l2p.Table, *ppa.Codec, ppa.Dims, *nandq.Scheduler) {
	codec := ppa.NewCodec(g.Channels, g.LunsPerCh, g.PlanesPerLun, g.BlksPerPlane, 8, int(l2p.SubZone)+1)
	dims := ppa.Dims{LunsPerCh: g.LunsPerCh, PlanesPerLun: g.PlanesPerLun, BlksPerLine: g.BlksPerPlane, PgsPerBlk: 8}
	cache := l2p.New(64, 16, 2)
	table := l2p.NewTable(1024, g.Channels*g.LunsPerCh*g.PlanesPerLun*g.BlksPerPlane*8, codec, 4, 16, 8, false, cache)
	tm := timing.NewModel(g.Channels, g.ChannelBandwidthBps, g.PCIeBandwidthBps, g.FWXferLatencyPer4KNs, int64(g.MaxChXferSize))
	sched := nandq.NewScheduler(g, tm)
	return table, codec, dims, sched
}

func newFourPageLine(id int) *line.Line_t {
	l := &line.Line_t{ID: id, Tier: status.Normal, PgsPerLine: 4}
	l.Blocks = append(l.Blocks, line.NewBlock(id, geom.TLC, 4))
	return l
}

func TestForegroundGCRelocatesValidPagesAndErasesVictim(t *testing.T) {
	g := singleDieGeom()
	table, codec, dims, sched := testRig(g)

	mgr := line.NewManager(status.Normal, false)
	victim := newFourPageLine(0)
	mgr.AddFree(victim)
	mgr.AllocateFree()

	// Program all 4 pages: two owned (valid), two already invalidated.
	victim.Blocks[0].MarkValid(0)
	victim.Blocks[0].MarkValid(1)
	victim.Blocks[0].MarkValid(2)
	victim.Blocks[0].MarkInvalid(2)
	victim.Blocks[0].MarkValid(3)
	victim.Blocks[0].MarkInvalid(3)

	table.Set(100, codec.Pack(ppa.Fields{Blk: 0, Pg: 0}), dims.PgIdx(ppa.Fields{Blk: 0, Pg: 0}))
	table.Set(101, codec.Pack(ppa.Fields{Blk: 0, Pg: 1}), dims.PgIdx(ppa.Fields{Blk: 0, Pg: 1}))

	mgr.MarkFull(victim)
	mgr.MarkVictim(victim)

	destLine := newFourPageLine(1)
	destMgr := line.NewManager(status.Normal, false)
	destMgr.AddFree(destLine)
	destWP := wp.New(g, status.Normal)
	latch := &status.Latch_t{}
	destWP.Bind(destMgr, latch)

	creds := NewCredits(0)
	eng := NewEngine(status.Normal, g, codec, dims, table, mgr, sched, destWP, creds, nil)

	if !eng.Run(0, true, destMgr, latch) {
		t.Fatal("Run should perform a GC pass with a victim available")
	}

	if table.Get(100) == ppa.Unmapped || table.Get(101) == ppa.Unmapped {
		t.Fatal("relocated LPNs should still be mapped after GC")
	}
	if mgr.FreeCount() != 1 {
		t.Fatalf("FreeCount() after erase = %d, want 1 (victim returned to free list)", mgr.FreeCount())
	}
	if victim.VPC() != 0 || victim.IPC() != 0 {
		t.Fatalf("victim counters not reset after erase: vpc=%d ipc=%d", victim.VPC(), victim.IPC())
	}
	if creds.Balance() != 2 {
		t.Fatalf("credits refilled = %d, want 2 (ipc=2 + rpc=0)", creds.Balance())
	}
	if eng.PagesRelocated.Get() != 2 {
		t.Fatalf("PagesRelocated = %d, want 2", eng.PagesRelocated.Get())
	}
}

func TestForegroundGCSkipsBelowThreshold(t *testing.T) {
	g := singleDieGeom()
	table, codec, dims, sched := testRig(g)
	mgr := line.NewManager(status.Normal, false)
	for i := 0; i < 5; i++ {
		mgr.AddFree(newFourPageLine(i))
	}
	destWP := wp.New(g, status.Normal)
	eng := NewEngine(status.Normal, g, codec, dims, table, mgr, sched, destWP, NewCredits(0), nil)
	if eng.Run(0, false, mgr, &status.Latch_t{}) {
		t.Fatal("Run should not GC when well above the free-line threshold")
	}
}
