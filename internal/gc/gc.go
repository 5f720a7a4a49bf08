package gc

// gc.go implements foreground garbage collection: the victim-selection and
// relocation half of the tier's reclaim path. migrate.go implements the
// other half (pSLC -> normal migration), sharing internalWrite's
// read-then-write relocation shape but differing in victim source,
// destination-aggregation unit, and trigger.

import (
	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/l2p"
	"github.com/dingcuiyu/conzone-go/internal/line"
	"github.com/dingcuiyu/conzone-go/internal/nandq"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/status"
	"github.com/dingcuiyu/conzone-go/internal/stats"
	"github.com/dingcuiyu/conzone-go/internal/wp"
)

/// IOType tags who issued an internal NAND command, the same tag a Cmd
/// carries into the scheduler for migration-preemption purposes.
type IOType int

const (
	UserIO IOType = iota
	GCIOType
	MigrateIOType
	MapReadIO
)

func (t IOType) cmdType() nandq.CmdType {
	switch t {
	case GCIOType:
		return nandq.GC
	case MigrateIOType:
		return nandq.Migrate
	case MapReadIO:
		return nandq.MapRead
	default:
		return nandq.User
	}
}

/// GCThresLinesHigh is the free-line low-water mark that triggers
/// foreground GC for a tier.
const GCThresLinesHigh = 2

/// ZoneOf maps an LPN to the aggregation unit GC batches relocations by —
/// a zone ID for zoned namespaces, or a constant (e.g. 0) for the block
/// namespace, which has a single aggregator.
type ZoneOf func(lpn int64) int64

/// Engine runs foreground GC for one tier. DestWP is the GC write pointer
/// pages are relocated through; for self-relocating tiers (normal GC) it
/// shares the same tier as the victim.
type Engine struct {
	Tier   status.Tier
	Geo    *geom.Params
	Codec  *ppa.Codec
	Dims   ppa.Dims
	Table  *l2p.Table
	Lines  *line.Manager
	Sched  *nandq.Scheduler
	DestWP *wp.WritePointer
	Creds  *Credits
	ZoneOf ZoneOf

	// GCAggLpns stashes an undersized tail aggregator so it rides out on the
	// next user flush instead of polluting the destination tier with a
	// misaligned oneshot write.
	GCAggLpns map[int64][]int64

	// BlockLookup finds the block (and owning line) a packed PPA belongs to;
	// the assembling FTL supplies this since GC has no index of its own from
	// physical address back to *line.Line_t.
	BlockLookup func(ppa.Fields) (*line.Block_t, *line.Line_t)

	GCCount         stats.Counter_t
	CreditsRefilled stats.Counter_t
	PagesRelocated  stats.Counter_t
}

/// NewEngine wires a GC engine for one tier.
func NewEngine(tier status.Tier, geo *geom.Params, codec *ppa.Codec, dims ppa.Dims, table *l2p.Table, lines *line.Manager, sched *nandq.Scheduler, destWP *wp.WritePointer, creds *Credits, zoneOf ZoneOf) *Engine {
	return &Engine{
		Tier: tier, Geo: geo, Codec: codec, Dims: dims, Table: table,
		Lines: lines, Sched: sched, DestWP: destWP, Creds: creds, ZoneOf: zoneOf,
		GCAggLpns: make(map[int64][]int64),
	}
}

func (e *Engine) pslc() bool { return e.Tier == status.PSLC }

/// ShouldGCHigh reports whether the tier's free-line count has dropped to
/// the high-water threshold that triggers foreground GC.
func (e *Engine) ShouldGCHigh() bool {
	return e.Lines.FreeCount() <= GCThresLinesHigh
}

// dieFields decodes a block's position within Blocks back into ch/lun/pl,
// the inverse of the (ch*lunsPerCh+lun)*planesPerLun+pl ordering every
// interleaved line and write pointer share.
func (e *Engine) dieFields(dieIdx int) (ch, lun, pl int) {
	pl = dieIdx % e.Geo.PlanesPerLun
	dieIdx /= e.Geo.PlanesPerLun
	lun = dieIdx % e.Geo.LunsPerCh
	ch = dieIdx / e.Geo.LunsPerCh
	return
}

// validLPNs walks every block in victim and collects the LPNs of its valid
// (owned) pages via the reverse map, along with their source PPAs.
func (e *Engine) validLPNs(victim *line.Line_t) (lpns []int64, addrs map[int64]ppa.PPA) {
	addrs = make(map[int64]ppa.PPA)
	pgsPerDie := victim.PgsPerLine / len(victim.Blocks)
	for i, b := range victim.Blocks {
		ch, lun, pl := e.dieFields(i)
		for pg := 0; pg < pgsPerDie; pg++ {
			if b.StatusAt(pg) != line.PageValid {
				continue
			}
			f := ppa.Fields{Ch: ch, Lun: lun, Pl: pl, Blk: b.ID, Pg: pg}
			idx := e.Dims.PgIdx(f)
			lpn := e.Table.RMapAt(idx)
			if lpn == l2p.InvalidLPN {
				continue
			}
			lpns = append(lpns, lpn)
			addrs[lpn] = e.Codec.Pack(f)
		}
	}
	return lpns, addrs
}

// readSource issues the NAND reads for lpns' source pages and returns the
// max completion time across them (nand_read's aggregation by flash page is
// an implementation-level batching optimization; this models its timing
// contract without requiring callers to pre-sort by flash page).
func (e *Engine) readSource(now int64, addrs map[int64]ppa.PPA, lpns []int64, ioType IOType) int64 {
	var maxT int64
	for _, lpn := range lpns {
		f := e.Codec.Unpack(addrs[lpn])
		cmd := &nandq.Cmd{
			Kind: nandq.Read, Type: ioType.cmdType(), Ppa: f,
			XferSize: e.Geo.PageSize, Stime: now, CellMode: e.blockCellMode(f),
		}
		t := e.Sched.Advance(cmd)
		if t > maxT {
			maxT = t
		}
	}
	return maxT
}

func (e *Engine) blockCellMode(f ppa.Fields) geom.CellMode {
	if e.pslc() {
		return geom.SLC
	}
	return geom.TLC
}

// internalWrite relocates lpns into destWP's tier at stime, invalidating
// their old mapping and programming a fresh one. This mirrors nand_write's
// one-program-per-oneshot-unit batching at a page granularity rather than
// modeling partial-oneshot accumulation, since GC/migration always flush
// whatever it has accumulated as a complete unit before calling it.
func (e *Engine) internalWrite(stime int64, lpns []int64, destWP *wp.WritePointer, destLines *line.Manager, destLatch *status.Latch_t, ioType IOType) int64 {
	var completion int64
	for _, lpn := range lpns {
		addr := e.Table.Get(lpn)
		if addr != ppa.Unmapped {
			e.invalidateOwner(addr)
		}

		dest := destWP.Current()
		pgidx := e.Dims.PgIdx(dest)
		e.markBlockValid(destWP, dest)
		packed := e.Codec.Pack(dest)
		e.Table.Set(lpn, packed, pgidx)

		cellMode := geom.TLC
		if destWP.Tier == status.PSLC {
			cellMode = geom.SLC
		}
		cmd := &nandq.Cmd{
			Kind: nandq.Write, Type: ioType.cmdType(), Ppa: dest,
			XferSize: e.Geo.PageSize, Stime: stime, CellMode: cellMode,
		}
		completion = e.Sched.Advance(cmd)

		if _, ok := destWP.Advance(destLines, destLatch); !ok {
			break
		}
		e.PagesRelocated.Inc()
	}
	return completion
}

// markBlockValid finds dest's physical block within destWP's current line
// and stamps its page valid.
func (e *Engine) markBlockValid(destWP *wp.WritePointer, dest ppa.Fields) {
	l := destWP.CurLine
	if destWP.SubIdx >= 0 {
		l = l.SubLines[destWP.SubIdx]
	}
	dieIdx := (dest.Ch*e.Geo.LunsPerCh+dest.Lun)*e.Geo.PlanesPerLun + dest.Pl
	if destWP.SubIdx >= 0 {
		dieIdx = 0
	}
	l.Blocks[dieIdx].MarkValid(dest.Pg)
}

// invalidateOwner marks the page at addr invalid in its owning block and
// reprioritizes that line in the victim queue if it's already there.
func (e *Engine) invalidateOwner(addr ppa.PPA) {
	f := e.Codec.Unpack(addr)
	b, l := e.findBlock(f)
	if b == nil {
		return
	}
	b.MarkInvalid(f.Pg)
	e.Lines.ReprioritizeVictim(l)
}

func (e *Engine) findBlock(f ppa.Fields) (*line.Block_t, *line.Line_t) {
	if e.BlockLookup != nil {
		return e.BlockLookup(f)
	}
	return nil, nil
}

/// Run performs one foreground_gc pass for the tier if should_gc_high holds
/// (or unconditionally when force is set). It relocates the lowest-vpc
/// victim's valid pages into destWP's tier in oneshot-sized batches per
/// zone, stashes an undersized tail in GCAggLpns for the next user flush to
/// pick up, erases the victim, and refills write credits by ipc+rpc. Returns
/// false if no GC ran (threshold not met, or no victim available).
func (e *Engine) Run(now int64, force bool, destLines *line.Manager, destLatch *status.Latch_t) bool {
	if !force && !e.ShouldGCHigh() {
		return false
	}
	victim := e.Lines.PopVictim()
	if victim == nil {
		return false
	}

	lpns, addrs := e.validLPNs(victim)
	readDone := e.readSource(now, addrs, lpns, GCIOType)

	oneshot := e.Geo.PgsPerOneshot(destWPIsPSLC(e.DestWP))
	agg := make(map[int64][]int64)
	for _, lpn := range lpns {
		zid := int64(0)
		if e.ZoneOf != nil {
			zid = e.ZoneOf(lpn)
		}
		agg[zid] = append(agg[zid], lpn)
		if len(agg[zid]) >= oneshot {
			e.internalWrite(readDone, agg[zid], e.DestWP, destLines, destLatch, GCIOType)
			agg[zid] = nil
		}
	}
	for zid, tail := range agg {
		if len(tail) == 0 {
			continue
		}
		if destWPIsPSLC(e.DestWP) {
			e.internalWrite(readDone, tail, e.DestWP, destLines, destLatch, GCIOType)
			continue
		}
		e.GCAggLpns[zid] = append(e.GCAggLpns[zid], tail...)
	}

	rpc := victim.RPC()
	ipc := victim.IPC()
	victim.IncRPC(-rpc)
	for i, b := range victim.Blocks {
		ch, lun, pl := e.dieFields(i)
		cmd := &nandq.Cmd{
			Kind: nandq.Erase, Type: nandq.GC,
			Ppa:      ppa.Fields{Ch: ch, Lun: lun, Pl: pl, Blk: b.ID},
			CellMode: e.blockCellMode(ppa.Fields{}),
		}
		e.Sched.Advance(cmd)
	}
	e.Lines.Erase(victim)

	e.Creds.Refill(int64(ipc) + int64(rpc))
	e.CreditsRefilled.Add(int64(ipc) + int64(rpc))
	e.GCCount.Inc()
	return true
}

func destWPIsPSLC(w *wp.WritePointer) bool {
	return w != nil && w.Tier == status.PSLC
}
