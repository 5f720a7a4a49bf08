package ftl

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dingcuiyu/conzone-go/internal/gc"
	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/l2p"
	"github.com/dingcuiyu/conzone-go/internal/line"
	"github.com/dingcuiyu/conzone-go/internal/logx"
	"github.com/dingcuiyu/conzone-go/internal/nandq"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/status"
	"github.com/dingcuiyu/conzone-go/internal/timing"
	"github.com/dingcuiyu/conzone-go/internal/wbuf"
	"github.com/dingcuiyu/conzone-go/internal/wp"
)

// target bundles the manager/write-pointer/latch/credits a program/invalidate
// operation acts against — one per physical pool a namespace can target:
// the GC-managed pSLC data pool, the normal tier, or the meta pool that
// conzone_meta writes through and GC/migration never touch.
type target struct {
	tier  status.Tier
	mode  geom.CellMode
	mgr   *line.Manager
	wp    *wp.WritePointer
	latch *status.Latch_t
	creds *gc.Credits
	idx   map[int]*line.Line_t
}

/// Device wires every FTL package into one shared instance: geometry,
/// address codec, L2P table, NAND scheduler, the pSLC-data/normal/meta pools
/// each with their own line manager and write pointer, GC engines, and the
/// pSLC->normal migrator. One or more Namespaces (namespace.go) layer
/// request-pipeline policy on top of a shared Device, the way
/// conzone_meta/conzone_block/conzone_zoned share one physical device.
type Device struct {
	Geo   *geom.Params
	Codec *ppa.Codec
	Dims  ppa.Dims
	Table *l2p.Table
	Sched *nandq.Scheduler

	pslcData *target
	normal   *target
	meta     *target

	GCEngine map[status.Tier]*gc.Engine
	Migrator *gc.Migrator

	WBPool *wbuf.Pool

	Log zerolog.Logger
}

// buildPool allocates nlines fresh superblocks of the given cell mode, one
// block per die, registering each in its own lookup index for blockLookup.
// Block/line IDs start at startID and run contiguously; the pSLC data and
// meta pools share the same tier and Codec bit-field range, so they're given
// disjoint ID ranges to keep a packed address's Blk field identifying a
// unique pool+line (see ppa.Dims.PgIdx), not just a unique line-within-pool.
func (d *Device) buildPool(tier status.Tier, mode geom.CellMode, startID, nlines int, migrates bool) *target {
	mgr := line.NewManager(tier, migrates)
	idx := make(map[int]*line.Line_t, nlines)
	blksPerLine := d.Geo.BlksPerLine()
	usedPgs := d.Geo.UsedPgsPerBlock(mode)
	for i := 0; i < nlines; i++ {
		id := startID + i
		l := &line.Line_t{ID: id, Tier: tier, PgsPerLine: blksPerLine * usedPgs}
		for die := 0; die < blksPerLine; die++ {
			l.Blocks = append(l.Blocks, line.NewBlock(id, mode, usedPgs))
		}
		mgr.AddFree(l)
		idx[id] = l
	}
	latch := &status.Latch_t{}
	w := wp.New(d.Geo, tier)
	w.Bind(mgr, latch)
	creds := gc.NewCredits(int64(nlines) * int64(usedPgs) * int64(blksPerLine))
	return &target{tier: tier, mode: mode, mgr: mgr, wp: w, latch: latch, creds: creds, idx: idx}
}

// blockLookup finds the block (and owning line) a packed address belongs
// to within t's pool — the hook gc.Engine needs to invalidate a relocated
// page's old owner. f.Blk carries the line ID (see buildPool); the die is
// derived the same way gc.Engine.dieFields's inverse does.
func (d *Device) blockLookup(t *target) func(ppa.Fields) (*line.Block_t, *line.Line_t) {
	return func(f ppa.Fields) (*line.Block_t, *line.Line_t) {
		l, ok := t.idx[f.Blk]
		if !ok {
			return nil, nil
		}
		dieIdx := (f.Ch*d.Geo.LunsPerCh+f.Lun)*d.Geo.PlanesPerLun + f.Pl
		if dieIdx < 0 || dieIdx >= len(l.Blocks) {
			return nil, nil
		}
		return l.Blocks[dieIdx], l
	}
}

// poolFor resolves which target owns a packed address, searching the
// GC-managed pools first and falling back to meta.
func (d *Device) poolFor(addr ppa.PPA) *target {
	f := d.Codec.Unpack(addr)
	if b, _ := d.blockLookup(d.pslcData)(f); b != nil {
		return d.pslcData
	}
	if b, _ := d.blockLookup(d.normal)(f); b != nil {
		return d.normal
	}
	return d.meta
}

/// NewDevice assembles a Device for the given geometry: geo.DataPslcInitBlks
/// lines feed the GC-managed pSLC pool, geo.MetaPslcInitBlks feed the
/// GC-exempt meta pool, and geo.BlksPerPlane-geo.PslcInitBlks feed the
/// normal tier. A shared L2P table spans the whole physical page space, one
/// GC engine runs per GC-managed tier, and a migrator is wired pSLC->normal.
func NewDevice(geo *geom.Params, log zerolog.Logger) *Device {
	pgsPerBlkMax := geo.UsedPgsPerBlock(geom.TLC)
	dims := ppa.Dims{LunsPerCh: geo.LunsPerCh, PlanesPerLun: geo.PlanesPerLun, BlksPerLine: geo.BlksPerPlane, PgsPerBlk: pgsPerBlkMax}
	mapGranCount := int(l2p.SubZone) + 1
	codec := ppa.NewCodec(geo.Channels, geo.LunsPerCh, geo.PlanesPerLun, geo.BlksPerPlane, pgsPerBlkMax, mapGranCount)

	npgidx := geo.Channels * geo.LunsPerCh * geo.PlanesPerLun * geo.BlksPerPlane * pgsPerBlkMax
	nlpns := npgidx

	cache := l2p.New(geo.L2PCacheSize, geo.L2PCacheHashSlot, geo.L2PPreread)
	subZonePgs := int64(geo.PgsPerZone())
	if geo.DiesPerZone > 0 {
		subZonePgs = int64(geo.PgsPerZone() / geo.DiesPerZone)
	}
	table := l2p.NewTable(nlpns, npgidx, codec, int64(geo.PgsPerChunk()), int64(geo.PgsPerZone()), subZonePgs, geo.L2PHybridMap, cache)

	tm := timing.NewModel(geo.Channels, geo.ChannelBandwidthBps, geo.PCIeBandwidthBps, geo.FWXferLatencyPer4KNs, int64(geo.MaxChXferSize))
	sched := nandq.NewScheduler(geo, tm)

	d := &Device{
		Geo: geo, Codec: codec, Dims: dims, Table: table, Sched: sched,
		GCEngine: make(map[status.Tier]*gc.Engine),
		WBPool:   wbuf.NewPool(4, geo.ZoneWBSize),
		Log:      log,
	}

	// Block/line IDs are assigned from one running counter across all three
	// pools (pSLC-data, meta, normal), matching how a real plane's block IDs
	// are statically partitioned by cell mode — this keeps a packed PPA's
	// Blk field identifying a pool+line uniquely, since poolFor has no other
	// way to tell two same-numbered blocks in different pools apart.
	d.pslcData = d.buildPool(status.PSLC, geom.SLC, 0, geo.DataPslcInitBlks, true)
	d.meta = d.buildPool(status.PSLC, geom.SLC, geo.DataPslcInitBlks, geo.MetaPslcInitBlks, false)
	d.normal = d.buildPool(status.Normal, geom.TLC, geo.PslcInitBlks, geo.BlksPerPlane-geo.PslcInitBlks, false)

	d.GCEngine[status.PSLC] = gc.NewEngine(status.PSLC, geo, codec, dims, table, d.pslcData.mgr, sched, d.pslcData.wp, d.pslcData.creds, nil)
	d.GCEngine[status.PSLC].BlockLookup = d.blockLookup(d.pslcData)
	d.GCEngine[status.Normal] = gc.NewEngine(status.Normal, geo, codec, dims, table, d.normal.mgr, sched, d.normal.wp, d.normal.creds, nil)
	d.GCEngine[status.Normal].BlockLookup = d.blockLookup(d.normal)

	d.Migrator = &gc.Migrator{PSLC: d.GCEngine[status.PSLC], Normal: d.GCEngine[status.Normal]}

	return d
}

/// DefaultDevice builds a Device from geo directly — the construction the
/// CLI and most tests use.
func DefaultDevice(geo *geom.Params) *Device {
	return NewDevice(geo, logx.New(nil))
}

/// RunGC runs one foreground GC pass per GC-managed tier if that tier's
/// free-line count is at or below its GC threshold (or force is set),
/// followed by one migration pass if the pSLC data tier's free-line count is
/// at or below its migration threshold.
/// Returns whether anything ran. GC runs before migrate, the same ordering
/// the background task loop follows, since migrate wants free pSLC lines
/// GC just created.
func (d *Device) RunGC(now int64, force bool) bool {
	ran := d.GCEngine[status.PSLC].Run(now, force, d.pslcData.mgr, d.pslcData.latch)
	ran = d.GCEngine[status.Normal].Run(now, force, d.normal.mgr, d.normal.latch) || ran
	ran = d.Migrator.Run(now, force, d.pslcData.latch, d.normal.latch) || ran
	return ran
}

// program writes every lpn in lpns to t, one physical page at a time (the
// per-LUN scheduler in nandq only ever issues one command per die, so a
// oneshot-sized group can't collapse into a single nandq.Cmd — see
// DESIGN.md). What a oneshot group DOES buy: one tier decision and one
// coarse-granularity mapping commit for the whole group instead of per page.
// When lpns forms a complete, contiguous, aligned coarse-granularity unit
// and the hybrid map is enabled, the group is programmed through the
// reserve/claim path (update_or_reserve_mapping) and stamped with that
// granularity instead of leaving one page-granularity maptbl entry per LPN
// independently tagged. A successful pSLC-tier write also offers the
// migrator a (non-forced) chance to run, mirroring the background task
// loop's "migrate after every pSLC write" trigger without an actual
// background goroutine in this synchronous simulator.
func (d *Device) program(now int64, t *target, lpns []int64) (int64, error) {
	gran, coarse := d.coarseGranFor(t, lpns)

	var completion int64
	dests := make([]ppa.Fields, len(lpns))
	for i, lpn := range lpns {
		c, dest, err := d.programOne(now, t, lpn, coarse)
		if err != nil {
			return 0, err
		}
		if c > completion {
			completion = c
		}
		dests[i] = dest
	}

	if coarse {
		for i, lpn := range lpns {
			d.claimReserved(t, dests[i])
			d.Table.Claim(lpn, d.Dims.PgIdx(dests[i]))
		}
		d.Table.SetMapGran(lpns[0], gran)
	}

	if t == d.pslcData {
		d.Migrator.Run(now, false, d.pslcData.latch, d.normal.latch)
	}
	return completion, nil
}

// programOne issues the single-page program gc.Engine.internalWrite mirrors:
// invalidate the LPN's prior owner wherever it lives, claim the destination
// page, record the mapping (fully-owned via Set, or pre-claimed via Reserve
// when part of a coarse group awaiting Claim), and issue the NAND write.
// On write-credit exhaustion it forces a foreground GC pass on t's tier to
// refill credits before failing the write, instead of failing outright.
func (d *Device) programOne(now int64, t *target, lpn int64, reserve bool) (int64, ppa.Fields, error) {
	if !t.creds.Consume() {
		if t == d.meta || !d.GCEngine[t.tier].Run(now, true, t.mgr, t.latch) || !t.creds.Consume() {
			return 0, ppa.Fields{}, fmt.Errorf("ftl: tier %s out of write credit", t.tier)
		}
	}
	if t.wp.CurLine == nil {
		t.creds.Give()
		return 0, ppa.Fields{}, fmt.Errorf("ftl: pool for tier %s is full (no free lines)", t.tier)
	}

	if old := d.Table.Get(lpn); old != ppa.Unmapped {
		d.invalidate(old)
	}

	dest := t.wp.Current()
	pgidx := d.Dims.PgIdx(dest)
	packed := d.Codec.Pack(dest)
	if reserve {
		d.markReserved(t, dest)
		d.Table.Reserve(lpn, packed, pgidx)
	} else {
		d.markValid(t, dest)
		d.Table.Set(lpn, packed, pgidx)
	}

	cmd := &nandq.Cmd{
		Kind: nandq.Write, Type: nandq.User, Ppa: dest,
		XferSize: d.Geo.PageSize, Stime: now, CellMode: t.mode,
	}
	completion := d.Sched.Advance(cmd)

	if _, ok := t.wp.Advance(t.mgr, t.latch); !ok {
		d.Log.Warn().Str("tier", t.tier.String()).Msg("write pointer exhausted free lines")
	}
	return completion, dest, nil
}

// coarseGranFor reports the coarsest granularity lpns exactly spans — a
// contiguous ascending run starting on that granularity's own alignment
// boundary and the same length as its unit — or false if none applies (or
// the hybrid map is off). Checked coarsest-first so a run spanning a whole
// zone isn't only recognized at chunk granularity.
func (d *Device) coarseGranFor(t *target, lpns []int64) (l2p.Granularity, bool) {
	if !d.Geo.L2PHybridMap || len(lpns) < 2 || t == d.meta {
		return l2p.Page, false
	}
	for i := 1; i < len(lpns); i++ {
		if lpns[i] != lpns[i-1]+1 {
			return l2p.Page, false
		}
	}
	for _, gran := range []l2p.Granularity{l2p.SubZone, l2p.Zone, l2p.Chunk} {
		unit := d.Table.UnitPages(gran)
		if unit <= 0 || int64(len(lpns)) != unit {
			continue
		}
		if d.Table.StartLPN(lpns[0], gran) == lpns[0] {
			return gran, true
		}
	}
	return l2p.Page, false
}

func (d *Device) markValid(t *target, dest ppa.Fields) {
	b, _ := d.blockLookup(t)(dest)
	b.MarkValid(dest.Pg)
}

// markReserved pre-claims dest for a coarse-granularity group before the
// group's owning LPNs are committed: the page counts toward the line's vpc
// (via Block_t.MarkReserved) and its reserved-but-unclaimed count (rpc).
func (d *Device) markReserved(t *target, dest ppa.Fields) {
	b, l := d.blockLookup(t)(dest)
	b.MarkReserved(dest.Pg)
	l.IncRPC(1)
}

// claimReserved promotes a page markReserved staged, once the group it
// belongs to is fully programmed and its owning LPNs are known for certain.
func (d *Device) claimReserved(t *target, dest ppa.Fields) {
	b, l := d.blockLookup(t)(dest)
	b.ClaimReserved(dest.Pg)
	l.IncRPC(-1)
}

// invalidate marks addr's page invalid in its owning pool and reprioritizes
// that line in its victim queue.
func (d *Device) invalidate(addr ppa.PPA) {
	t := d.poolFor(addr)
	f := d.Codec.Unpack(addr)
	b, l := d.blockLookup(t)(f)
	if b == nil {
		return
	}
	b.MarkInvalid(f.Pg)
	t.mgr.ReprioritizeVictim(l)
}

// read issues the NAND read for lpn's current mapping and returns the
// packed address and completion time, or an error if lpn has never been
// written.
func (d *Device) read(now int64, lpn int64) (ppa.PPA, int64, error) {
	addr, _, ok := d.Table.MapRead(lpn)
	if !ok {
		return ppa.Unmapped, 0, fmt.Errorf("ftl: lpn %d is unmapped", lpn)
	}
	t := d.poolFor(addr)
	f := d.Codec.Unpack(addr)
	cmd := &nandq.Cmd{
		Kind: nandq.Read, Type: nandq.User, Ppa: f,
		XferSize: d.Geo.PageSize, Stime: now, CellMode: t.mode,
	}
	completion := d.Sched.Advance(cmd)
	return addr, completion, nil
}
