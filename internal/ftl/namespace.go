package ftl

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dingcuiyu/conzone-go/internal/logx"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/status"
	"github.com/dingcuiyu/conzone-go/internal/wbuf"
)

/// Kind names one of the three namespace types a device exposes.
type Kind int

const (
	/// Meta pins every write to the device's GC-exempt meta pool; it exists
	/// to store FTL/zone metadata itself, not host data, so it never feeds
	/// GC or migration.
	Meta Kind = iota
	/// Block wires the hybrid pSLC/normal tier and the foreground-GC path,
	/// with no zone state machine.
	Block
	/// Zoned wires the hybrid tier, migration, and the zone state machine.
	Zoned
)

func (k Kind) String() string {
	switch k {
	case Meta:
		return "conzone_meta"
	case Block:
		return "conzone_block"
	case Zoned:
		return "conzone_zoned"
	default:
		return "namespace(?)"
	}
}

/// Namespace is a thin configuration wrapper around a shared Device: it
/// decides which physical pool a write lands in and whether zone-state
/// bookkeeping gates it, but every namespace kind reuses the same
/// program/read/GC plumbing.
type Namespace struct {
	ID   int
	Kind Kind
	Dev  *Device
	Log  zerolog.Logger

	bufIdx int
	buf    *wbuf.Buffer

	// aggPgs is zone_agg: pages already steered to pSLC toward filling one
	// normal-tier oneshot unit, keyed by an aggregation index (zone ID for
	// Zoned, 0 for Block/Meta). Read/written only by flushTarget.
	aggPgs map[int64]int64

	// zoned-only
	Zones       []*Zone
	Res         ResourceCounters
	LPNsPerZone int64
}

/// NewNamespace returns a namespace of the given kind over dev. For Zoned
/// namespaces, nzones zones are carved contiguously out of the namespace's
/// own LPN space, each dev.Geo.PgsPerZone() logical pages wide with
/// dev.Geo.PgsPerZoneCapacity() of writable capacity.
func NewNamespace(id int, kind Kind, dev *Device, nzones int, maxOpen, maxActive int) *Namespace {
	ns := &Namespace{
		ID: id, Kind: kind, Dev: dev,
		Log: logx.ForNamespace(dev.Log, id, kind.String()),
	}
	idx, buf, ok := dev.WBPool.Acquire()
	if ok {
		ns.bufIdx, ns.buf = idx, buf
	}
	if kind == Zoned {
		pgsPerZone := int64(dev.Geo.PgsPerZone())
		cap := int64(dev.Geo.PgsPerZoneCapacity())
		ns.LPNsPerZone = pgsPerZone
		ns.Res = ResourceCounters{MaxOpen: maxOpen, MaxActive: maxActive}
		for i := 0; i < nzones; i++ {
			ns.Zones = append(ns.Zones, &Zone{
				ID: int64(i), State: ZoneEmpty,
				ZSLBA: int64(i) * pgsPerZone, WP: int64(i) * pgsPerZone,
				ZoneCapacity: cap,
			})
		}
	}
	return ns
}

// flushTarget picks which physical pool one flush group of pending logical
// pages programs into, mirroring get_flush_target_location's priority
// order: Meta always pins to the GC-exempt meta pool; a disabled SLC bypass
// forces every write to pSLC regardless of policy; normal-only forces
// normal directly; otherwise an accumulator per aggIdx (zone_agg) tracks how
// many pages have already been steered to pSLC toward one full normal-tier
// oneshot unit — once adding pending would fill that unit, the group (and
// the accumulator) rolls over to normal.
func (ns *Namespace) flushTarget(aggIdx int64, pending int64) *target {
	if ns.Kind == Meta {
		return ns.Dev.meta
	}
	geo := ns.Dev.Geo
	if !geo.SLCBypass {
		return ns.Dev.pslcData
	}
	if geo.NormalOnly {
		return ns.Dev.normal
	}
	if ns.aggPgs == nil {
		ns.aggPgs = make(map[int64]int64)
	}
	unit := int64(geo.PgsPerOneshot(false))
	acc := ns.aggPgs[aggIdx]
	if acc+pending < unit {
		ns.aggPgs[aggIdx] = acc + pending
		return ns.Dev.pslcData
	}
	ns.aggPgs[aggIdx] = 0
	return ns.Dev.normal
}

// aggIndex names the zone_agg accumulator key for lpn: the owning zone ID
// for a Zoned namespace, or a single constant for Block/Meta.
func (ns *Namespace) aggIndex(lpn int64) int64 {
	if ns.Kind == Zoned && ns.LPNsPerZone > 0 {
		return lpn / ns.LPNsPerZone
	}
	return 0
}

func (ns *Namespace) zoneFor(lpn int64) (*Zone, error) {
	if ns.LPNsPerZone <= 0 {
		return nil, fmt.Errorf("ftl: namespace %d has no zones configured", ns.ID)
	}
	zid := lpn / ns.LPNsPerZone
	if zid < 0 || int(zid) >= len(ns.Zones) {
		return nil, fmt.Errorf("ftl: lpn %d falls outside any configured zone", lpn)
	}
	return ns.Zones[zid], nil
}

/// Write programs nlb consecutive logical pages starting at lpn (or, for a
/// zoned namespace with isAppend set, at the zone's current write pointer).
/// It validates zone-state rules first when the namespace is Zoned, then
/// stages each LPN through the namespace's write buffer, flushing whenever
/// the buffer fills.
func (ns *Namespace) Write(now int64, lpn int64, nlb int64, isAppend bool) (status.Status, int64, error) {
	var z *Zone
	if ns.Kind == Zoned {
		var err error
		z, err = ns.zoneFor(lpn)
		if err != nil {
			return status.InvalidField, 0, err
		}
		actualSLBA, err := z.CheckWrite(&ns.Res, lpn, nlb, isAppend)
		if err != nil {
			if we, ok := err.(*WriteError); ok {
				return we.Status, 0, err
			}
			return status.ZnsInvalidWrite, 0, err
		}
		lpn = actualSLBA
	}

	var completion int64
	for i := int64(0); i < nlb; i++ {
		t, err := ns.stage(now, lpn+i)
		if err != nil {
			return status.CapExceeded, 0, err
		}
		if t > completion {
			completion = t
		}
	}
	if z != nil {
		z.Advance(&ns.Res, nlb)
	}
	return status.Success, completion, nil
}

// stage appends one LPN to the namespace's write buffer, flushing it first
// (synchronously) whenever it has no room left.
func (ns *Namespace) stage(now int64, lpn int64) (int64, error) {
	if ns.buf == nil {
		return ns.programGroup(now, []int64{lpn})
	}
	if !ns.buf.Append(int64(ns.ID), lpn, ns.Dev.Geo.PageSize) {
		if _, err := ns.Flush(now); err != nil {
			return 0, err
		}
		if !ns.buf.Append(int64(ns.ID), lpn, ns.Dev.Geo.PageSize) {
			return 0, fmt.Errorf("ftl: lpn %d does not fit in an empty write buffer", lpn)
		}
	}
	if ns.buf.Full(ns.Dev.Geo.PageSize) {
		return ns.Flush(now)
	}
	return now, nil
}

/// Flush programs every LPN currently staged in the namespace's write
/// buffer and resets it to idle. Returns the max completion time across the
/// flushed pages (now if nothing was staged).
func (ns *Namespace) Flush(now int64) (int64, error) {
	if ns.buf == nil || ns.buf.Pgs() == 0 {
		return now, nil
	}
	lpns := ns.buf.BeginFlush(now, ns.ID)
	completion, err := ns.programGroup(now, lpns)
	if err != nil {
		ns.buf.CompleteFlush()
		return 0, err
	}
	ns.buf.CompleteFlush()
	return completion, nil
}

// programGroup slices lpns into oneshot-sized slivers (get_flush_target_
// location and zone_agg are evaluated once per sliver, not once per page),
// resolves each sliver's target tier, and programs it.
func (ns *Namespace) programGroup(now int64, lpns []int64) (int64, error) {
	unit := int64(ns.Dev.Geo.PgsPerOneshot(false))
	if unit <= 0 {
		unit = 1
	}
	var completion int64
	for i := int64(0); i < int64(len(lpns)); i += unit {
		end := i + unit
		if end > int64(len(lpns)) {
			end = int64(len(lpns))
		}
		slice := lpns[i:end]
		t := ns.flushTarget(ns.aggIndex(slice[0]), int64(len(slice)))
		c, err := ns.Dev.program(now, t, slice)
		if err != nil {
			return 0, err
		}
		if c > completion {
			completion = c
		}
	}
	return completion, nil
}

/// Read resolves lpn's mapping and issues the NAND read, returning its
/// completion time.
func (ns *Namespace) Read(now int64, lpn int64) (int64, error) {
	_, completion, err := ns.Dev.read(now, lpn)
	if err != nil {
		return 0, err
	}
	return completion, nil
}

/// ZoneReset invalidates every mapped LPN in the zone and rewinds it back to
/// empty. Any tail still sitting in the write buffer for this
/// zone is evicted first so a stale buffered write can't resurface after
/// the reset.
func (ns *Namespace) ZoneReset(zid int64) error {
	if int(zid) < 0 || int(zid) >= len(ns.Zones) {
		return fmt.Errorf("ftl: zone %d out of range", zid)
	}
	z := ns.Zones[zid]
	if ns.buf != nil {
		ns.buf.Compact(z.ZSLBA, z.ZSLBA+ns.LPNsPerZone, ns.Dev.Geo.PageSize)
	}
	for lpn := z.ZSLBA; lpn < z.ZSLBA+ns.LPNsPerZone; lpn++ {
		addr := ns.Dev.Table.Get(lpn)
		if addr == ppa.Unmapped {
			continue
		}
		ns.Dev.invalidate(addr)
		ns.Dev.Table.Invalidate(lpn, ns.Dev.Dims.PgIdx(ns.Dev.Codec.Unpack(addr)))
	}
	return z.Reset(&ns.Res)
}

/// RunGC is a passthrough to the shared Device's GC/migration pass — every
/// namespace sharing a Device benefits from the same reclaim work, since
/// GC operates on physical pools, not namespaces.
func (ns *Namespace) RunGC(now int64, force bool) bool {
	return ns.Dev.RunGC(now, force)
}
