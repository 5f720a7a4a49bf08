// Package geom holds the compile-time-enumerated device geometry and the
// simulation parameters ("spp" in the original ConZone source) every other
// FTL package reads from: channel/LUN/plane/block counts, page sizes at each
// granularity, and the per-cell-mode/per-cell-type NAND latency tables.
package geom

import "fmt"

/// CellMode is the NAND programming mode a block is configured for.
type CellMode int

const (
	SLC CellMode = iota /// one bit per cell — used for the pSLC tier
	MLC                 /// two bits per cell
	TLC                 /// three bits per cell — typical normal-tier mode
	QLC                 /// four bits per cell
)

func (m CellMode) String() string {
	switch m {
	case SLC:
		return "SLC"
	case MLC:
		return "MLC"
	case TLC:
		return "TLC"
	case QLC:
		return "QLC"
	default:
		return "cellmode(?)"
	}
}

/// BitsPerCell returns how many logical pages share a physical cell under m.
func (m CellMode) BitsPerCell() int {
	switch m {
	case SLC:
		return 1
	case MLC:
		return 2
	case TLC:
		return 3
	case QLC:
		return 4
	default:
		panic("bad cell mode")
	}
}

/// CellType names the page position within a multi-bit-per-cell program, the
/// "page type" NAND latency actually depends on (LSB programs fastest, TSB
/// slowest).
type CellType int

const (
	LSB CellType = iota
	MSB
	CSB
	TSB
)

func (t CellType) String() string {
	switch t {
	case LSB:
		return "LSB"
	case MSB:
		return "MSB"
	case CSB:
		return "CSB"
	case TSB:
		return "TSB"
	default:
		return "celltype(?)"
	}
}

/// WBPolicy selects how a zoned namespace picks a write buffer for a zone.
type WBPolicy int

const (
	WBStatic WBPolicy = iota /// sticky assignment; with no idle buffer and none flushing, steal the one holding the most data
	WBMod                    /// zid mod nr_wb
)

/// Latency bundles the NAND timing constants for one cell mode.
type Latency struct {
	/// ReadNs[cellType] is the full oneshot-page read latency for that page type.
	ReadNs [TSB + 1]int64
	/// Read4KNs[cellType] is the read latency when xfer_size == 4096 bytes.
	Read4KNs [TSB + 1]int64
	/// WriteNs is the page-program latency (does not vary by cell type).
	WriteNs int64
	/// EraseNs is the block-erase latency.
	EraseNs int64
}

/// Params is the full device geometry + simulation parameter bundle. Every
/// size field is in bytes unless otherwise noted; every duration is
/// nanoseconds.
type Params struct {
	Channels     int
	LunsPerCh    int
	PlanesPerLun int
	BlksPerPlane int

	LBASize             int
	PageSize            int /// PG_SIZE: logical page, what an LPN addresses
	FlashPageSize        int /// the read-addressable unit (may exceed PageSize)
	OneshotPageSize      int /// normal-tier pages programmed together in one command
	PslcOneshotPageSize  int /// same, for the pSLC tier

	ChunkSize    int /// L2P chunk granularity, in bytes of logical address space
	ZoneSize     int /// zoned-namespace zone size, in bytes
	ZoneCapacity int /// writable capacity within a zone, in bytes (<= ZoneSize)
	DiesPerZone  int /// how many channel*lun dies one zone spans

	ZoneWBSize   int /// per-zone write-buffer capacity, in bytes (0 disables per-zone buffers)
	GlobalWBSize int /// shared SSD write-buffer capacity, in bytes (0 disables the shared buffer)

	L2PCacheSize     int /// total L2P cache capacity, in entries
	L2PEntrySize     int /// bytes per cached entry (informational, sizing only)
	L2PCacheHashSlot int /// number of hash slots (must divide L2PCacheSize)
	L2PPreread       int /// entries to prefetch past a page-granularity miss

	PslcInitBlks     int /// blocks-per-plane reserved for the pSLC tier at init
	MetaPslcInitBlks int /// pSLC blocks reserved for the all-pSLC meta namespace
	DataPslcInitBlks int /// pSLC blocks reserved for block/zoned namespace data

	WBMgnt     WBPolicy
	SLCBypass  bool /// when false, all user writes land on pSLC regardless of policy
	NormalOnly bool /// when true, all user writes land on normal tier directly
	ZonedSLC   bool /// zoned namespace uses a hybrid (pSLC+normal) L2P map

	L2PHybridMap         bool /// coarser-than-page granularities are in play
	L2PHybridMapResident bool /// non-page cache entries are pinned (resident)

	MaxChXferSize        int   /// largest chunk a channel transfer is split into
	ChannelBandwidthBps  int64 /// per-channel bandwidth, bytes/sec
	PCIeBandwidthBps     int64 /// PCIe bandwidth, bytes/sec
	FWProgLatencyNs      int64 /// fixed firmware overhead per program command
	FWReadLatencyNs      int64 /// fixed firmware overhead per read command
	FWXferLatencyPer4KNs int64 /// firmware overhead per 4KiB of transferred data

	/// Latencies, indexed by CellMode. Only SLC/TLC are populated by default;
	/// MLC/QLC are accepted for completeness but unused by the default config.
	Latencies [QLC + 1]Latency
}

/// Default returns a small but internally consistent geometry, sized so unit
/// tests and the CLI demo can run without an external config file. Values
/// follow the order of magnitude used by the original ConZone reference
/// implementation, scaled down for fast simulation.
func Default() *Params {
	p := &Params{
		Channels:     4,
		LunsPerCh:    2,
		PlanesPerLun: 1,
		BlksPerPlane: 32,

		LBASize:             512,
		PageSize:            4096,
		FlashPageSize:       4096,
		OneshotPageSize:     4096 * 4,
		PslcOneshotPageSize: 4096 * 4,

		ChunkSize:    4096 * 16,
		ZoneSize:     4096 * 4 * 32,
		ZoneCapacity: 4096 * 4 * 30,
		DiesPerZone:  4,

		ZoneWBSize:   4096 * 8,
		GlobalWBSize: 0,

		L2PCacheSize:     4096,
		L2PEntrySize:     8,
		L2PCacheHashSlot: 256,
		L2PPreread:       4,

		PslcInitBlks:     8,
		MetaPslcInitBlks: 2,
		DataPslcInitBlks: 6,

		WBMgnt:     WBStatic,
		SLCBypass:  true,
		NormalOnly: false,
		ZonedSLC:   true,

		L2PHybridMap:         true,
		L2PHybridMapResident: true,

		MaxChXferSize:        4096 * 2,
		ChannelBandwidthBps:  800 * 1024 * 1024,
		PCIeBandwidthBps:     4 * 1024 * 1024 * 1024,
		FWProgLatencyNs:      500,
		FWReadLatencyNs:      500,
		FWXferLatencyPer4KNs: 100,
	}
	p.Latencies[SLC] = Latency{
		ReadNs:   [TSB + 1]int64{40000, 0, 0, 0},
		Read4KNs: [TSB + 1]int64{36000, 0, 0, 0},
		WriteNs:  250000,
		EraseNs:  2000000,
	}
	p.Latencies[TLC] = Latency{
		ReadNs:   [TSB + 1]int64{75000, 95000, 110000, 0},
		Read4KNs: [TSB + 1]int64{60000, 75000, 90000, 0},
		WriteNs:  1400000,
		EraseNs:  5000000,
	}
	return p
}

/// PgsPerOneshot returns the number of logical pages programmed together in
/// one NAND command for the given tier.
func (p *Params) PgsPerOneshot(pslc bool) int {
	if pslc {
		return p.PslcOneshotPageSize / p.PageSize
	}
	return p.OneshotPageSize / p.PageSize
}

/// PgsPerFlashPage returns how many logical pages share one read-addressable
/// flash page.
func (p *Params) PgsPerFlashPage() int {
	return p.FlashPageSize / p.PageSize
}

/// PgsPerChunk returns the L2P chunk granularity in logical pages.
func (p *Params) PgsPerChunk() int {
	return p.ChunkSize / p.PageSize
}

/// PgsPerZone returns the zone size in logical pages.
func (p *Params) PgsPerZone() int {
	return p.ZoneSize / p.PageSize
}

/// PgsPerZoneCapacity returns the zone's writable capacity in logical pages.
func (p *Params) PgsPerZoneCapacity() int {
	return p.ZoneCapacity / p.PageSize
}

/// BlksPerLine returns how many blocks (one per die) form a superblock.
func (p *Params) BlksPerLine() int {
	return p.Channels * p.LunsPerCh * p.PlanesPerLun
}

/// UsedPgsPerBlock returns the number of programmable pages in one physical
/// block under the given cell mode: SLC blocks hold fewer bits per cell and
/// so fewer logical pages per block than TLC/QLC blocks of the same physical
/// size.
func (p *Params) UsedPgsPerBlock(mode CellMode) int {
	tlcPgs := p.OneshotPageSize / p.PageSize * 8
	return tlcPgs * mode.BitsPerCell() / TLC.BitsPerCell()
}

/// ZoneWriteUnitPgs is the "zone_write_unit": the normal-tier oneshot-page
/// size in logical pages, the unit migration batches LPNs into.
func (p *Params) ZoneWriteUnitPgs() int {
	return p.PgsPerOneshot(false)
}

/// Validate performs basic consistency checks a loaded config must satisfy.
func (p *Params) Validate() error {
	if p.Channels <= 0 || p.LunsPerCh <= 0 || p.PlanesPerLun <= 0 || p.BlksPerPlane <= 0 {
		return fmt.Errorf("geom: channel/lun/plane/block counts must be positive")
	}
	if p.PageSize <= 0 || p.OneshotPageSize%p.PageSize != 0 {
		return fmt.Errorf("geom: OneshotPageSize must be a multiple of PageSize")
	}
	if p.PslcOneshotPageSize%p.PageSize != 0 {
		return fmt.Errorf("geom: PslcOneshotPageSize must be a multiple of PageSize")
	}
	if p.ZoneCapacity > p.ZoneSize {
		return fmt.Errorf("geom: ZoneCapacity cannot exceed ZoneSize")
	}
	if p.L2PCacheHashSlot <= 0 || p.L2PCacheSize%p.L2PCacheHashSlot != 0 {
		return fmt.Errorf("geom: L2PCacheHashSlot must evenly divide L2PCacheSize")
	}
	return nil
}
