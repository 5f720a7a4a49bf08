package l2p

import (
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/stats"
)

/// InvalidLPN is the reverse-map sentinel for a reserved (pre-claimed, not
/// yet owned) page.
const InvalidLPN int64 = -1

/// Table is the ground-truth logical-to-physical map (maptbl) and its
/// reverse map (rmap), fronted by a Cache that serves as the fast lookup
/// path a real device would implement with on-NAND map pages.
type Table struct {
	maptbl []ppa.PPA
	rmap   []int64

	Cache *Cache
	codec *ppa.Codec

	PgsPerChunk   int64
	PgsPerZone    int64
	PgsPerSubZone int64
	HybridMap     bool

	Misses stats.Counter_t
}

/// NewTable allocates a Table sized for nlpns logical pages and npgidx
/// reverse-map slots (one per dense physical page index), both starting
/// fully unmapped.
func NewTable(nlpns, npgidx int, codec *ppa.Codec, pgsPerChunk, pgsPerZone, pgsPerSubZone int64, hybridMap bool, cache *Cache) *Table {
	t := &Table{
		maptbl:        make([]ppa.PPA, nlpns),
		rmap:          make([]int64, npgidx),
		Cache:         cache,
		codec:         codec,
		PgsPerChunk:   pgsPerChunk,
		PgsPerZone:    pgsPerZone,
		PgsPerSubZone: pgsPerSubZone,
		HybridMap:     hybridMap,
	}
	for i := range t.maptbl {
		t.maptbl[i] = ppa.Unmapped
	}
	for i := range t.rmap {
		t.rmap[i] = InvalidLPN
	}
	return t
}

/// StartLPN rounds lpn down to the start of its mapping unit at gran.
func (t *Table) StartLPN(lpn int64, gran Granularity) int64 {
	switch gran {
	case Chunk:
		return lpn - lpn%t.PgsPerChunk
	case Zone:
		return lpn - lpn%t.PgsPerZone
	case SubZone:
		return lpn - lpn%t.PgsPerSubZone
	default:
		return lpn
	}
}

// granularities lists the probe order for a map-read miss: coarsest to
// finest when the hybrid map is in play, page-only otherwise.
func (t *Table) granularities() []Granularity {
	if !t.HybridMap {
		return []Granularity{Page}
	}
	return []Granularity{SubZone, Zone, Chunk, Page}
}

func (t *Table) mapGranOf(addr ppa.PPA) Granularity {
	return Granularity(t.codec.Unpack(addr).MapGran)
}

/// Get returns lpn's ground-truth mapping directly from maptbl, bypassing
/// the cache.
func (t *Table) Get(lpn int64) ppa.PPA {
	return t.maptbl[lpn]
}

/// RMapAt returns the LPN owning dense page index pgidx, or InvalidLPN if
/// that page is reserved or free.
func (t *Table) RMapAt(pgidx int64) int64 {
	return t.rmap[pgidx]
}

/// Set records a fully-owned page-granularity mapping for lpn at pgidx and
/// caches it.
func (t *Table) Set(lpn int64, addr ppa.PPA, pgidx int64) {
	t.maptbl[lpn] = addr
	t.rmap[pgidx] = lpn
	t.Cache.Insert(lpn, addr, Page, false)
}

/// Reserve records a pre-claimed page for lpn's mapping unit: the maptbl
/// slot points at a real PPA but the owning LPN is not yet known, so rmap
/// holds InvalidLPN (the page still counts against the owning line's rpc).
func (t *Table) Reserve(lpn int64, addr ppa.PPA, pgidx int64) {
	t.maptbl[lpn] = addr
	t.rmap[pgidx] = InvalidLPN
}

/// Claim establishes lpn as the owner of a page Reserve already pointed at a
/// real address, once the reserving write confirms lpn as that page's
/// logical owner (the rmap half of update_or_reserve_mapping's promotion).
func (t *Table) Claim(lpn int64, pgidx int64) {
	t.rmap[pgidx] = lpn
}

/// UnitPages returns how many logical pages one mapping unit spans at gran.
func (t *Table) UnitPages(gran Granularity) int64 {
	switch gran {
	case Chunk:
		return t.PgsPerChunk
	case Zone:
		return t.PgsPerZone
	case SubZone:
		return t.PgsPerSubZone
	default:
		return 1
	}
}

/// Invalidate clears lpn's mapping and its reverse-map entry, and drops any
/// cached copy.
func (t *Table) Invalidate(lpn int64, pgidx int64) {
	t.maptbl[lpn] = ppa.Unmapped
	t.rmap[pgidx] = InvalidLPN
	t.Cache.Remove(lpn)
}

/// SetMapGran stamps gran into the PPA stored at startLPN's mapping unit and
/// refreshes the cache entry's granularity and resident bit (resident when
/// the hybrid map is in play and the granularity is coarser than page).
func (t *Table) SetMapGran(startLPN int64, gran Granularity) ppa.PPA {
	addr := t.maptbl[startLPN]
	f := t.codec.Unpack(addr)
	f.MapGran = int(gran)
	addr = t.codec.Pack(f)
	t.maptbl[startLPN] = addr
	resident := t.HybridMap && gran != Page
	t.Cache.Insert(startLPN, addr, gran, resident)
	return addr
}

// prefetch caches up to Cache.Preread() mappings following a page-
// granularity hit, skipping LPNs that are unmapped or already cached.
func (t *Table) prefetch(lpn int64) {
	n := t.Cache.Preread()
	for i := int64(1); i <= int64(n); i++ {
		next := lpn + i
		if next >= int64(len(t.maptbl)) {
			return
		}
		addr := t.maptbl[next]
		if addr == ppa.Unmapped {
			continue
		}
		if _, _, ok := t.Cache.Get(next); ok {
			continue
		}
		t.Cache.Insert(next, addr, Page, false)
	}
}

/// MapRead resolves lpn's physical address, serving it from the cache when
/// present and otherwise simulating the NAND map-read walk: probing
/// granularities from coarsest to finest until the stored entry's own
/// map_gran matches the granularity just probed (a "true match", per the
/// multi-granularity scheme — a coarser start-LPN may be mapped but at a
/// finer granularity than the one being tested, which is not a match). A
/// page-granularity resolution triggers a forward prefetch.
func (t *Table) MapRead(lpn int64) (ppa.PPA, Granularity, bool) {
	if addr, gran, ok := t.Cache.Get(lpn); ok {
		return addr, gran, true
	}
	t.Misses.Inc()
	for _, gran := range t.granularities() {
		start := t.StartLPN(lpn, gran)
		startAddr := t.maptbl[start]
		if startAddr == ppa.Unmapped {
			continue
		}
		if t.mapGranOf(startAddr) != gran {
			continue
		}
		// The unit's start-LPN entry only proves this granularity covers
		// lpn; the physical address for lpn itself (offset from start, not
		// start's own address) still lives at its own maptbl slot, written
		// by Set/Reserve when the page was programmed.
		addr := t.maptbl[lpn]
		if addr == ppa.Unmapped {
			continue
		}
		resident := t.HybridMap && gran != Page
		t.Cache.Insert(lpn, addr, gran, resident)
		if gran == Page {
			t.prefetch(lpn)
		}
		return addr, gran, true
	}
	return ppa.Unmapped, Page, false
}
