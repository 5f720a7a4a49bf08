// Package ppa packs and unpacks physical page addresses. A PPA identifies
// {channel, LUN, plane, block, page} plus a map-granularity tag and a small
// reserved field, all bit-packed into a single uint64 — the same
// fixed-width-field-in-a-word discipline a Superblock_t uses for its
// on-disk layout (fieldr/fieldw reading/writing consecutive bit fields),
// generalized here from a handful of named accessors to a Codec whose field
// widths are derived from the live device geometry instead of being
// hardcoded offsets.
package ppa

import "math/bits"

/// PPA is a packed physical page address. The zero value is the address of
/// page 0 of block 0 on the first die, not "no mapping"; use Unmapped for
/// that.
type PPA uint64

/// Unmapped is the sentinel PPA meaning "this LPN has never been written".
const Unmapped PPA = ^PPA(0)

/// Fields is the unpacked form of a PPA.
type Fields struct {
	Ch      int
	Lun     int
	Pl      int
	Blk     int
	Pg      int
	MapGran int /// L2P granularity this entry was cached/mapped at
	Rsv     int /// reserved, ignored by Codec.Equal
}

/// Codec packs/unpacks Fields to/from a PPA, with field widths sized to the
/// device geometry it was built from. Bit layout, least-significant first:
/// ch, lun, pl, blk, pg, map_gran, rsv.
type Codec struct {
	chBits, lunBits, plBits, blkBits, pgBits, mapBits, rsvBits     uint
	chShift, lunShift, plShift, blkShift, pgShift, mapShift, rsvShift uint
}

func widthFor(n int) uint {
	if n <= 1 {
		return 1
	}
	return uint(bits.Len(uint(n - 1)))
}

/// NewCodec builds a Codec wide enough to represent every address in a
/// device with the given channel/LUN/plane/block/page/map-granularity
/// counts. rsvBits is fixed at 4, for a small reserved scratch field.
func NewCodec(channels, lunsPerCh, planesPerLun, blksPerLine, pgsPerBlk, mapGranCount int) *Codec {
	c := &Codec{
		chBits:  widthFor(channels),
		lunBits: widthFor(lunsPerCh),
		plBits:  widthFor(planesPerLun),
		blkBits: widthFor(blksPerLine),
		pgBits:  widthFor(pgsPerBlk),
		mapBits: widthFor(mapGranCount),
		rsvBits: 4,
	}
	shift := uint(0)
	c.chShift = shift
	shift += c.chBits
	c.lunShift = shift
	shift += c.lunBits
	c.plShift = shift
	shift += c.plBits
	c.blkShift = shift
	shift += c.blkBits
	c.pgShift = shift
	shift += c.pgBits
	c.mapShift = shift
	shift += c.mapBits
	c.rsvShift = shift
	shift += c.rsvBits
	if shift > 64 {
		panic("ppa: geometry does not fit in a 64-bit PPA")
	}
	return c
}

func mask(bits uint) uint64 {
	return (uint64(1) << bits) - 1
}

/// Pack encodes f into a PPA. Values wider than their field are truncated.
func (c *Codec) Pack(f Fields) PPA {
	v := uint64(f.Ch)&mask(c.chBits)<<c.chShift |
		uint64(f.Lun)&mask(c.lunBits)<<c.lunShift |
		uint64(f.Pl)&mask(c.plBits)<<c.plShift |
		uint64(f.Blk)&mask(c.blkBits)<<c.blkShift |
		uint64(f.Pg)&mask(c.pgBits)<<c.pgShift |
		uint64(f.MapGran)&mask(c.mapBits)<<c.mapShift |
		uint64(f.Rsv)&mask(c.rsvBits)<<c.rsvShift
	return PPA(v)
}

/// Unpack decodes p back into its Fields.
func (c *Codec) Unpack(p PPA) Fields {
	v := uint64(p)
	return Fields{
		Ch:      int((v >> c.chShift) & mask(c.chBits)),
		Lun:     int((v >> c.lunShift) & mask(c.lunBits)),
		Pl:      int((v >> c.plShift) & mask(c.plBits)),
		Blk:     int((v >> c.blkShift) & mask(c.blkBits)),
		Pg:      int((v >> c.pgShift) & mask(c.pgBits)),
		MapGran: int((v >> c.mapShift) & mask(c.mapBits)),
		Rsv:     int((v >> c.rsvShift) & mask(c.rsvBits)),
	}
}

/// Equal reports whether a and b name the same physical location, ignoring
/// their Rsv fields (scratch bits a caller may have stamped for its own use).
func (c *Codec) Equal(a, b PPA) bool {
	if a == Unmapped || b == Unmapped {
		return a == b
	}
	fa, fb := c.Unpack(a), c.Unpack(b)
	fa.Rsv, fb.Rsv = 0, 0
	return c.Pack(fa) == c.Pack(fb)
}

/// Dims is the flat linear-index stride table used to place a Fields value
/// into a reverse map (rmap) array — kept separate from Codec's bit widths
/// because the two can differ (padded-to-power-of-two bit fields vs. exact
/// geometry counts).
type Dims struct {
	LunsPerCh    int
	PlanesPerLun int
	BlksPerLine  int
	PgsPerBlk    int
}

/// PgIdx flattens f into a single non-negative index suitable for indexing a
/// reverse-map slice sized Channels*LunsPerCh*PlanesPerLun*BlksPerLine*PgsPerBlk.
func (d Dims) PgIdx(f Fields) int64 {
	idx := f.Ch
	idx = idx*d.LunsPerCh + f.Lun
	idx = idx*d.PlanesPerLun + f.Pl
	idx = idx*d.BlksPerLine + f.Blk
	idx = idx*d.PgsPerBlk + f.Pg
	return int64(idx)
}
