package ppa

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	c := NewCodec(4, 2, 1, 8, 64, 4)
	f := Fields{Ch: 3, Lun: 1, Pl: 0, Blk: 5, Pg: 40, MapGran: 2, Rsv: 9}
	p := c.Pack(f)
	got := c.Unpack(p)
	if got.Ch != f.Ch || got.Lun != f.Lun || got.Pl != f.Pl || got.Blk != f.Blk || got.Pg != f.Pg || got.MapGran != f.MapGran || got.Rsv != f.Rsv {
		t.Fatalf("round trip = %+v, want %+v", got, f)
	}
}

func TestEqualIgnoresRsv(t *testing.T) {
	c := NewCodec(4, 2, 1, 8, 64, 4)
	a := c.Pack(Fields{Ch: 1, Lun: 1, Blk: 2, Pg: 3, Rsv: 1})
	b := c.Pack(Fields{Ch: 1, Lun: 1, Blk: 2, Pg: 3, Rsv: 7})
	if !c.Equal(a, b) {
		t.Fatal("Equal should ignore Rsv")
	}
	other := c.Pack(Fields{Ch: 1, Lun: 1, Blk: 2, Pg: 4, Rsv: 1})
	if c.Equal(a, other) {
		t.Fatal("Equal should not match differing Pg")
	}
}

func TestEqualUnmappedSentinel(t *testing.T) {
	c := NewCodec(4, 2, 1, 8, 64, 4)
	a := c.Pack(Fields{Ch: 1})
	if c.Equal(a, Unmapped) {
		t.Fatal("a real PPA should never equal Unmapped")
	}
	if !c.Equal(Unmapped, Unmapped) {
		t.Fatal("Unmapped should equal itself")
	}
}

func TestPgIdxDistinctForDistinctAddresses(t *testing.T) {
	d := Dims{LunsPerCh: 2, PlanesPerLun: 1, BlksPerLine: 8, PgsPerBlk: 64}
	a := d.PgIdx(Fields{Ch: 0, Lun: 0, Pl: 0, Blk: 0, Pg: 0})
	b := d.PgIdx(Fields{Ch: 0, Lun: 0, Pl: 0, Blk: 0, Pg: 1})
	if a == b {
		t.Fatal("distinct pages must map to distinct indices")
	}
	c := d.PgIdx(Fields{Ch: 1, Lun: 0, Pl: 0, Blk: 0, Pg: 0})
	if c == a {
		t.Fatal("distinct channels must map to distinct indices")
	}
}
