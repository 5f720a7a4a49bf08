package l2p

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/ppa"
)

func testTable(hybrid bool) (*Table, *ppa.Codec) {
	codec := ppa.NewCodec(4, 2, 1, 32, 16, int(SubZone)+1)
	cache := New(64, 16, 2)
	table := NewTable(1024, 1024, codec, 4, 16, 8, hybrid, cache)
	return table, codec
}

func TestSetThenMapReadHitsCache(t *testing.T) {
	table, codec := testTable(false)
	addr := codec.Pack(ppa.Fields{Ch: 1, Lun: 0, Blk: 3, Pg: 2})
	table.Set(10, addr, 99)

	got, gran, ok := table.MapRead(10)
	if !ok || got != addr || gran != Page {
		t.Fatalf("MapRead(10) = %v, %v, %v", got, gran, ok)
	}
}

func TestMapReadMissFallsThroughToMaptbl(t *testing.T) {
	table, codec := testTable(false)
	addr := codec.Pack(ppa.Fields{Ch: 0, Lun: 1, Blk: 5, Pg: 7})
	table.maptbl[20] = addr // ground truth present, but not cached

	got, gran, ok := table.MapRead(20)
	if !ok || got != addr || gran != Page {
		t.Fatalf("MapRead(20) = %v, %v, %v", got, gran, ok)
	}
	if table.Misses.Get() != 1 {
		t.Fatalf("Misses = %d, want 1", table.Misses.Get())
	}
}

func TestMapReadUnmappedFails(t *testing.T) {
	table, _ := testTable(false)
	_, _, ok := table.MapRead(50)
	if ok {
		t.Fatal("MapRead of a never-written LPN should fail")
	}
}

func TestHybridMapReadFindsCoarserGranularity(t *testing.T) {
	table, codec := testTable(true)
	zoneStart := table.StartLPN(40, Zone)
	addr := codec.Pack(ppa.Fields{Ch: 2, Lun: 1, Blk: 9, Pg: 1, MapGran: int(Zone)})
	table.maptbl[zoneStart] = addr

	got, gran, ok := table.MapRead(zoneStart)
	if !ok || gran != Zone || got != addr {
		t.Fatalf("MapRead(zoneStart) = %v, %v, %v", got, gran, ok)
	}
}

func TestSetMapGranUpdatesEmbeddedFieldAndResidency(t *testing.T) {
	table, codec := testTable(true)
	addr := codec.Pack(ppa.Fields{Ch: 1, Lun: 0, Blk: 4, Pg: 0})
	table.maptbl[0] = addr

	stamped := table.SetMapGran(0, Chunk)
	if codec.Unpack(stamped).MapGran != int(Chunk) {
		t.Fatalf("stamped map_gran = %d, want %d", codec.Unpack(stamped).MapGran, Chunk)
	}
	if _, gran, ok := table.Cache.Get(0); !ok || gran != Chunk {
		t.Fatalf("cache entry after SetMapGran: gran=%v ok=%v", gran, ok)
	}
	if e := table.Cache.find(0); e == nil || !e.resident {
		t.Fatal("a chunk-granularity cache entry should be resident with the hybrid map on")
	}
}

func TestInvalidateClearsMapAndRMap(t *testing.T) {
	table, codec := testTable(false)
	addr := codec.Pack(ppa.Fields{Ch: 0, Lun: 0, Blk: 1, Pg: 1})
	table.Set(5, addr, 77)
	table.Invalidate(5, 77)

	if table.Get(5) != ppa.Unmapped {
		t.Fatal("maptbl entry should be unmapped after Invalidate")
	}
	if table.RMapAt(77) != InvalidLPN {
		t.Fatal("rmap entry should be InvalidLPN after Invalidate")
	}
	if _, _, ok := table.Cache.Get(5); ok {
		t.Fatal("cache entry should be evicted after Invalidate")
	}
}
