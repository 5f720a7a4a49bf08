package geom

import "testing"

func TestDefaultValidates(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("Default() failed Validate: %v", err)
	}
}

func TestDerivedCounts(t *testing.T) {
	p := Default()
	if got := p.PgsPerOneshot(false); got != 4 {
		t.Fatalf("PgsPerOneshot(false) = %d, want 4", got)
	}
	if got := p.BlksPerLine(); got != p.Channels*p.LunsPerCh*p.PlanesPerLun {
		t.Fatalf("BlksPerLine() = %d, want %d", got, p.Channels*p.LunsPerCh*p.PlanesPerLun)
	}
	if got := p.PgsPerZone(); got != p.ZoneSize/p.PageSize {
		t.Fatalf("PgsPerZone() = %d, want %d", got, p.ZoneSize/p.PageSize)
	}
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	p := Default()
	p.ZoneCapacity = p.ZoneSize + 1
	if err := p.Validate(); err == nil {
		t.Fatal("expected Validate to reject ZoneCapacity > ZoneSize")
	}
}

func TestUsedPgsPerBlockScalesWithBitsPerCell(t *testing.T) {
	p := Default()
	slc := p.UsedPgsPerBlock(SLC)
	tlc := p.UsedPgsPerBlock(TLC)
	if slc >= tlc {
		t.Fatalf("expected SLC used pgs (%d) < TLC used pgs (%d)", slc, tlc)
	}
}
