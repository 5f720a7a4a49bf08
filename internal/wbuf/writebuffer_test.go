package wbuf

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/geom"
)

func TestAppendAndFlush(t *testing.T) {
	b := NewBuffer(3 * 4096)
	if !b.Append(1, 10, 4096) || !b.Append(1, 11, 4096) {
		t.Fatal("expected appends to same zone to succeed")
	}
	if b.Append(2, 20, 4096) {
		t.Fatal("append from a different zone to an assigned buffer should fail")
	}
	if b.Pgs() != 2 {
		t.Fatalf("Pgs() = %d, want 2", b.Pgs())
	}
	lpns := b.BeginFlush(100, 7)
	if len(lpns) != 2 || lpns[0] != 10 || lpns[1] != 11 {
		t.Fatalf("BeginFlush lpns = %v", lpns)
	}
	if !b.Flushing {
		t.Fatal("buffer should be flushing")
	}
	b.CompleteFlush()
	if b.Zid != Unassigned || b.Flushing || b.Pgs() != 0 {
		t.Fatal("buffer should be idle after CompleteFlush")
	}
}

func TestCompactRemovesMatchingRange(t *testing.T) {
	b := NewBuffer(4 * 4096)
	b.Append(1, 5, 4096)
	b.Append(1, 6, 4096)
	b.Append(1, 7, 4096)
	evicted := b.Compact(6, 8, 4096)
	if evicted != 2*4096 {
		t.Fatalf("Compact evicted %d bytes, want %d", evicted, 2*4096)
	}
	if b.Pgs() != 1 || b.Lpns[0] != 5 {
		t.Fatalf("remaining lpns = %v, want [5]", b.Lpns)
	}
}

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	p := NewPool(2, 4096)
	if p.FreeLen() != 2 {
		t.Fatalf("FreeLen() = %d, want 2", p.FreeLen())
	}
	idx, buf, ok := Acquire(p, geom.WBStatic, 9)
	if !ok {
		t.Fatal("Acquire should succeed with free buffers available")
	}
	buf.Append(9, 1, 4096)
	if p.FreeLen() != 1 {
		t.Fatalf("FreeLen() after acquire = %d, want 1", p.FreeLen())
	}
	p.Release(idx)
	if p.FreeLen() != 2 {
		t.Fatalf("FreeLen() after release = %d, want 2", p.FreeLen())
	}
	if buf.Zid != Unassigned {
		t.Fatal("buffer should be reset after release")
	}
}

func TestAcquireReassignsSameZoneBuffer(t *testing.T) {
	p := NewPool(2, 4096)
	idx1, buf1, ok := Acquire(p, geom.WBStatic, 3)
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	buf1.Append(3, 1, 4096)

	idx2, buf2, ok := Acquire(p, geom.WBStatic, 3)
	if !ok {
		t.Fatal("second acquire for the same zone should succeed")
	}
	if idx1 != idx2 || buf1 != buf2 {
		t.Fatal("acquiring for a zone already assigned a buffer should return that same buffer")
	}
}

func TestAcquireModPolicyIndexesByZid(t *testing.T) {
	p := NewPool(2, 4096)
	idx, _, ok := Acquire(p, geom.WBMod, 5)
	if !ok {
		t.Fatal("mod-policy acquire should succeed")
	}
	if idx != 5%2 {
		t.Fatalf("idx = %d, want %d", idx, 5%2)
	}
}
