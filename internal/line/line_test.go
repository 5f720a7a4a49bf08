package line

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/status"
)

func newTestLine(id, blksPerLine, pgsPerBlk int) *Line_t {
	l := &Line_t{ID: id, Tier: status.Normal, PgsPerLine: blksPerLine * pgsPerBlk}
	for i := 0; i < blksPerLine; i++ {
		l.Blocks = append(l.Blocks, NewBlock(i, geom.TLC, pgsPerBlk))
	}
	return l
}

func TestFreeAllocateFullCycle(t *testing.T) {
	m := NewManager(status.Normal, false)
	l := newTestLine(0, 2, 4)
	m.AddFree(l)
	if m.FreeCount() != 1 {
		t.Fatalf("FreeCount() = %d, want 1", m.FreeCount())
	}

	got := m.AllocateFree()
	if got != l {
		t.Fatal("AllocateFree did not return the line we added")
	}
	if m.FreeCount() != 0 {
		t.Fatalf("FreeCount() after allocate = %d, want 0", m.FreeCount())
	}

	for _, b := range l.Blocks {
		for i := 0; i < b.UsedPgs(); i++ {
			b.MarkValid(i)
		}
	}
	if !l.IsFull() {
		t.Fatal("line should be full after marking every page valid")
	}
	m.MarkFull(l)

	l.Blocks[0].MarkInvalid(0)
	m.MarkVictim(l)
	if got := l.VPC(); got != int32(l.PgsPerLine-1) {
		t.Fatalf("VPC() = %d, want %d", got, l.PgsPerLine-1)
	}

	victim := m.PopVictim()
	if victim != l {
		t.Fatal("PopVictim did not return the only victim")
	}

	m.Erase(l)
	if m.FreeCount() != 1 {
		t.Fatalf("FreeCount() after erase = %d, want 1", m.FreeCount())
	}
	if l.VPC() != 0 || l.IPC() != 0 {
		t.Fatalf("line counters not reset after erase: vpc=%d ipc=%d", l.VPC(), l.IPC())
	}
	for _, b := range l.Blocks {
		if b.EraseCnt != 1 {
			t.Fatalf("block EraseCnt = %d, want 1", b.EraseCnt)
		}
	}
}

func TestMigrationFIFOOrdersByWriteOrder(t *testing.T) {
	m := NewManager(status.PSLC, true)
	a := newTestLine(0, 1, 4)
	b := newTestLine(1, 1, 4)
	m.AddFree(a)
	m.AddFree(b)
	m.AllocateFree()
	m.AllocateFree()

	m.MarkFull(a)
	m.MarkFull(b)

	first, ok := m.PopMigration()
	if !ok || first != a {
		t.Fatal("expected a (filled first) to migrate first")
	}
	second, ok := m.PopMigration()
	if !ok || second != b {
		t.Fatal("expected b to migrate second")
	}
}

func TestVictimReprioritize(t *testing.T) {
	m := NewManager(status.Normal, false)
	a := newTestLine(0, 1, 4)
	b := newTestLine(1, 1, 4)
	for _, l := range []*Line_t{a, b} {
		m.AddFree(l)
		m.AllocateFree()
		for _, blk := range l.Blocks {
			for i := 0; i < blk.UsedPgs(); i++ {
				blk.MarkValid(i)
			}
		}
		m.MarkFull(l)
	}
	m.MarkVictim(a)
	m.MarkVictim(b)

	a.Blocks[0].MarkInvalid(0)
	a.Blocks[0].MarkInvalid(1)
	m.ReprioritizeVictim(a)

	victim := m.PopVictim()
	if victim != a {
		t.Fatal("expected a (lower vpc after reprioritize) to be the victim")
	}
}
