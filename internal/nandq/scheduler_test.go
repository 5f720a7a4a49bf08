package nandq

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/timing"
)

func testScheduler() *Scheduler {
	g := geom.Default()
	g.Channels, g.LunsPerCh = 2, 1
	tm := timing.NewModel(g.Channels, g.ChannelBandwidthBps, g.PCIeBandwidthBps, g.FWXferLatencyPer4KNs, int64(g.MaxChXferSize))
	return NewScheduler(g, tm)
}

func TestAdvanceMonotonicNextAvail(t *testing.T) {
	s := testScheduler()
	addr := ppa.Fields{Ch: 0, Lun: 0}
	var last int64
	for i := 0; i < 3; i++ {
		cmd := &Cmd{Kind: Write, Type: User, Ppa: addr, XferSize: 4096, Stime: 0, CellMode: geom.TLC}
		completion := s.Advance(cmd)
		if completion < last {
			t.Fatalf("completion %d should not precede previous %d", completion, last)
		}
		last = completion
	}
	if s.LUN(0, 0).NextAvail() != last {
		t.Fatalf("LUN next avail %d, want %d", s.LUN(0, 0).NextAvail(), last)
	}
}

func TestReadCompletionOrdersAfterWrite(t *testing.T) {
	s := testScheduler()
	addr := ppa.Fields{Ch: 0, Lun: 0}
	w := s.Advance(&Cmd{Kind: Write, Type: User, Ppa: addr, XferSize: 4096, CellMode: geom.TLC})
	r := s.Advance(&Cmd{Kind: Read, Type: User, Ppa: addr, XferSize: 4096, Stime: 0, CellMode: geom.TLC})
	if r < w {
		t.Fatalf("read completion %d should not precede the write it follows %d", r, w)
	}
}

func TestMigratePreemptedByNonMigrateOnDifferentBlock(t *testing.T) {
	s := testScheduler()
	migBlk := ppa.Fields{Ch: 0, Lun: 0, Blk: 1}
	userBlk := ppa.Fields{Ch: 0, Lun: 0, Blk: 2}

	migCmd := &Cmd{Kind: Write, Type: Migrate, Ppa: migBlk, XferSize: 4096, Stime: 1000, CellMode: geom.TLC}
	migCompletion := s.Advance(migCmd)

	// A user command arriving before the migration's recorded stime, on a
	// different block, should be able to splice ahead while migrating is
	// still set from the prior command. The splice lands ahead of the first
	// pending migration in queue order: the entry Advance queued at stime
	// 1000, not the later one appended here.
	l := s.LUN(0, 0)
	l.mu.Lock()
	l.migrating = true
	l.migratingEtime = migCompletion + 1000
	l.queue = append(l.queue, &queued{cmd: migCmd, stime: 5000})
	l.mu.Unlock()

	userCmd := &Cmd{Kind: Write, Type: User, Ppa: userBlk, XferSize: 4096, Stime: 0, CellMode: geom.TLC}
	start, preempted := s.lunGetStime(l, userCmd, 0)
	if !preempted {
		t.Fatal("expected user command to preempt the pending migration")
	}
	if start != 1000 {
		t.Fatalf("preempted start = %d, want 1000", start)
	}
}

func TestMigrateNotPreemptedBySameBlock(t *testing.T) {
	s := testScheduler()
	blk := ppa.Fields{Ch: 0, Lun: 0, Blk: 1}

	l := s.LUN(0, 0)
	migCmd := &Cmd{Kind: Write, Type: Migrate, Ppa: blk, XferSize: 4096}
	l.mu.Lock()
	l.migrating = true
	l.migratingEtime = 10_000
	l.queue = append(l.queue, &queued{cmd: migCmd, stime: 5000})
	l.mu.Unlock()

	userCmd := &Cmd{Kind: Write, Type: User, Ppa: blk, XferSize: 4096}
	_, preempted := s.lunGetStime(l, userCmd, 0)
	if preempted {
		t.Fatal("a command targeting the same block as the pending migration must not preempt it")
	}
}

func TestNopAdvancesNextAvailWithoutQueueing(t *testing.T) {
	s := testScheduler()
	l := s.LUN(1, 0)
	completion := s.Advance(&Cmd{Kind: Nop, Ppa: ppa.Fields{Ch: 1, Lun: 0}, Stime: 42})
	if completion != 42 {
		t.Fatalf("nop completion = %d, want 42", completion)
	}
	if l.NextAvail() != 42 {
		t.Fatalf("LUN next avail = %d, want 42", l.NextAvail())
	}
}

func TestEraseUsesBlockEraseLatency(t *testing.T) {
	s := testScheduler()
	addr := ppa.Fields{Ch: 0, Lun: 0}
	completion := s.Advance(&Cmd{Kind: Erase, Type: GC, Ppa: addr, CellMode: geom.TLC})
	want := s.geo.Latencies[geom.TLC].EraseNs
	if completion != want {
		t.Fatalf("erase completion = %d, want %d", completion, want)
	}
}
