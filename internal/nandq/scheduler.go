// Package nandq is the per-LUN command scheduler: it turns a NAND command
// into a completion timestamp, serializing commands against each LUN's
// queue and modeling the one case where order isn't strictly FIFO —
// a non-migration command may jump ahead of a still-pending migration
// command targeting a different block.
package nandq

import (
	"sync"

	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/timing"
)

/// CmdKind names the NAND-level operation a Cmd performs.
type CmdKind int

const (
	Read CmdKind = iota
	Write
	Erase
	Nop
)

/// CmdType names who issued a Cmd, which governs migration preemption.
type CmdType int

const (
	User CmdType = iota
	GC
	Migrate
	MapRead
)

/// Cmd is one NAND command submitted to the scheduler.
type Cmd struct {
	Kind          CmdKind
	Type          CmdType
	Ppa           ppa.Fields
	XferSize      int
	Stime         int64
	InterleavePCI bool
	CellMode      geom.CellMode
	CellType      geom.CellType
}

type queued struct {
	cmd   *Cmd
	stime int64
	ctime int64
}

/// LUN holds one die's command queue and timing state.
type LUN struct {
	mu             sync.Mutex
	queue          []*queued
	nextAvail      int64
	migrating      bool
	migratingEtime int64
}

/// NextAvail reports the LUN's current next-available time.
func (l *LUN) NextAvail() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextAvail
}

/// Scheduler owns one LUN per (channel, LUN-within-channel) die and the
/// shared channel/PCIe bandwidth model every command's transfer goes
/// through.
type Scheduler struct {
	geo    *geom.Params
	timing *timing.Model
	luns   []*LUN
}

/// NewScheduler allocates Channels*LunsPerCh LUN queues.
func NewScheduler(geo *geom.Params, tm *timing.Model) *Scheduler {
	s := &Scheduler{geo: geo, timing: tm}
	for i := 0; i < geo.Channels*geo.LunsPerCh; i++ {
		s.luns = append(s.luns, &LUN{})
	}
	return s
}

func (s *Scheduler) lunIndex(ch, lun int) int {
	return ch*s.geo.LunsPerCh + lun
}

/// LUN returns the scheduler's LUN queue for (ch, lun), for tests and
/// diagnostics.
func (s *Scheduler) LUN(ch, lun int) *LUN {
	return s.luns[s.lunIndex(ch, lun)]
}

// lunGetStime implements the migration-preemption queueing discipline.
func (s *Scheduler) lunGetStime(l *LUN, ncmd *Cmd, stime int64) (start int64, preempted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.queue[:0]
	for _, q := range l.queue {
		if q.ctime == 0 || q.ctime >= stime {
			kept = append(kept, q)
		}
	}
	l.queue = kept

	if stime > l.migratingEtime {
		l.migrating = false
	}

	if ncmd.Type != Migrate && l.migrating {
		for i, q := range l.queue {
			if q.cmd.Type == Migrate && q.stime > stime && q.cmd.Ppa.Blk != ncmd.Ppa.Blk {
				nq := &queued{cmd: ncmd, stime: q.stime}
				l.queue = append(l.queue[:i:i], append([]*queued{nq}, l.queue[i:]...)...)
				return q.stime, true
			}
		}
	}

	start = l.nextAvail
	if stime > start {
		start = stime
	}
	l.queue = append(l.queue, &queued{cmd: ncmd, stime: start})
	if ncmd.Type == Migrate {
		l.migrating = true
	}
	return start, false
}

// lunUpdate applies a command's completion back onto the LUN's queue state.
func (s *Scheduler) lunUpdate(l *LUN, ncmd *Cmd, stime int64, preempted bool, etime int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if preempted {
		delta := etime - stime
		for _, q := range l.queue {
			if q.stime > stime {
				q.stime += delta
			}
		}
		l.nextAvail += delta
	} else {
		l.nextAvail = etime
	}
	for _, q := range l.queue {
		if q.cmd == ncmd {
			q.ctime = etime
		}
	}
	if ncmd.Type == Migrate && etime > l.migratingEtime {
		l.migratingEtime = etime
	}
}

func (s *Scheduler) readLatency(cmd *Cmd) int64 {
	lat := s.geo.Latencies[cmd.CellMode]
	if cmd.XferSize == 4096 {
		return lat.Read4KNs[cmd.CellType]
	}
	return lat.ReadNs[cmd.CellType]
}

/// Advance submits cmd to its target LUN and returns its completion time.
func (s *Scheduler) Advance(cmd *Cmd) int64 {
	l := s.luns[s.lunIndex(cmd.Ppa.Ch, cmd.Ppa.Lun)]

	switch cmd.Kind {
	case Nop:
		l.mu.Lock()
		start := l.nextAvail
		if cmd.Stime > start {
			start = cmd.Stime
		}
		l.nextAvail = start
		l.mu.Unlock()
		return start

	case Erase:
		start, preempted := s.lunGetStime(l, cmd, cmd.Stime)
		etime := start + s.geo.Latencies[cmd.CellMode].EraseNs
		s.lunUpdate(l, cmd, start, preempted, etime)
		return etime

	case Read:
		start, preempted := s.lunGetStime(l, cmd, cmd.Stime)
		nandEtime := start + s.readLatency(cmd)
		chEtime := s.timing.TransferChannel(cmd.Ppa.Ch, nandEtime, cmd.XferSize, cmd.InterleavePCI)
		s.lunUpdate(l, cmd, start, preempted, chEtime)
		return chEtime

	case Write:
		start, preempted := s.lunGetStime(l, cmd, cmd.Stime)
		chEtime := s.timing.TransferChannel(cmd.Ppa.Ch, start, cmd.XferSize, cmd.InterleavePCI)
		nandEtime := chEtime + s.geo.Latencies[cmd.CellMode].WriteNs
		s.lunUpdate(l, cmd, start, preempted, nandEtime)
		return nandEtime
	}
	panic("nandq: unknown cmd kind")
}
