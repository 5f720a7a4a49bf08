package gc

import (
	"github.com/dingcuiyu/conzone-go/internal/nandq"
	"github.com/dingcuiyu/conzone-go/internal/ppa"
	"github.com/dingcuiyu/conzone-go/internal/stats"
	"github.com/dingcuiyu/conzone-go/internal/status"
)

/// MigrateThresLinesLow is the pSLC free-line low-water mark that triggers
/// migration to the normal tier.
const MigrateThresLinesLow = 2

/// Migrator runs pSLC->normal migration. It shares its source line.Manager
/// (and migration FIFO) with the pSLC GC engine and writes through the two
/// engines' destination write pointers: the normal engine's for completed
/// zone_write_unit batches, the pSLC engine's for trailing remainders.
type Migrator struct {
	PSLC   *Engine /// the pSLC tier's Engine, reused for its validLPNs/internalWrite/findBlock plumbing
	Normal *Engine /// the normal tier's Engine, supplying its destination write pointer and line manager

	MigrationCount stats.Counter_t
}

/// ShouldMigrateLow reports whether the pSLC tier's free-line count has
/// dropped to the threshold that triggers migration.
func (m *Migrator) ShouldMigrateLow() bool {
	return m.PSLC.Lines.FreeCount() <= MigrateThresLinesLow
}

/// Run performs one do_migrate pass if should_migrate_low holds (or
/// unconditionally when force is set): pops the earliest-filled pSLC line
/// from the migration FIFO, relocates its valid pages into the normal tier
/// in zone_write_unit batches, stashes sub-unit remainders back into pSLC,
/// and erases the line. Returns false if no migration ran.
///
/// do_migrate's step 1 ("skip if any LUN's migrating_etime exceeds the
/// current time") is already enforced inside the scheduler: lun_getstime
/// reads migrating/migrating_etime per command, so a fresh migration
/// command submitted here is preempted or queued correctly without a
/// separate up-front check.
func (m *Migrator) Run(now int64, force bool, pslcLatch, normalLatch *status.Latch_t) bool {
	if !force && !m.ShouldMigrateLow() {
		return false
	}
	src, ok := m.PSLC.Lines.PopMigration()
	if !ok {
		return false
	}

	lpns, addrs := m.PSLC.validLPNs(src)
	readDone := m.PSLC.readSource(now, addrs, lpns, MigrateIOType)

	unit := m.Normal.Geo.ZoneWriteUnitPgs()
	agg := make(map[int64][]int64)
	for _, lpn := range lpns {
		zid := int64(0)
		if m.PSLC.ZoneOf != nil {
			zid = m.PSLC.ZoneOf(lpn)
		}
		prev := agg[zid]
		if len(prev) > 0 && prev[len(prev)-1]+1 != lpn {
			panic("gc: non-contiguous LPNs within one zone during migration")
		}
		agg[zid] = append(prev, lpn)
		if len(agg[zid]) >= unit {
			m.PSLC.internalWrite(readDone, agg[zid], m.Normal.DestWP, m.Normal.Lines, normalLatch, MigrateIOType)
			agg[zid] = nil
		}
	}
	for _, tail := range agg {
		if len(tail) == 0 {
			continue
		}
		m.PSLC.internalWrite(readDone, tail, m.PSLC.DestWP, m.PSLC.Lines, pslcLatch, MigrateIOType)
	}

	rpc := src.RPC()
	ipc := src.IPC()
	src.IncRPC(-rpc)
	for i, b := range src.Blocks {
		ch, lun, pl := m.PSLC.dieFields(i)
		cmd := &nandq.Cmd{
			Kind: nandq.Erase, Type: nandq.Migrate,
			Ppa:      ppa.Fields{Ch: ch, Lun: lun, Pl: pl, Blk: b.ID},
			CellMode: m.PSLC.blockCellMode(ppa.Fields{}),
		}
		m.PSLC.Sched.Advance(cmd)
	}
	m.PSLC.Lines.Erase(src)
	m.PSLC.Creds.Refill(int64(ipc) + int64(rpc))

	m.sweepFullyInvalid()
	m.MigrationCount.Inc()
	return true
}

// sweepFullyInvalid erases, without relocation, pSLC lines at the head of
// the migration FIFO whose ipc has reached pgs_per_line — a line entirely
// made of invalidated pages needs no read-back before reuse. It stops at the
// first head line that still holds a non-invalid page; lines further back in
// the FIFO and lines in the victim queue are not examined.
func (m *Migrator) sweepFullyInvalid() {
	for {
		l, ok := m.PSLC.Lines.PeekMigration()
		if !ok || int(l.IPC()) != l.PgsPerLine {
			return
		}
		m.PSLC.Lines.PopMigration()
		for i, b := range l.Blocks {
			ch, lun, pl := m.PSLC.dieFields(i)
			cmd := &nandq.Cmd{
				Kind: nandq.Erase, Type: nandq.Migrate,
				Ppa:      ppa.Fields{Ch: ch, Lun: lun, Pl: pl, Blk: b.ID},
				CellMode: m.PSLC.blockCellMode(ppa.Fields{}),
			}
			m.PSLC.Sched.Advance(cmd)
		}
		m.PSLC.Lines.Erase(l)
	}
}
