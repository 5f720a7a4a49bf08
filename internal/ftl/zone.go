// Package ftl assembles the geometry, timing, mapping, write-buffer, and
// GC/migration packages into the Request Pipeline: the top-level read,
// write, zone-reset, and flush operations a namespace exposes to its host
// command stream.
package ftl

import (
	"fmt"

	"github.com/dingcuiyu/conzone-go/internal/status"
)

/// ZoneState names a zone's position in its state machine.
type ZoneState int

const (
	ZoneEmpty ZoneState = iota
	ZoneOpenImplicit
	ZoneOpenExplicit
	ZoneClosed
	ZoneFull
	ZoneOffline
	ZoneReadOnly
)

func (s ZoneState) String() string {
	switch s {
	case ZoneEmpty:
		return "empty"
	case ZoneOpenImplicit:
		return "open_impl"
	case ZoneOpenExplicit:
		return "open_expl"
	case ZoneClosed:
		return "closed"
	case ZoneFull:
		return "full"
	case ZoneOffline:
		return "offline"
	case ZoneReadOnly:
		return "read_only"
	default:
		return "zone(?)"
	}
}

/// WriteError reports a CheckWrite rejection tagged with the status code the
/// host command stream should surface, instead of a bare string every
/// rejection cause collapses into.
type WriteError struct {
	Status status.Status
	msg    string
}

func (e *WriteError) Error() string { return e.msg }

func writeErr(s status.Status, format string, args ...interface{}) *WriteError {
	return &WriteError{Status: s, msg: fmt.Sprintf(format, args...)}
}

/// Zone is the minimal state the Request Pipeline reads and mutates for a
/// zoned namespace: write pointer, state, and capacity bookkeeping.
type Zone struct {
	ID           int64
	State        ZoneState
	WP           int64 /// next writable LBA, relative to the namespace's LPN space
	ZSLBA        int64 /// this zone's starting LBA
	ZoneCapacity int64 /// writable capacity in LBAs (<= zone size)
}

/// ResourceCounters tracks the namespace-wide open/active zone budgets a
/// zone's transitions consume and release.
type ResourceCounters struct {
	MaxOpen, MaxActive   int
	Open, Active         int
}

/// HasOpenResource reports whether another zone may transition into
/// open/active state.
func (r *ResourceCounters) HasOpenResource() bool {
	return (r.MaxOpen <= 0 || r.Open < r.MaxOpen) && (r.MaxActive <= 0 || r.Active < r.MaxActive)
}

/// Open transitions the zone from empty/closed into open_expl, claiming an
/// open+active resource slot.
func (z *Zone) Open(res *ResourceCounters) error {
	switch z.State {
	case ZoneEmpty, ZoneClosed:
	default:
		return fmt.Errorf("ftl: cannot open zone %d in state %s", z.ID, z.State)
	}
	if !res.HasOpenResource() {
		return fmt.Errorf("ftl: no open/active resource available for zone %d", z.ID)
	}
	if z.State == ZoneEmpty {
		res.Active++
	}
	res.Open++
	z.State = ZoneOpenExplicit
	return nil
}

// openImplicit is the Request Pipeline's internal counterpart to Open,
// used when a write lands on an empty zone without an explicit open first.
func (z *Zone) openImplicit(res *ResourceCounters) error {
	if z.State != ZoneEmpty {
		return nil
	}
	if res.MaxActive > 0 && res.Active >= res.MaxActive {
		return writeErr(status.ZnsNoActiveZone, "ftl: no active-zone resource available for zone %d", z.ID)
	}
	if res.MaxOpen > 0 && res.Open >= res.MaxOpen {
		return writeErr(status.ZnsNoOpenZone, "ftl: no open-zone resource available for zone %d", z.ID)
	}
	res.Open++
	res.Active++
	z.State = ZoneOpenImplicit
	return nil
}

/// Close transitions an open zone to closed, releasing its open (but not
/// active) slot.
func (z *Zone) Close(res *ResourceCounters) error {
	switch z.State {
	case ZoneOpenImplicit, ZoneOpenExplicit:
	default:
		return fmt.Errorf("ftl: cannot close zone %d in state %s", z.ID, z.State)
	}
	res.Open--
	z.State = ZoneClosed
	return nil
}

/// Finish transitions a zone directly to full, releasing any open/active
/// slots it held and advancing wp to the end of capacity.
func (z *Zone) Finish(res *ResourceCounters) error {
	switch z.State {
	case ZoneOffline, ZoneReadOnly:
		return fmt.Errorf("ftl: cannot finish zone %d in state %s", z.ID, z.State)
	}
	if z.State == ZoneOpenImplicit || z.State == ZoneOpenExplicit {
		res.Open--
		res.Active--
	} else if z.State == ZoneClosed {
		res.Active--
	}
	z.WP = z.ZSLBA + z.ZoneCapacity
	z.State = ZoneFull
	return nil
}

/// Reset returns the zone to empty, rewinding its write pointer. Callers
/// are responsible for invalidating the zone's mappings first.
func (z *Zone) Reset(res *ResourceCounters) error {
	switch z.State {
	case ZoneOffline:
		return fmt.Errorf("ftl: cannot reset zone %d in state %s", z.ID, z.State)
	}
	if z.State == ZoneOpenImplicit || z.State == ZoneOpenExplicit {
		res.Open--
		res.Active--
	} else if z.State == ZoneClosed {
		res.Active--
	}
	z.WP = z.ZSLBA
	z.State = ZoneEmpty
	return nil
}

/// CheckWrite validates a zoned write's state, boundary, and alignment,
/// substituting z.WP for slba when isAppend is set. Returns the
/// LBA the write should actually land at.
func (z *Zone) CheckWrite(res *ResourceCounters, slba, nlb int64, isAppend bool) (int64, error) {
	switch z.State {
	case ZoneEmpty, ZoneClosed, ZoneOpenImplicit, ZoneOpenExplicit:
	case ZoneFull:
		return 0, writeErr(status.ZnsErrFull, "ftl: zone %d is full", z.ID)
	case ZoneReadOnly:
		return 0, writeErr(status.ZnsErrReadOnly, "ftl: zone %d is read-only", z.ID)
	case ZoneOffline:
		return 0, writeErr(status.ZnsErrOffline, "ftl: zone %d is offline", z.ID)
	default:
		return 0, writeErr(status.ZnsInvalidWrite, "ftl: zone %d not writable in state %s", z.ID, z.State)
	}
	if z.State == ZoneEmpty {
		if err := z.openImplicit(res); err != nil {
			return 0, err
		}
	}
	if isAppend {
		slba = z.WP
	} else if slba != z.WP {
		return 0, writeErr(status.ZnsInvalidWrite, "ftl: zone %d write at %d does not match write pointer %d", z.ID, slba, z.WP)
	}
	if slba+nlb > z.ZSLBA+z.ZoneCapacity {
		return 0, writeErr(status.ZnsBoundary, "ftl: zone %d write [%d,%d) crosses zone capacity boundary", z.ID, slba, slba+nlb)
	}
	return slba, nil
}

/// Advance moves the zone's write pointer forward by nlb LBAs after an
/// accepted write, transitioning to full and releasing resources if the
/// zone is now exhausted.
func (z *Zone) Advance(res *ResourceCounters, nlb int64) {
	z.WP += nlb
	if z.WP == z.ZSLBA+z.ZoneCapacity {
		if z.State == ZoneOpenImplicit || z.State == ZoneOpenExplicit {
			res.Open--
			res.Active--
		}
		z.State = ZoneFull
	}
}
