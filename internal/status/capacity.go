package status

/// Tier identifies which capacity tier a device-full latch refers to.
type Tier int

const (
	PSLC   Tier = iota /// pseudo-SLC fast tier
	Normal             /// TLC/QLC normal tier
)

/// String names the tier for logging.
func (t Tier) String() string {
	if t == PSLC {
		return "pslc"
	}
	return "normal"
}

/// CapMsg_t is sent on CapCh when a tier's free-line list runs dry, mirroring
/// the latch-and-notify shape of an OomCh/Oommsg_t pair (a free list hitting
/// zero is this simulator's out-of-memory event).
type CapMsg_t struct {
	Tier   Tier
	Need   int
	Resume chan bool
}

/// CapCh is notified whenever get_next_free_line latches pslc_full or
/// device_full on some tier; nothing in this simulator currently blocks
/// waiting for capacity to free up (GC/migration handle that synchronously),
/// but the channel gives callers — tests, the CLI's demo harness — a place to
/// observe the event without polling counters.
var CapCh chan CapMsg_t = make(chan CapMsg_t, 16)

/// Latch_t tracks whether a tier has latched "full" since it was last reset,
/// a two-state latch for pslc_full/device_full.
type Latch_t struct {
	full bool
}

/// Set latches the flag and, if it was previously clear, notifies CapCh
/// without blocking (dropping the notification if nobody is listening and the
/// buffer is full — this is telemetry, not a synchronization primitive).
func (l *Latch_t) Set(tier Tier) {
	if l.full {
		return
	}
	l.full = true
	select {
	case CapCh <- CapMsg_t{Tier: tier, Need: 1}:
	default:
	}
}

/// Clear lowers the latch, e.g. once a free line becomes available again.
func (l *Latch_t) Clear() {
	l.full = false
}

/// Full reports the latch's current state.
func (l *Latch_t) Full() bool {
	return l.full
}
