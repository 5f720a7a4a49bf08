// Package status carries the completion status codes the request pipeline
// returns to the upstream host-command shim, in the style of a
// defs.Err_t / defs.Mkdev constant block: small integer codes with compact
// doc comments, never a decorated error type.
package status

/// Status is the completion status of a host command.
type Status int

const (
	Success         Status = iota /// command completed normally
	CapExceeded                   /// no free line on the requested tier (pslc_full or device_full)
	ZnsInvalidWrite                /// slba != zone.wp, misaligned, or beyond zone capacity
	ZnsBoundary                    /// read/write range crosses a zone boundary
	ZnsErrFull                     /// zone is in the full state
	ZnsErrReadOnly                 /// zone is in the read-only state
	ZnsErrOffline                  /// zone is offline
	ZnsNoOpenZone                  /// no open-zone resource available
	ZnsNoActiveZone                /// no active-zone resource available
	InvalidField                   /// read past zone capacity or other malformed field
	first           = Success
	last            = InvalidField
)

/// String renders a Status for logging and test failure messages.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case CapExceeded:
		return "cap_exceeded"
	case ZnsInvalidWrite:
		return "zns_invalid_write"
	case ZnsBoundary:
		return "zns_boundary"
	case ZnsErrFull:
		return "zns_err_full"
	case ZnsErrReadOnly:
		return "zns_err_read_only"
	case ZnsErrOffline:
		return "zns_err_offline"
	case ZnsNoOpenZone:
		return "zns_no_open_zone"
	case ZnsNoActiveZone:
		return "zns_no_active_zone"
	case InvalidField:
		return "invalid_field"
	default:
		return "status(?)"
	}
}

/// Valid reports whether s is one of the codes declared above.
func (s Status) Valid() bool {
	return s >= first && s <= last
}

/// Ok reports whether s represents a successfully completed command.
func (s Status) Ok() bool {
	return s == Success
}
