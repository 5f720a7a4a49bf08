// Package timing models per-resource bandwidth: each channel and the shared
// PCIe link are independent instances of the same "last busy until" request
// model, translating a (start time, byte count) pair into a completion
// timestamp that respects whatever that resource was already doing.
package timing

import "sync"

/// Resource serializes bandwidth-limited transfers: Request(start, bytes)
/// returns the completion time of a transfer that cannot begin before the
/// resource's last outstanding transfer finishes.
type Resource struct {
	mu             sync.Mutex
	bandwidthBps   int64 /// bytes/sec
	fwLatencyPer4K int64 /// fixed per-4KiB firmware overhead, nanoseconds
	lastBusyUntil  int64
}

/// NewResource returns an idle resource with the given bandwidth and
/// firmware per-4KiB transfer overhead.
func NewResource(bandwidthBps, fwLatencyPer4K int64) *Resource {
	return &Resource{bandwidthBps: bandwidthBps, fwLatencyPer4K: fwLatencyPer4K}
}

func (r *Resource) transferLatency(bytes int) int64 {
	if r.bandwidthBps <= 0 {
		return 0
	}
	return int64(bytes) * 1_000_000_000 / r.bandwidthBps
}

func (r *Resource) fwLatency(bytes int) int64 {
	chunks := (int64(bytes) + 4095) / 4096
	return chunks * r.fwLatencyPer4K
}

/// Request reserves the resource for a transfer of the given size starting
/// no earlier than start, and returns the transfer's completion time. The
/// resource is busy until that completion time for any subsequent request.
func (r *Resource) Request(start int64, bytes int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	begin := start
	if r.lastBusyUntil > begin {
		begin = r.lastBusyUntil
	}
	completion := begin + r.transferLatency(bytes) + r.fwLatency(bytes)
	r.lastBusyUntil = completion
	return completion
}

/// LastBusyUntil reports the resource's current busy horizon, for tests and
/// diagnostics.
func (r *Resource) LastBusyUntil() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastBusyUntil
}

/// Model bundles one Resource per channel plus the shared PCIe link.
type Model struct {
	Channels      []*Resource
	PCIe          *Resource
	maxChXferSize int
}

/// NewModel builds a timing model for the given number of channels.
func NewModel(nchannels int, chBandwidthBps, pcieBandwidthBps, fwXferPer4K, maxChXferSize int64) *Model {
	m := &Model{PCIe: NewResource(pcieBandwidthBps, fwXferPer4K), maxChXferSize: int(maxChXferSize)}
	for i := 0; i < nchannels; i++ {
		m.Channels = append(m.Channels, NewResource(chBandwidthBps, fwXferPer4K))
	}
	return m
}

/// TransferChannel submits a byte transfer of the given size to channel ch
/// no earlier than start, splitting it into maxChXferSize chunks the way a
/// real channel command is segmented; if interleavePCIe is set, each chunk's
/// PCIe transfer is requested as soon as that chunk's channel transfer
/// completes instead of waiting for the whole command. Returns the overall
/// completion time.
func (m *Model) TransferChannel(ch int, start int64, bytes int, interleavePCIe bool) int64 {
	chunk := m.maxChXferSize
	if chunk <= 0 {
		chunk = bytes
	}
	t := start
	remaining := bytes
	for remaining > 0 {
		n := remaining
		if n > chunk {
			n = chunk
		}
		t = m.Channels[ch].Request(t, n)
		if interleavePCIe {
			t = m.PCIe.Request(t, n)
		}
		remaining -= n
	}
	if !interleavePCIe {
		t = m.PCIe.Request(t, bytes)
	}
	return t
}
