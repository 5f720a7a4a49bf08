package timing

import "testing"

func TestRequestRespectsLastBusyUntil(t *testing.T) {
	r := NewResource(1_000_000_000, 0) // 1 GB/s, no fw overhead
	first := r.Request(0, 1000)
	if first <= 0 {
		t.Fatalf("first completion = %d, want > 0", first)
	}
	second := r.Request(0, 1000) // submitted at time 0 again, but resource busy
	if second < first {
		t.Fatalf("second completion %d should not precede first %d", second, first)
	}
}

func TestRequestStartsAtMaxOfStartAndBusy(t *testing.T) {
	r := NewResource(1_000_000_000, 0)
	r.Request(0, 1000)
	busy := r.LastBusyUntil()
	// A request starting well after the resource is free should not be
	// delayed by the earlier transfer.
	completion := r.Request(busy+1_000_000, 1000)
	if completion < busy+1_000_000 {
		t.Fatalf("completion %d should be >= start %d", completion, busy+1_000_000)
	}
}

func TestModelTransferChannelSplitsIntoChunks(t *testing.T) {
	m := NewModel(1, 1_000_000_000, 1_000_000_000, 0, 4096)
	completion := m.TransferChannel(0, 0, 4096*3, false)
	if completion <= 0 {
		t.Fatalf("completion = %d, want > 0", completion)
	}
}
