// Package profile turns the simulator's per-command latency samples into a
// pprof profile.proto document, so a run's NAND timing can be inspected with
// "go tool pprof" the same way a CPU profile would be: one sample per
// command, bucketed by command kind, weighted by its simulated latency.
package profile

import (
	"io"
	"sync"

	"github.com/google/pprof/profile"
)

/// Recorder accumulates (kind, latency) samples during a simulation run.
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]int64
}

/// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{samples: make(map[string][]int64)}
}

/// Record adds one latency sample (nanoseconds) under the given command
/// kind label, e.g. "write:pslc", "read:normal", "erase:gc".
func (r *Recorder) Record(kind string, latencyNs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[kind] = append(r.samples[kind], latencyNs)
}

/// Len returns the total number of samples recorded across every kind.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.samples {
		n += len(s)
	}
	return n
}

// buildFunction returns the synthetic function/location pair representing
// one command kind's pseudo call stack, numbered in the order Build visits
// the kinds (map iteration order, so ids can differ between runs).
func buildFunction(id uint64, kind string) (*profile.Function, *profile.Location) {
	fn := &profile.Function{ID: id, Name: kind, SystemName: kind, Filename: "conzonesim"}
	loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn, Line: 1}}}
	return fn, loc
}

/// Build renders the recorded samples into a pprof profile.Profile with one
/// sample value, "latency" in nanoseconds, one synthetic stack frame per
/// command kind.
func (r *Recorder) Build() *profile.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "latency", Unit: "nanoseconds"}},
		PeriodType: &profile.ValueType{Type: "latency", Unit: "nanoseconds"},
		Period:     1,
	}

	var id uint64
	for kind, latencies := range r.samples {
		id++
		fn, loc := buildFunction(id, kind)
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		for _, ns := range latencies {
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{ns},
			})
		}
	}
	return p
}

/// WriteTo renders the recorded samples and writes them to w in pprof's
/// gzip-compressed wire format.
func (r *Recorder) WriteTo(w io.Writer) error {
	return r.Build().Write(w)
}
