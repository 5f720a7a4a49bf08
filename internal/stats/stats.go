// Package stats provides the small atomic counters the FTL uses to expose
// its testable invariants (L2P misses, GC count, credits refilled, pages
// relocated, migration count, ...), plus a reflection-based
// pretty-printer for whatever counter struct a caller builds out of them.
// Adapted from a kernel's Counter_t/Cycles_t idiom, but unlike a kernel
// (which typically gates counting behind a package-level `Stats` debug
// toggle because cycle-accurate counters are expensive to keep live), these
// counters are load-bearing for the simulator's own invariants and so are
// always active.
package stats

import "reflect"
import "strconv"
import "strings"
import "sync/atomic"

/// Counter_t is a monotonically-updated statistical counter.
type Counter_t int64

/// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

/// Add adds delta to the counter (delta may be negative, e.g. crediting back
/// pages a GC cycle freed).
func (c *Counter_t) Add(delta int64) {
	atomic.AddInt64((*int64)(c), delta)
}

/// Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Set overwrites the counter's value.
func (c *Counter_t) Set(v int64) {
	atomic.StoreInt64((*int64)(c), v)
}

/// Gauge_t holds a point-in-time quantity (free line counts, queue depth)
/// rather than a running total; same representation as Counter_t, distinct
/// name so call sites read correctly.
type Gauge_t = Counter_t

/// Stats2String converts a struct of Counter_t/Gauge_t fields to a printable
/// string, one "name: value" line per field.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t" + v.Type().Field(i).Name + ": " + strconv.FormatInt(n.Get(), 10)
		}
	}
	return s + "\n"
}
