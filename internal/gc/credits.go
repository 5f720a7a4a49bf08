// Package gc implements the device's foreground garbage collector and
// pSLC-to-normal migration, together with the per-tier write-credit budget
// that throttles host writes against how far ahead of them GC is keeping
// free space.
package gc

import (
	"sync/atomic"

	"github.com/dingcuiyu/conzone-go/internal/status"
)

/// Credits is an atomically-updated write-credit budget for one tier. A
/// write consumes one credit per page it programs; a GC or migration cycle
/// gives back one credit per page it frees. The budget is allowed to go
/// negative only transiently inside Consume/Give, never as an observable
/// value — Consume backs out its own decrement on underflow.
type Credits struct {
	balance int64
}

/// NewCredits returns a budget initialized to the given number of free pages.
func NewCredits(initial int64) *Credits {
	return &Credits{balance: initial}
}

/// Consume decrements the budget by one and reports whether it succeeded;
/// false means the tier is out of write credit and the caller must run GC
/// (or fail the write) before retrying.
func (c *Credits) Consume() bool {
	if atomic.AddInt64(&c.balance, -1) >= 0 {
		return true
	}
	atomic.AddInt64(&c.balance, 1)
	return false
}

/// Give returns one credit to the budget, e.g. for each page a GC or
/// migration cycle frees.
func (c *Credits) Give() {
	atomic.AddInt64(&c.balance, 1)
}

/// Refill returns n credits to the budget at once.
func (c *Credits) Refill(n int64) {
	if n < 0 {
		panic("gc: negative refill")
	}
	atomic.AddInt64(&c.balance, n)
}

/// Balance returns the current credit count.
func (c *Credits) Balance() int64 {
	return atomic.LoadInt64(&c.balance)
}

/// TierCredits holds one Credits budget per capacity tier.
type TierCredits struct {
	pslc   *Credits
	normal *Credits
}

/// NewTierCredits returns a TierCredits with both tiers seeded from the
/// number of free pages each tier starts with.
func NewTierCredits(pslcInit, normalInit int64) *TierCredits {
	return &TierCredits{
		pslc:   NewCredits(pslcInit),
		normal: NewCredits(normalInit),
	}
}

/// For returns the Credits budget for the given tier.
func (tc *TierCredits) For(tier status.Tier) *Credits {
	if tier == status.PSLC {
		return tc.pslc
	}
	return tc.normal
}
