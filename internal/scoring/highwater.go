package scoring

import "sync/atomic"

// UsageHighWater is the single piece of shared state the scorer depends on:
// the highest usage count observed for any solution so far. It only ever
// rises. RaiseTo is a compare-and-increase, safe under concurrent writers.
type UsageHighWater struct {
	v atomic.Int64
}

// NewUsageHighWater creates a high-water mark seeded at n (0 for a fresh ledger)
func NewUsageHighWater(n int64) *UsageHighWater {
	h := &UsageHighWater{}
	h.RaiseTo(n)
	return h
}

// RaiseTo raises the mark to n if n is higher; lower values are ignored
func (h *UsageHighWater) RaiseTo(n int64) {
	for {
		cur := h.v.Load()
		if n <= cur {
			return
		}
		if h.v.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Value returns the current mark
func (h *UsageHighWater) Value() int64 {
	return h.v.Load()
}
