// Package metrics tracks per-batch reconciliation counters: how many
// candidates were resolved, classified, staged, committed, and
// published.
package metrics

import "sync/atomic"

// BatchCounters accumulates counts for a single batch. Zero value is
// ready to use. Safe for concurrent increments from parallel resolve or
// staging work.
type BatchCounters struct {
	Resolved  int64
	Missing   int64
	Changed   int64
	Unchanged int64
	Staged    int64
	Committed int64
	Published int64
}

func (c *BatchCounters) AddResolved(n int64)  { atomic.AddInt64(&c.Resolved, n) }
func (c *BatchCounters) AddMissing(n int64)   { atomic.AddInt64(&c.Missing, n) }
func (c *BatchCounters) AddChanged(n int64)   { atomic.AddInt64(&c.Changed, n) }
func (c *BatchCounters) AddUnchanged(n int64) { atomic.AddInt64(&c.Unchanged, n) }
func (c *BatchCounters) AddStaged(n int64)    { atomic.AddInt64(&c.Staged, n) }
func (c *BatchCounters) AddCommitted(n int64) { atomic.AddInt64(&c.Committed, n) }
func (c *BatchCounters) AddPublished(n int64) { atomic.AddInt64(&c.Published, n) }

// Snapshot returns a point-in-time copy of the counters suitable for
// logging or JSON encoding.
func (c *BatchCounters) Snapshot() map[string]int64 {
	return map[string]int64{
		"resolved":  atomic.LoadInt64(&c.Resolved),
		"missing":   atomic.LoadInt64(&c.Missing),
		"changed":   atomic.LoadInt64(&c.Changed),
		"unchanged": atomic.LoadInt64(&c.Unchanged),
		"staged":    atomic.LoadInt64(&c.Staged),
		"committed": atomic.LoadInt64(&c.Committed),
		"published": atomic.LoadInt64(&c.Published),
	}
}
