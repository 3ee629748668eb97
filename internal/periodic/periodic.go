// Package periodic provides a rate-limited gate for progress logging,
// grounded on the original pipeline's Periodic/PeriodCounter helper
// (lib/src/period.rs) and used the way the teacher's
// internal/indexer.Builder.ContinuousSync throttles its own progress logs
// with a time.Ticker.
package periodic

import "time"

// Ticker reports true at most once per period, letting a hot loop check
// "should I log now?" without allocating a goroutine or channel per
// caller.
type Ticker struct {
	last   time.Time
	period time.Duration
}

func NewTicker(period time.Duration) *Ticker {
	return &Ticker{last: time.Now(), period: period}
}

// Elapsed returns true and resets the clock if period has passed since the
// last true result.
func (t *Ticker) Elapsed() bool {
	if time.Since(t.last) > t.period {
		t.last = time.Now()
		return true
	}
	return false
}

// Counter accumulates a running total of blocks and transactions alongside
// a Ticker, so a stage can log both an instantaneous and a cumulative
// throughput figure on each Elapsed tick.
type Counter struct {
	Ticker *Ticker

	start     time.Time
	totalBlk  uint64
	totalTx   uint64
	periodBlk uint64
	periodTx  uint64
}

func NewCounter(period time.Duration) *Counter {
	return &Counter{Ticker: NewTicker(period), start: time.Now()}
}

func (c *Counter) Add(txCount int) {
	c.totalBlk++
	c.periodBlk++
	c.totalTx += uint64(txCount)
	c.periodTx += uint64(txCount)
}

// Snapshot returns the cumulative block/tx counts and resets the
// per-period counters. Call only when Ticker.Elapsed() is true.
func (c *Counter) Snapshot() (totalBlocks, totalTxs uint64, periodBlocks, periodTxs uint64) {
	totalBlocks, totalTxs = c.totalBlk, c.totalTx
	periodBlocks, periodTxs = c.periodBlk, c.periodTx
	c.periodBlk, c.periodTx = 0, 0
	return
}
