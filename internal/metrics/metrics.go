package metrics

import (
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing value safe for concurrent use.
type Counter struct {
	v atomic.Uint64
}

func (c *Counter) Inc() {
	c.v.Add(1)
}

func (c *Counter) Add(n uint64) {
	c.v.Add(n)
}

func (c *Counter) Load() uint64 {
	return c.v.Load()
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveMillis adds the elapsed time in milliseconds to c and returns it.
func (t *Timer) ObserveMillis(c *Counter) time.Duration {
	d := t.Duration()
	c.Add(uint64(d.Milliseconds()))
	return d
}

// Checkout groups the counters of the checkout and reconciliation flows.
type Checkout struct {
	Committed        Counter
	Aborted          Counter
	StockRejected    Counter
	ProviderFailures Counter
	// LatencyMillis accumulates transaction time of every attempt, committed or not.
	LatencyMillis Counter

	Paid      Counter
	Cancelled Counter
	Replayed  Counter
	Stale     Counter
}

func NewCheckout() *Checkout {
	return &Checkout{}
}

func (c *Checkout) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"checkout_committed":         c.Committed.Load(),
		"checkout_aborted":           c.Aborted.Load(),
		"checkout_stock_rejected":    c.StockRejected.Load(),
		"checkout_provider_failures": c.ProviderFailures.Load(),
		"checkout_latency_ms_total":  c.LatencyMillis.Load(),
		"reconcile_paid":             c.Paid.Load(),
		"reconcile_cancelled":        c.Cancelled.Load(),
		"reconcile_replayed":         c.Replayed.Load(),
		"reconcile_stale":            c.Stale.Load(),
	}
}
