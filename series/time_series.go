package series

import (
	"sync"
	"sync/atomic"

	"github.com/relaydb/relaydb/storage"
)

// TimeSeries is one canonical-tag-string series within a metric: its
// identity (id, metric id, ordered tag list) plus up to two in-memory
// pages, a primary page for in-order writes and an out-of-order page for
// points older than the last observed timestamp.
type TimeSeries struct {
	ID         storage.TimeSeriesID
	MetricID   storage.MetricID
	Tags       []Tag
	CanonicalTag string

	mu         sync.Mutex
	primary    *PageInMemory
	outOfOrder *PageInMemory

	lastTimestamp atomic.Int64
	outOfOrderSeen atomic.Bool
}

// New creates a TimeSeries with no pages yet open.
func New(id storage.TimeSeriesID, metricID storage.MetricID, tags []Tag) *TimeSeries {
	return &TimeSeries{
		ID:           id,
		MetricID:     metricID,
		Tags:         tags,
		CanonicalTag: CanonicalTagString(tags),
	}
}

// LastTimestamp returns the highest timestamp ever accepted by this
// series, across all Tsdbs it has written to in this process lifetime.
func (ts *TimeSeries) LastTimestamp() int64 { return ts.lastTimestamp.Load() }

// Observe records t as seen, reporting whether it arrived out of order
// relative to the series's high-water mark. The high-water mark only
// advances forward, so an out-of-order point never regresses it.
func (ts *TimeSeries) Observe(t int64) (outOfOrder bool) {
	for {
		last := ts.lastTimestamp.Load()
		if t < last {
			ts.outOfOrderSeen.Store(true)
			return true
		}
		if t == last {
			return false
		}
		if ts.lastTimestamp.CompareAndSwap(last, t) {
			return false
		}
	}
}

// HasSeenOutOfOrder reports whether this series has ever received a point
// older than its high-water mark, the sticky condition that disables
// rollup for it.
func (ts *TimeSeries) HasSeenOutOfOrder() bool { return ts.outOfOrderSeen.Load() }

// Primary returns the current in-order in-memory page, or nil if none is
// open.
func (ts *TimeSeries) Primary() *PageInMemory {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.primary
}

// SetPrimary replaces the in-order in-memory page.
func (ts *TimeSeries) SetPrimary(p *PageInMemory) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.primary = p
}

// OutOfOrderPage returns the current out-of-order in-memory page, or nil.
func (ts *TimeSeries) OutOfOrderPage() *PageInMemory {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.outOfOrder
}

// SetOutOfOrderPage replaces the out-of-order in-memory page.
func (ts *TimeSeries) SetOutOfOrderPage(p *PageInMemory) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.outOfOrder = p
}
