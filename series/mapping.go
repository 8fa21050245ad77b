package series

import (
	"sync"
	"sync/atomic"

	"github.com/relaydb/relaydb/storage"
)

// mixedTagCount marks a Mapping whose member series do not all share the
// same tag-key count, per spec.md §3's "-2 for mixed" cached tag-count rule.
const mixedTagCount = -2

// Mapping is the registry of every TimeSeries under one metric name: a
// canonical-tag-string lookup table plus an append-only arena so readers
// can snapshot-iterate without a lock racing concurrent inserts. Appends
// hold mu; the atomic count is only advanced after the new entry is fully
// written, so a reader observing count=n may always safely read arena[:n].
type Mapping struct {
	MetricID   storage.MetricID
	MetricName string

	mu    sync.Mutex
	byTag map[string]int
	arena []*TimeSeries
	count atomic.Int64

	measurements map[string]*Measurement

	tagCount atomic.Int32 // 0 = unset, mixedTagCount = mixed
}

// NewMapping creates an empty Mapping for a metric.
func NewMapping(id storage.MetricID, name string) *Mapping {
	return &Mapping{
		MetricID:     id,
		MetricName:   name,
		byTag:        make(map[string]int),
		measurements: make(map[string]*Measurement),
	}
}

// Get returns the TimeSeries for a canonical tag string, if one exists.
func (m *Mapping) Get(canonicalTag string) (*TimeSeries, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.byTag[canonicalTag]
	if !ok {
		return nil, false
	}

	return m.arena[idx], true
}

// GetOrCreate returns the existing TimeSeries for tags, or creates one
// using nextID (typically storage.MetaFile's next id allocator) and
// appends a `ts` record via the caller-supplied persist callback before
// making the series visible to readers.
func (m *Mapping) GetOrCreate(tags []Tag, nextID func() (storage.TimeSeriesID, error), persist func(*TimeSeries) error) (*TimeSeries, bool, error) {
	canonical := CanonicalTagString(append([]Tag(nil), tags...))

	m.mu.Lock()
	if idx, ok := m.byTag[canonical]; ok {
		m.mu.Unlock()
		return m.arena[idx], false, nil
	}

	id, err := nextID()
	if err != nil {
		m.mu.Unlock()
		return nil, false, err
	}

	ts := New(id, m.MetricID, tags)

	if persist != nil {
		if err := persist(ts); err != nil {
			m.mu.Unlock()
			return nil, false, err
		}
	}

	idx := len(m.arena)
	m.arena = append(m.arena, ts)
	m.byTag[canonical] = idx
	m.count.Store(int64(len(m.arena)))
	m.updateTagCountLocked(len(tags))
	m.mu.Unlock()

	return ts, true, nil
}

func (m *Mapping) updateTagCountLocked(n int) {
	cur := m.tagCount.Load()
	switch {
	case cur == 0:
		m.tagCount.Store(int32(n))
	case cur == mixedTagCount:
		// already mixed
	case int(cur) != n:
		m.tagCount.Store(mixedTagCount)
	}
}

// TagCount returns the shared tag-key count across all series in this
// Mapping, or mixedTagCount if they differ.
func (m *Mapping) TagCount() int { return int(m.tagCount.Load()) }

// Snapshot returns a stable view of every TimeSeries registered so far,
// safe to iterate without holding a lock.
func (m *Mapping) Snapshot() []*TimeSeries {
	n := m.count.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*TimeSeries, n)
	copy(out, m.arena[:n])

	return out
}

// Count returns the number of registered time series.
func (m *Mapping) Count() int { return int(m.count.Load()) }

// GetOrCreateMeasurement returns the Measurement for a tag set, creating
// an empty one (no fields yet) if this is the first time it is seen.
func (m *Mapping) GetOrCreateMeasurement(tags []Tag) *Measurement {
	canonical := CanonicalTagString(append([]Tag(nil), tags...))

	m.mu.Lock()
	defer m.mu.Unlock()

	meas, ok := m.measurements[canonical]
	if !ok {
		meas = &Measurement{Name: m.MetricName, Tags: tags}
		m.measurements[canonical] = meas
	}

	return meas
}
