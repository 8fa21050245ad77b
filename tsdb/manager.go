package tsdb

import (
	"sort"
	"sync"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/format"
)

// Manager maps ingest timestamps to the Tsdb window that owns them,
// creating windows on demand and enforcing the half-open boundary every
// Tsdb's [From, To) range implies. It is the Go counterpart of the
// original engine's Tsdb::inst/search/insts registry, keyed by window
// start rather than walked as a sorted slice.
type Manager struct {
	mu sync.RWMutex

	dataDir      string
	rotationFreq int64
	pageSize     uint16
	compressor   format.PageEncoding
	resolution   clock.Resolution
	opts         []Option

	windows map[int64]*Tsdb // keyed by window From
}

// NewManager creates a Manager that opens windows under dataDir sized to
// rotationFreq seconds, applying opts to every window it creates.
func NewManager(dataDir string, rotationFreq int64, pageSize uint16, compressor format.PageEncoding, resolution clock.Resolution, opts ...Option) *Manager {
	return &Manager{
		dataDir:      dataDir,
		rotationFreq: rotationFreq,
		pageSize:     pageSize,
		compressor:   compressor,
		resolution:   resolution,
		opts:         opts,
		windows:      make(map[int64]*Tsdb),
	}
}

// WindowFor rounds tstamp down to the start of the half-open window
// [from, from+rotationFreq) that owns it. A point with timestamp exactly
// equal to a window's end belongs to the next window, never the one it
// bounds, since from is always a multiple of rotationFreq.
func WindowFor(tstamp, rotationFreq int64) (from, to int64) {
	if rotationFreq < 1 {
		rotationFreq = 1
	}

	from = (tstamp / rotationFreq) * rotationFreq

	return from, from + rotationFreq
}

// Get returns the Tsdb owning tstamp. If no window currently covers it
// and create is true, one is opened (and its on-disk directory created)
// on demand; otherwise Get returns a nil Tsdb and no error.
func (m *Manager) Get(tstamp int64, create bool) (*Tsdb, error) {
	from, to := WindowFor(tstamp, m.rotationFreq)

	m.mu.RLock()
	t := m.windows[from]
	m.mu.RUnlock()

	if t != nil || !create {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if t := m.windows[from]; t != nil {
		return t, nil
	}

	t, err := Open(m.dataDir, from, to, m.pageSize, m.compressor, m.resolution, m.opts...)
	if err != nil {
		return nil, err
	}
	m.windows[from] = t

	return t, nil
}

// Windows returns every currently open window overlapping [start, end),
// ordered by From — the counterpart of Tsdb::insts.
func (m *Manager) Windows(start, end int64) []*Tsdb {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Tsdb
	for _, t := range m.windows {
		if t.To > start && t.From < end {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })

	return out
}

// Close closes every open window, returning the first error encountered.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, t := range m.windows {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
