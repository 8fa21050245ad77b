// Package wal implements the per-writer append-only log a Tsdb's in-memory
// pages are durably mirrored to before they are acknowledged: a
// thread-tagged, zlib-flushed record stream replayed at startup to recover
// any page state a crash lost between writes.
package wal

import (
	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/storage"
)

// recordFlagFull marks a record whose page was full (rolled over to a new
// page) at the moment it was logged, mirroring page_info_on_disk's own
// full flag.
const recordFlagFull = 0x01

// recordFlagOutOfOrder marks a record logged from an out-of-order page.
const recordFlagOutOfOrder = 0x02

var engine = endian.GetLittleEndianEngine()

// Record is one append_log entry: a full page snapshot plus the context
// needed to replay it into the right TimeSeries and link it into its page
// chain. Mirrors spec.md §4.7's
// {mid, tid, tstamp0, offset, start, flags, prev_file, prev_header, compressed-bytes}.
type Record struct {
	MetricID   storage.MetricID
	TSID       storage.TimeSeriesID
	Tstamp0    int64
	Offset     uint16
	Start      uint8
	Full       bool
	OutOfOrder bool
	PrevFile   storage.FileIndex
	PrevHeader storage.HeaderIndex
	Data       []byte
}

func (r Record) flagsByte() byte {
	var b byte
	if r.Full {
		b |= recordFlagFull
	}
	if r.OutOfOrder {
		b |= recordFlagOutOfOrder
	}

	return b
}

// recordHeaderSize is every fixed-width field preceding the variable-length
// compressed page bytes: mid(4) + tid(4) + tstamp0(8) + offset(2) + start(1)
// + flags(1) + prev_file(2) + prev_header(2) + data_len(4).
const recordHeaderSize = 4 + 4 + 8 + 2 + 1 + 1 + 2 + 2 + 4

// Encode appends r's wire representation to buf and returns the result.
func (r Record) Encode(buf []byte) []byte {
	buf = engine.AppendUint32(buf, uint32(r.MetricID))
	buf = engine.AppendUint32(buf, uint32(r.TSID))
	buf = engine.AppendUint64(buf, uint64(r.Tstamp0)) //nolint:gosec
	buf = engine.AppendUint16(buf, r.Offset)
	buf = append(buf, r.Start, r.flagsByte())
	buf = engine.AppendUint16(buf, uint16(r.PrevFile))
	buf = engine.AppendUint16(buf, uint16(r.PrevHeader))
	buf = engine.AppendUint32(buf, uint32(len(r.Data)))
	buf = append(buf, r.Data...)

	return buf
}

// DecodeRecord parses one Record from the front of data, returning the
// record and the number of bytes consumed. errs.ErrCorrupted is returned
// if data is too short for the header or the declared payload length.
func DecodeRecord(data []byte) (Record, int, error) {
	if len(data) < recordHeaderSize {
		return Record{}, 0, errs.New(errs.KindCorrupted, "wal.DecodeRecord", errs.ErrCorrupted)
	}

	var r Record
	r.MetricID = storage.MetricID(engine.Uint32(data[0:4]))
	r.TSID = storage.TimeSeriesID(engine.Uint32(data[4:8]))
	r.Tstamp0 = int64(engine.Uint64(data[8:16])) //nolint:gosec
	r.Offset = engine.Uint16(data[16:18])
	r.Start = data[18]
	flags := data[19]
	r.Full = flags&recordFlagFull != 0
	r.OutOfOrder = flags&recordFlagOutOfOrder != 0
	r.PrevFile = storage.FileIndex(engine.Uint16(data[20:22]))
	r.PrevHeader = storage.HeaderIndex(engine.Uint16(data[22:24]))
	dataLen := int(engine.Uint32(data[24:28]))

	total := recordHeaderSize + dataLen
	if len(data) < total {
		return Record{}, 0, errs.New(errs.KindCorrupted, "wal.DecodeRecord", errs.ErrCorrupted)
	}

	r.Data = append([]byte(nil), data[recordHeaderSize:total]...)

	return r, total, nil
}
