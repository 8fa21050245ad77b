package rollup

import (
	"math"

	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/storage"
)

var engine = endian.GetLittleEndianEngine()

// recordSize is one persisted rollup record: tsid(4) + bucket_start(8) +
// count(4) + min(8) + max(8) + sum(8).
const recordSize = 4 + 8 + 4 + 8 + 8 + 8

// record is the on-disk shape of one Bucket tagged with its owning series,
// appended to a RollupFile's data log the way storage.MetaFile appends
// metric/ts/measurement records.
type record struct {
	TSID   storage.TimeSeriesID
	Bucket Bucket
}

func (r record) bytes() []byte {
	b := make([]byte, recordSize)
	engine.PutUint32(b[0:4], uint32(r.TSID))
	engine.PutUint64(b[4:12], uint64(r.Bucket.BucketStart)) //nolint:gosec
	engine.PutUint32(b[12:16], r.Bucket.Count)
	engine.PutUint64(b[16:24], math.Float64bits(r.Bucket.Min))
	engine.PutUint64(b[24:32], math.Float64bits(r.Bucket.Max))
	engine.PutUint64(b[32:40], math.Float64bits(r.Bucket.Sum))

	return b
}

func parseRecord(b []byte) (record, error) {
	if len(b) < recordSize {
		return record{}, errs.New(errs.KindCorrupted, "rollup.parseRecord", errs.ErrCorrupted)
	}

	var r record
	r.TSID = storage.TimeSeriesID(engine.Uint32(b[0:4]))
	r.Bucket.BucketStart = int64(engine.Uint64(b[4:12])) //nolint:gosec
	r.Bucket.Count = engine.Uint32(b[12:16])
	r.Bucket.Min = math.Float64frombits(engine.Uint64(b[16:24]))
	r.Bucket.Max = math.Float64frombits(engine.Uint64(b[24:32]))
	r.Bucket.Sum = math.Float64frombits(engine.Uint64(b[32:40]))

	return r, nil
}
