package section

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaydb/relaydb/errs"
)

// MetaRecordKind identifies which of the three MetaFile record shapes a
// MetaRecord carries.
type MetaRecordKind uint8

const (
	MetaRecordMetric MetaRecordKind = iota
	MetaRecordTimeSeries
	MetaRecordMeasurement
)

// MetaField is one field:id pair within a measurement record.
type MetaField struct {
	Field string
	TSID  uint32
}

// MetaRecord is one line of the append-only MetaFile, replayed in order at
// startup to rebuild the MetricId map and every Mapping/TimeSeries.
type MetaRecord struct {
	Kind       MetaRecordKind
	MetricID   uint32 // MetaRecordMetric
	MetricName string // all kinds
	TagString  string // MetaRecordTimeSeries, MetaRecordMeasurement
	TSID       uint32 // MetaRecordTimeSeries
	Fields     []MetaField // MetaRecordMeasurement
}

// Encode renders r as one newline-terminated MetaFile line.
func (r MetaRecord) Encode() string {
	switch r.Kind {
	case MetaRecordMetric:
		return fmt.Sprintf("metric %d %s\n", r.MetricID, r.MetricName)
	case MetaRecordTimeSeries:
		return fmt.Sprintf("ts %s %s %d\n", r.MetricName, r.TagString, r.TSID)
	case MetaRecordMeasurement:
		var b strings.Builder
		fmt.Fprintf(&b, "measurement %s %s", r.MetricName, r.TagString)
		for _, f := range r.Fields {
			fmt.Fprintf(&b, " %s:%d", f.Field, f.TSID)
		}
		b.WriteByte('\n')

		return b.String()
	default:
		return ""
	}
}

// ParseMetaRecord parses one MetaFile line (without its trailing newline).
func ParseMetaRecord(line string) (MetaRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
	}

	switch fields[0] {
	case "metric":
		if len(fields) != 3 {
			return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
		}
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", err)
		}

		return MetaRecord{Kind: MetaRecordMetric, MetricID: uint32(id), MetricName: fields[2]}, nil

	case "ts":
		if len(fields) != 4 {
			return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
		}
		tsID, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", err)
		}

		return MetaRecord{Kind: MetaRecordTimeSeries, MetricName: fields[1], TagString: fields[2], TSID: uint32(tsID)}, nil

	case "measurement":
		if len(fields) < 4 {
			return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
		}
		rec := MetaRecord{Kind: MetaRecordMeasurement, MetricName: fields[1], TagString: fields[2]}
		for _, raw := range fields[3:] {
			name, idStr, ok := strings.Cut(raw, ":")
			if !ok {
				return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
			}
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", err)
			}
			rec.Fields = append(rec.Fields, MetaField{Field: name, TSID: uint32(id)})
		}

		return rec, nil

	default:
		return MetaRecord{}, errs.New(errs.KindCorrupted, "section.ParseMetaRecord", errs.ErrCorrupted)
	}
}
