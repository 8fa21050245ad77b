// Package storage implements the on-disk file layout a relaydb data
// directory uses: per-metric HeaderFile/DataFile pairs, the per-Tsdb
// IndexFile, and the append-only MetaFile that rebuilds the in-memory
// metric/series registry at startup.
package storage

// MetricID identifies a metric name, assigned the first time MetaFile
// records it and stable for the life of the data directory.
type MetricID uint32

// TimeSeriesID identifies one canonical-tag-string series within a metric,
// assigned by MetaFile in strictly increasing order and never reused.
type TimeSeriesID uint32

// FileIndex identifies a (HeaderFile, DataFile) pair within a metric
// directory by its 5-digit zero-padded suffix.
type FileIndex uint16

// HeaderIndex identifies a page_info_on_disk slot within a HeaderFile.
type HeaderIndex uint16
