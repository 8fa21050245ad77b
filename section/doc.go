// Package section defines the fixed-size, bit-exact on-disk structs a Tsdb
// time window persists: the per-file tsdb_header, the per-page
// page_info_on_disk record, the per-series index_entry, and the MetaFile's
// line-oriented records.
//
// Every struct follows the teacher corpus's Parse/Bytes convention:
// marshaling never relies on Go's in-memory struct layout (which the
// runtime is free to pad or reorder); each type parses and serializes
// itself field-by-field against an explicit little-endian byte slice, so
// the wire format is independent of the host architecture and the Go
// version's struct layout choices.
package section
