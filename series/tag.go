// Package series holds the in-memory time series registry: per-metric
// Mappings of canonical tag string to TimeSeries/Measurement, each
// TimeSeries's primary and out-of-order in-memory pages, and the metric
// name registry MetaFile replay rebuilds at startup.
package series

import "github.com/relaydb/relaydb/internal/hash"

// Tag is a single key/value pair identifying one dimension of a time
// series.
type Tag = hash.Tag

// CanonicalTagString serializes tags into the stable "k1=v1,k2=v2" form
// used as a TimeSeries's Mapping key and hash input.
func CanonicalTagString(tags []Tag) string {
	return hash.CanonicalTagString(tags)
}
