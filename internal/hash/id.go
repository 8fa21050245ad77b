// Package hash provides the id-hashing primitives used to key relaydb's
// in-process registries: xxHash64 for Mapping's canonical-tag-string lookup
// table, and canonical tag string construction per the data model's
// "sorted k=v,k=v" identity rule.
package hash

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ID computes the xxHash64 of data. It is used only as an internal map key
// (for the Mapping's tag-string -> TimeSeries table and for collision
// detection); it is never the on-disk TimeSeriesId, which is a monotonic
// counter assigned by storage.MetaFile.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Tag is a single key/value pair; both key and value are caller-owned UTF-8
// strings bounded by the configured max tag length.
type Tag struct {
	Key   string
	Value string
}

// CanonicalTagString serializes tags sorted lexicographically by key into
// the stable "k1=v1,k2=v2" identity string used as a time series's canonical
// key and hashing input. The input slice is sorted in place; callers that
// need to preserve original ordering should pass a copy.
func CanonicalTagString(tags []Tag) string {
	if len(tags) == 0 {
		return ""
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })

	var b strings.Builder
	for i, t := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}

	return b.String()
}
