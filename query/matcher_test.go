package query

import (
	"testing"

	"github.com/relaydb/relaydb/series"
	"github.com/stretchr/testify/require"
)

func tags(pairs ...string) []series.Tag {
	out := make([]series.Tag, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, series.Tag{Key: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func TestTagMatcherExact(t *testing.T) {
	m := TagMatcher{Key: "host", Value: "web01", Kind: MatchExact}
	require.True(t, m.Matches(tags("host", "web01", "dc", "east")))
	require.False(t, m.Matches(tags("host", "web02")))
}

func TestTagMatcherWildcard(t *testing.T) {
	m := TagMatcher{Key: "host", Value: "web*", Kind: MatchWildcard}
	require.True(t, m.Matches(tags("host", "web01")))
	require.True(t, m.Matches(tags("host", "web")))
	require.False(t, m.Matches(tags("host", "db01")))

	m2 := TagMatcher{Key: "host", Value: "*01", Kind: MatchWildcard}
	require.True(t, m2.Matches(tags("host", "web01")))
	require.False(t, m2.Matches(tags("host", "web02")))

	m3 := TagMatcher{Key: "host", Value: "*", Kind: MatchWildcard}
	require.True(t, m3.Matches(tags("host", "anything")))
}

func TestTagMatcherPresentKey(t *testing.T) {
	m := TagMatcher{Key: "dc", Kind: MatchPresentKey}
	require.True(t, m.Matches(tags("dc", "east")))
	require.False(t, m.Matches(tags("host", "web01")))
}

func TestTagMatcherPresentValue(t *testing.T) {
	m := TagMatcher{Value: "east", Kind: MatchPresentValue}
	require.True(t, m.Matches(tags("dc", "east")))
	require.False(t, m.Matches(tags("dc", "west")))
}

func TestMatcherTreeRequiresAllMatchers(t *testing.T) {
	tree := MatcherTree{Matchers: []TagMatcher{
		{Key: "host", Value: "web01", Kind: MatchExact},
		{Key: "dc", Kind: MatchPresentKey},
	}}

	require.True(t, tree.Matches(tags("host", "web01", "dc", "east")))
	require.False(t, tree.Matches(tags("host", "web01")))
}

func TestMatcherTreeExplicitTagsRequiresExactCount(t *testing.T) {
	tree := MatcherTree{
		Matchers:     []TagMatcher{{Key: "host", Value: "web01", Kind: MatchExact}},
		ExplicitTags: true,
	}

	require.True(t, tree.Matches(tags("host", "web01")))
	require.False(t, tree.Matches(tags("host", "web01", "dc", "east")))
}
