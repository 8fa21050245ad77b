package section

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaRecordMetricRoundTrip(t *testing.T) {
	r := MetaRecord{Kind: MetaRecordMetric, MetricID: 7, MetricName: "cpu.load"}
	line := strings.TrimSuffix(r.Encode(), "\n")

	got, err := ParseMetaRecord(line)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestMetaRecordTimeSeriesRoundTrip(t *testing.T) {
	r := MetaRecord{Kind: MetaRecordTimeSeries, MetricName: "cpu.load", TagString: "host=a,region=us", TSID: 42}
	line := strings.TrimSuffix(r.Encode(), "\n")

	got, err := ParseMetaRecord(line)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestMetaRecordMeasurementRoundTrip(t *testing.T) {
	r := MetaRecord{
		Kind:       MetaRecordMeasurement,
		MetricName: "cpu.load",
		TagString:  "host=a,region=us",
		Fields: []MetaField{
			{Field: "avg", TSID: 1},
			{Field: "max", TSID: 2},
		},
	}
	line := strings.TrimSuffix(r.Encode(), "\n")
	require.Equal(t, "measurement cpu.load host=a,region=us avg:1 max:2", line)

	got, err := ParseMetaRecord(line)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestParseMetaRecordRejectsMalformedLines(t *testing.T) {
	cases := []string{
		"",
		"metric",
		"metric notanumber name",
		"ts onlyonefield",
		"measurement metric tags fieldwithoutcolon",
		"bogus 1 2",
	}

	for _, line := range cases {
		_, err := ParseMetaRecord(line)
		require.Error(t, err, "line %q", line)
	}
}
