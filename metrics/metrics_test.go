package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAppendCountsErrorsSeparately(t *testing.T) {
	before := testutil.ToFloat64(appendErrorsTotal)

	ObserveAppend(time.Millisecond, nil)
	require.Equal(t, before, testutil.ToFloat64(appendErrorsTotal))

	ObserveAppend(time.Millisecond, errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(appendErrorsTotal))
}

func TestObserveSchedulerTaskLabelsByName(t *testing.T) {
	ObserveSchedulerTask("flush", time.Millisecond, nil)
	ObserveSchedulerTask("flush", time.Millisecond, errors.New("boom"))

	require.Equal(t, float64(1), testutil.ToFloat64(schedulerTaskErrorsTotal.WithLabelValues("flush")))
}

func TestSetOpenWindowsReportsGaugeValue(t *testing.T) {
	SetOpenWindows(3)
	require.Equal(t, float64(3), testutil.ToFloat64(openWindows))
}
