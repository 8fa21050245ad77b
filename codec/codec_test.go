package codec

import (
	"testing"

	"github.com/relaydb/relaydb/format"
)

func roundTrip(t *testing.T, enc format.PageEncoding, timestamps []int64, values []float64) {
	t.Helper()

	buf := make([]byte, 4096)
	c, err := New(enc)
	if err != nil {
		t.Fatalf("New(%v): %v", enc, err)
	}
	if err := c.Init(timestamps[0], buf); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i, ts := range timestamps {
		if !c.Compress(ts, values[i]) {
			t.Fatalf("Compress(%d, %v) failed unexpectedly at index %d", ts, values[i], i)
		}
	}

	if c.DataPointCount() != len(timestamps) {
		t.Fatalf("DataPointCount() = %d, want %d", c.DataPointCount(), len(timestamps))
	}
	if c.LastTimestamp() != timestamps[len(timestamps)-1] {
		t.Fatalf("LastTimestamp() = %d, want %d", c.LastTimestamp(), timestamps[len(timestamps)-1])
	}
	if c.IsEmpty() {
		t.Fatal("IsEmpty() = true after compressing points")
	}

	pos := c.Save()

	dec, err := New(enc)
	if err != nil {
		t.Fatalf("New(%v) for decode: %v", enc, err)
	}
	if err := dec.Init(timestamps[0], buf); err != nil {
		t.Fatalf("Init for decode: %v", err)
	}

	var dst DataPointContainer
	if err := dec.Restore(&dst, pos, nil); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if dst.Len() != len(timestamps) {
		t.Fatalf("Restore produced %d points, want %d", dst.Len(), len(timestamps))
	}
	for i := range timestamps {
		if dst.Timestamps[i] != timestamps[i] {
			t.Fatalf("point %d: timestamp = %d, want %d", i, dst.Timestamps[i], timestamps[i])
		}
		if dst.Values[i] != values[i] {
			t.Fatalf("point %d: value = %v, want %v", i, dst.Values[i], values[i])
		}
	}
}

func regularSeries(n int) ([]int64, []float64) {
	ts := make([]int64, n)
	vals := make([]float64, n)
	for i := range ts {
		ts[i] = int64(1_700_000_000_000 + i*1000)
		vals[i] = 42.5
	}

	return ts, vals
}

func jitterySeries(n int) ([]int64, []float64) {
	ts := make([]int64, n)
	vals := make([]float64, n)
	cur := int64(1_700_000_000_000)
	for i := range ts {
		cur += int64(900 + (i%5)*47)
		ts[i] = cur
		vals[i] = 10.0 + float64(i%7)*0.25
	}

	return ts, vals
}

func integerSeries(n int) ([]int64, []float64) {
	ts := make([]int64, n)
	vals := make([]float64, n)
	for i := range ts {
		ts[i] = int64(1_700_000_000_000 + i*1000)
		vals[i] = float64(100 + i)
	}

	return ts, vals
}

func TestRawCodecRoundTrip(t *testing.T) {
	ts, vals := jitterySeries(20)
	roundTrip(t, format.V0Raw, ts, vals)
}

func TestDeltaXORCodecRoundTrip(t *testing.T) {
	ts, vals := regularSeries(50)
	roundTrip(t, format.V1DeltaXOR, ts, vals)

	ts, vals = jitterySeries(50)
	roundTrip(t, format.V1DeltaXOR, ts, vals)
}

func TestGorillaCodecRoundTrip(t *testing.T) {
	ts, vals := regularSeries(200)
	roundTrip(t, format.V2Gorilla, ts, vals)

	ts, vals = jitterySeries(200)
	roundTrip(t, format.V2Gorilla, ts, vals)
}

func TestGorillaIntCodecRoundTrip(t *testing.T) {
	ts, vals := integerSeries(200)
	roundTrip(t, format.V3GorillaInt, ts, vals)

	// mixed integer and fractional values exercise both branches.
	ts, vals = jitterySeries(100)
	roundTrip(t, format.V3GorillaInt, ts, vals)
}

func TestRawCodecSinglePoint(t *testing.T) {
	roundTrip(t, format.V0Raw, []int64{1_700_000_000_000}, []float64{3.14})
}

func TestGorillaCodecSinglePoint(t *testing.T) {
	roundTrip(t, format.V2Gorilla, []int64{1_700_000_000_000}, []float64{3.14})
}

func TestCodecFullPageStopsCleanly(t *testing.T) {
	buf := make([]byte, 64)
	c, err := New(format.V2Gorilla)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(0, buf); err != nil {
		t.Fatal(err)
	}

	ts, vals := jitterySeries(1000)
	written := 0
	for i := range ts {
		if !c.Compress(ts[i], vals[i]) {
			break
		}
		written++
	}

	if written == 0 {
		t.Fatal("expected at least one point to fit in a 64-byte page")
	}
	if written == len(ts) {
		t.Fatal("expected the page to fill before all 1000 points were written")
	}

	pos := c.Save()
	dec, _ := New(format.V2Gorilla)
	_ = dec.Init(0, buf)
	var dst DataPointContainer
	if err := dec.Restore(&dst, pos, nil); err != nil {
		t.Fatalf("Restore after partial fill: %v", err)
	}
	if dst.Len() != written {
		t.Fatalf("Restore produced %d points, want %d written before page filled", dst.Len(), written)
	}
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	if _, err := New(format.PageEncoding(99)); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
