package bitio

import "testing"

func TestWriteReadBits(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)

	if !w.WriteBits(0b101, 3) {
		t.Fatal("WriteBits failed unexpectedly")
	}
	if !w.WriteBits(0xFF, 8) {
		t.Fatal("WriteBits failed unexpectedly")
	}
	if !w.WriteBit(true) {
		t.Fatal("WriteBit failed unexpectedly")
	}

	r := NewReader(buf)
	v, ok := r.ReadBits(3)
	if !ok || v != 0b101 {
		t.Fatalf("ReadBits(3) = %v,%v want 0b101,true", v, ok)
	}
	v, ok = r.ReadBits(8)
	if !ok || v != 0xFF {
		t.Fatalf("ReadBits(8) = %v,%v want 0xFF,true", v, ok)
	}
	bit, ok := r.ReadBit()
	if !ok || !bit {
		t.Fatalf("ReadBit() = %v,%v want true,true", bit, ok)
	}
}

func TestResumeAcrossCalls(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	w.WriteBits(0b11, 2)
	pos := w.Position()

	w2 := Resume(buf, pos)
	w2.WriteBits(0b01, 2)

	r := NewReader(buf)
	v, _ := r.ReadBits(4)
	if v != 0b1101 {
		t.Fatalf("v = %b, want 1101", v)
	}
}

func TestWriterExhausted(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	if !w.WriteBits(0xFF, 8) {
		t.Fatal("expected first 8 bits to fit")
	}
	if w.WriteBit(true) {
		t.Fatal("expected write to fail once buffer is exhausted")
	}
}

func TestCapAndBitLen(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	if w.Cap() != 16 {
		t.Fatalf("Cap() = %d, want 16", w.Cap())
	}
	w.WriteBits(0, 5)
	if w.BitLen() != 5 {
		t.Fatalf("BitLen() = %d, want 5", w.BitLen())
	}
	if w.Cap() != 11 {
		t.Fatalf("Cap() = %d, want 11", w.Cap())
	}
}
