package wire

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestDecodeVarInt_Known(t *testing.T) {
	tests := []struct {
		name  string
		buf   []byte
		value uint64
		n     int
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"one byte max", []byte{0x7F}, 127, 1},
		{"two bytes", []byte{0xAC, 0x02}, 300, 2},
		{"128", []byte{0x80, 0x01}, 128, 2},
		{"trailing bytes ignored", []byte{0x05, 0xFF, 0xFF}, 5, 1},
		{"max uint32", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, math.MaxUint32, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := DecodeVarInt(tt.buf, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != tt.value || n != tt.n {
				t.Errorf("expected (%d, %d), got (%d, %d)", tt.value, tt.n, v, n)
			}
		})
	}
}

func TestDecodeVarInt_AtOffset(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xAC, 0x02}
	v, n, err := DecodeVarInt(buf, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 300 || n != 2 {
		t.Errorf("expected (300, 2), got (%d, %d)", v, n)
	}
}

func TestDecodeVarInt_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := []uint64{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435455, 268435456, 1<<31 - 1}
	for i := 0; i < 5000; i++ {
		values = append(values, uint64(rng.Int31()))
	}

	for _, v := range values {
		buf := AppendVarInt(nil, v)
		got, n, err := DecodeVarInt(buf, 0)
		if err != nil {
			t.Fatalf("value %d: unexpected error: %v", v, err)
		}
		if got != v {
			t.Fatalf("value %d: decoded %d", v, got)
		}
		if n != len(buf) || n != VarIntLen(v) {
			t.Fatalf("value %d: consumed %d, encoded %d bytes, expected %d groups", v, n, len(buf), VarIntLen(v))
		}
	}
}

func TestDecodeVarInt_Truncated(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
	}{
		{"empty", nil, 0},
		{"offset at end", []byte{0x01}, 1},
		{"offset past end", []byte{0x01}, 5},
		{"negative offset", []byte{0x01}, -1},
		{"continuation without end", []byte{0x80}, 0},
		{"four continuation bytes", []byte{0x80, 0x80, 0x80, 0x80}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := DecodeVarInt(tt.buf, tt.offset)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("expected ErrTruncated, got %v", err)
			}
			if v != 0 || n != 0 {
				t.Errorf("expected nothing consumed, got (%d, %d)", v, n)
			}
		})
	}
}

func TestDecodeVarInt_Overlong(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	v, n, err := DecodeVarInt(buf, 0)
	if !errors.Is(err, ErrOverlong) {
		t.Fatalf("expected ErrOverlong, got %v", err)
	}
	if v != 0 || n != 0 {
		t.Errorf("expected nothing consumed, got (%d, %d)", v, n)
	}
}

func TestDecodeFloat32_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := []float32{0, 1.5, -2.5, math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32}
	values = append(values, math.Float32frombits(0x80000000)) // negative zero
	for len(values) < 5000 {
		f := math.Float32frombits(rng.Uint32())
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			continue
		}
		values = append(values, f)
	}

	for _, f := range values {
		buf := AppendFloat32(nil, f)
		got, n, err := DecodeFloat32(buf, 0)
		if err != nil {
			t.Fatalf("value %v: unexpected error: %v", f, err)
		}
		if n != Float32Size {
			t.Fatalf("value %v: consumed %d bytes", f, n)
		}
		if math.Float32bits(got) != math.Float32bits(f) {
			t.Fatalf("value %v: decoded %v (bits %08x vs %08x)", f, got, math.Float32bits(got), math.Float32bits(f))
		}
	}
}

func TestDecodeFloat32_LittleEndian(t *testing.T) {
	// 1.5 = 0x3FC00000
	buf := []byte{0x00, 0x00, 0xC0, 0x3F}
	got, _, err := DecodeFloat32(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}

func TestDecodeFloat32_Truncated(t *testing.T) {
	bufs := [][]byte{nil, {0x00}, {0x00, 0x00, 0x00}}
	for _, buf := range bufs {
		v, n, err := DecodeFloat32(buf, 0)
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("len %d: expected ErrTruncated, got %v", len(buf), err)
		}
		if v != 0 || n != 0 {
			t.Errorf("len %d: expected nothing consumed, got (%v, %d)", len(buf), v, n)
		}
	}

	if _, _, err := DecodeFloat32([]byte{1, 2, 3, 4, 5}, 2); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated with 3 bytes remaining, got %v", err)
	}
}

func TestReader_AdvancesAndReportsField(t *testing.T) {
	buf := AppendFloat32(nil, 3.0)
	buf = AppendVarInt(buf, 300)
	buf = append(buf, 0x00, 0x00) // short float

	r := NewReader(buf)
	if f, err := r.Float32("x"); err != nil || f != 3.0 {
		t.Fatalf("expected 3.0, got %v (%v)", f, err)
	}
	if v, err := r.VarInt("id"); err != nil || v != 300 {
		t.Fatalf("expected 300, got %d (%v)", v, err)
	}
	if r.Offset() != 6 {
		t.Errorf("expected offset 6, got %d", r.Offset())
	}

	_, err := r.Float32("z")
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fe.Field != "z" || fe.Offset != 6 || !errors.Is(err, ErrTruncated) {
		t.Errorf("unexpected field error: %+v", fe)
	}
	if r.Offset() != 6 {
		t.Errorf("cursor moved on error: %d", r.Offset())
	}
}
