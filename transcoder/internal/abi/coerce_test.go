package abi

import (
	"math"
	"testing"
)

func TestCoerceToUint32(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   uint32
		wantOK bool
	}{
		{"uint32", uint32(7), 7, true},
		{"int", 42, 42, true},
		{"int64 from driver", int64(3), 3, true},
		{"json float", float64(12), 12, true},
		{"fractional float", 1.5, 0, false},
		{"negative", -1, 0, false},
		{"too large", int64(math.MaxUint32) + 1, 0, false},
		{"string", "1", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceToUint32(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceToUint32(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCoerceToInt32(t *testing.T) {
	if got, ok := CoerceToInt32(-5); !ok || got != -5 {
		t.Errorf("CoerceToInt32(-5) = %d, %v", got, ok)
	}
	if _, ok := CoerceToInt32(int64(math.MaxInt32) + 1); ok {
		t.Error("expected overflow")
	}
}

func TestCoerceToUint64(t *testing.T) {
	if got, ok := CoerceToUint64(uint64(math.MaxUint64)); !ok || got != math.MaxUint64 {
		t.Errorf("CoerceToUint64(max) = %d, %v", got, ok)
	}
	if _, ok := CoerceToUint64(-1); ok {
		t.Error("expected negative to fail")
	}
}

func TestCoerceNarrow(t *testing.T) {
	if got, ok := CoerceToUint8(255); !ok || got != 255 {
		t.Errorf("CoerceToUint8(255) = %d, %v", got, ok)
	}
	if _, ok := CoerceToUint8(256); ok {
		t.Error("expected u8 overflow")
	}
	if got, ok := CoerceToUint16(float64(65535)); !ok || got != 65535 {
		t.Errorf("CoerceToUint16(65535) = %d, %v", got, ok)
	}
	if _, ok := CoerceToUint16(65536); ok {
		t.Error("expected u16 overflow")
	}
}
