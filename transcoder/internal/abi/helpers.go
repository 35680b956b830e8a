package abi

import (
	"math"
	"reflect"
)

// Limits applied to guest-supplied lengths before any memory is touched.
const (
	MaxStringSize = 1 << 30
	MaxListLength = 1 << 27
	MaxAlloc      = 1 << 30
)

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// DiscriminantSize is the byte width of a tag selecting one of n cases.
func DiscriminantSize(n int) uint32 {
	switch {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	default:
		return 4
	}
}

// InRange reports whether [ptr, ptr+length) fits inside a memory of size bytes.
func InRange(ptr, length, size uint32) bool {
	end, ok := SafeAddU32(ptr, length)
	return ok && end <= size
}
