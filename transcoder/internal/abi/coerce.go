package abi

import "math"

// Dynamic values arrive from JSON (float64), database drivers (int64) and
// hand-written Go literals (int). Every integer target goes through the
// same widening step before its range check.

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func CoerceToUint32(value any) (uint32, bool) {
	n, ok := toInt(value)
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func CoerceToInt32(value any) (int32, bool) {
	n, ok := toInt(value)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

func CoerceToUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	}
	n, ok := toInt(value)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func CoerceToInt64(value any) (int64, bool) {
	return toInt(value)
}

// CoerceToUint8 and CoerceToUint16 back the narrow record fields.
func CoerceToUint8(value any) (uint8, bool) {
	n, ok := toInt(value)
	if !ok || n < 0 || n > math.MaxUint8 {
		return 0, false
	}
	return uint8(n), true
}

func CoerceToUint16(value any) (uint16, bool) {
	n, ok := toInt(value)
	if !ok || n < 0 || n > math.MaxUint16 {
		return 0, false
	}
	return uint16(n), true
}
