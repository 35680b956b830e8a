package dbmanager

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// sqliteTimeFormat is how the driver writes time values back as text.
const sqliteTimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// Stringify renders one cell the way guests receive it: NULL as "null",
// integers in decimal, floats in their shortest form, and blobs as text
// when they are valid UTF-8, hex otherwise.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case string:
		return val
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return hex.EncodeToString(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(sqliteTimeFormat)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
