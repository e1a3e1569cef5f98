package tabular

import (
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is how time values are rendered in delimited output.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatValue renders a database or file value as delimited-text cell content.
// nil and nil pointers become empty cells.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(TimestampLayout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(TimestampLayout)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// FormatRow renders vals into dst, reusing its capacity.
func FormatRow(dst []string, vals []any) []string {
	dst = dst[:0]
	for _, v := range vals {
		dst = append(dst, FormatValue(v))
	}
	return dst
}
