package clickhouse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/chflat/internal/schema"
)

// typecast converts a file cell to the Go value the driver expects for the
// column. Empty cells in nullable columns become NULL.
func typecast(v string, col schema.Column) (any, error) {
	if col.Type == schema.TypeText {
		return v, nil
	}

	v = strings.TrimSpace(v)
	if v == "" {
		if col.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("column %s: empty value in non-nullable %s column", col.Name, col.Type)
	}

	var (
		out any
		err error
	)
	switch col.Type {
	case schema.TypeInt64:
		out, err = strconv.ParseInt(v, 10, 64)
	case schema.TypeInt32:
		var n int64
		n, err = strconv.ParseInt(v, 10, 32)
		out = int32(n)
	case schema.TypeFloat64:
		out, err = strconv.ParseFloat(v, 64)
	case schema.TypeFloat32:
		var f float64
		f, err = strconv.ParseFloat(v, 32)
		out = float32(f)
	case schema.TypeBool:
		switch strings.ToLower(v) {
		case "true", "1":
			out = uint8(1)
		case "false", "0":
			out = uint8(0)
		default:
			err = strconv.ErrSyntax
		}
	case schema.TypeTimestamp:
		out, err = schema.ParseTimestamp(v)
	default:
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("column %s: cannot use %q as %s: %w", col.Name, v, col.Type, err)
	}
	return out, nil
}

func typecastRow(row []string, sc schema.Schema) ([]any, error) {
	if len(row) != len(sc) {
		return nil, fmt.Errorf("row has %d values, schema has %d columns", len(row), len(sc))
	}
	vals := make([]any, len(row))
	for i, v := range row {
		cv, err := typecast(v, sc[i])
		if err != nil {
			return nil, err
		}
		vals[i] = cv
	}
	return vals, nil
}
