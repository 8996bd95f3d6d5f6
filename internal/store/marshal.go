package store

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/omnistate/internal/ir"
)

// decodeValue converts a scanned column value to an ir value using the
// column's declared type.
//
// JSON columns are parsed with ir.UnmarshalIRValue, which keeps integers
// beyond 2^53 exact.
func decodeValue(declType string, v any) (ir.IRValue, error) {
	declType = strings.ToUpper(declType)
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case bool:
		return ir.IRBool(val), nil
	case int64:
		if ColumnType(declType) == TypeBoolean {
			return ir.IRBool(val != 0), nil
		}
		return ir.IRInt(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-integral number %v", val)
		}
		return ir.IRInt(int64(val)), nil
	case []byte:
		return decodeText(declType, string(val))
	case string:
		return decodeText(declType, val)
	case time.Time:
		return ir.IRString(val.UTC().Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported column value %T", v)
	}
}

func decodeText(declType, s string) (ir.IRValue, error) {
	if ColumnType(declType) != TypeJSON {
		return ir.IRString(s), nil
	}
	v, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return v, nil
}
