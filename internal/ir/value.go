package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRBool, IRArray, and IRObject implement this.
// There is no float variant: rows and query options must hash to the same
// cache key on every machine.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value. Rows read from a backend may carry
// NULL columns; query options and cache keys reject it.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair.
// Example: NewIRObjectFromPairs(O("id", IRString("4")), O("status", IRString("todo")))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Clone returns a deep copy of the object.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

// Clone returns a deep copy of v. Scalars are returned as-is.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		return val.Clone()
	default:
		return v
	}
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
// Go's native string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Equal reports whether two values are structurally equal.
// IRInt(1) and IRString("1") are NOT equal.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two scalar values for sorting.
// Nulls sort first, then bools, ints, and strings; values of the same kind
// compare naturally. Composite values compare by canonical encoding.
func Compare(a, b IRValue) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case IRBool:
		bv := b.(IRBool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case IRInt:
		bv := b.(IRInt)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case IRString:
		return strings.Compare(string(av), string(b.(IRString)))
	case IRArray, IRObject:
		ca, _ := MarshalCanonical(a)
		cb, _ := MarshalCanonical(b)
		return bytes.Compare(ca, cb)
	default:
		return 0
	}
}

func rank(v IRValue) int {
	switch v.(type) {
	case nil, IRNull:
		return 0
	case IRBool:
		return 1
	case IRInt:
		return 2
	case IRString:
		return 3
	case IRArray:
		return 4
	default:
		return 5
	}
}

// FromAny converts a plain Go value into an IRValue.
// Accepts the IR types themselves, string, bool, the integer kinds, nil,
// []any and map[string]any. Floats are rejected unless they hold an integral
// value (JSON decoders and SQLite drivers produce those for whole numbers).
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case []byte:
		return IRString(string(val)), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not supported: %v", val)
		}
		return IRInt(int64(val)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", val)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts an IRValue into plain Go values (string, int64, bool, nil,
// []any, map[string]any). Used at driver and encoder boundaries.
func ToAny(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected JSON array, got %T", v)
	}
	*arr = a
	return nil
}

// UnmarshalIRValue decodes JSON into an IRValue. Null decodes to IRNull;
// non-integral numbers are rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// This is NOT canonical marshaling; use MarshalCanonical for cache keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}
