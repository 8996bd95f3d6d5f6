package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// This is the ONLY serialization used for resolution cache keys: two option
// sets that differ only in map iteration order must produce identical bytes.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. No floats, no null
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case IRString:
		return marshalCanonicalString(string(val))
	case string:
		return marshalCanonicalString(val)
	case IRInt:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case IRBool:
		return marshalCanonicalBool(bool(val)), nil
	case bool:
		return marshalCanonicalBool(val), nil
	case IRArray:
		return marshalCanonicalArray(val)
	case IRObject:
		return marshalCanonicalObject(val)
	case []any, map[string]any:
		irVal, err := FromAny(val)
		if err != nil {
			return nil, err
		}
		return MarshalCanonical(irVal)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalBool(b bool) []byte {
	if b {
		return []byte("true")
	}
	return []byte("false")
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. Only control characters, backslash and quote are escaped;
// U+2028 and U+2029 stay literal.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if !strings.ContainsAny(normalized, "\u2028\u2029") {
		return result, nil
	}
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators rewrites the \u2028 and \u2029 escapes that
// encoding/json emits back into literal characters, leaving an escaped
// backslash followed by "u2028" untouched.
func unescapeLineSeparators(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}
		if i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++
			continue
		}
		if i+5 < len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(arr IRArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj IRObject) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
