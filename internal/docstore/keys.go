package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Index keys are strings whose byte order matches the natural order of the
// indexed values: booleans sort before numbers, numbers before strings, and
// numbers compare numerically.
const (
	boolPrefix   = "b:"
	numberPrefix = "n:"
	stringPrefix = "s:"
)

// EncodeKey converts a field value into its index key. The second result is
// false for values that are not indexed (null, objects and arrays).
func EncodeKey(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		if val {
			return boolPrefix + "1", true
		}
		return boolPrefix + "0", true
	case string:
		return stringPrefix + val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return "", false
		}
		return encodeFloat(f), true
	case float64:
		return encodeFloat(val), true
	case float32:
		return encodeFloat(float64(val)), true
	case int:
		return encodeFloat(float64(val)), true
	case int32:
		return encodeFloat(float64(val)), true
	case int64:
		return encodeFloat(float64(val)), true
	case uint:
		return encodeFloat(float64(val)), true
	case uint32:
		return encodeFloat(float64(val)), true
	case uint64:
		return encodeFloat(float64(val)), true
	default:
		return "", false
	}
}

func encodeFloat(f float64) string {
	if f == 0 {
		// -0 and +0 share a key.
		f = 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	return fmt.Sprintf("%s%016x", numberPrefix, bits)
}

// indexEntries extracts the index keys of body for every index of spec.
func indexEntries(spec CollectionSpec, body []byte) ([]IndexEntry, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(spec.Indexes))
	for _, idx := range spec.Indexes {
		raw, ok := fields[idx.Field]
		if !ok {
			continue
		}
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", spec.Name, idx.Field, err)
		}
		key, ok := EncodeKey(value)
		if !ok {
			continue
		}
		entries = append(entries, IndexEntry{Index: idx.Name, Key: key, Unique: idx.Unique})
	}
	return entries, nil
}

func decodeFields(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode document: not a JSON object")
	}
	return fields, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
