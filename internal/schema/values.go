// Package schema provides the closed value model for record inputs and
// metadata mappings in Anno.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind represents the type of a stored value.
// Inputs and metadata are schema-less mappings, but the values they hold are
// restricted to a closed variant set rather than arbitrary dynamic types.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBool    Kind = "bool"
	KindList    Kind = "list"
	KindMapping Kind = "mapping"
)

// IsValid returns true if the kind is a recognized value kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindBool, KindList, KindMapping:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// KindOf infers the Kind from a value as it appears after JSON unmarshaling.
// Returns an error for unsupported types.
func KindOf(v any) (Kind, error) {
	switch v.(type) {
	case string:
		return KindString, nil
	case float64, int, int64, uint, uint64, float32, int32:
		return KindNumber, nil
	case bool:
		return KindBool, nil
	case []any:
		return KindList, nil
	case map[string]any:
		return KindMapping, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Normalize validates a decoded value against the closed variant set and
// returns its canonical representation: numbers become float64, lists and
// mappings are normalized element-wise. Nested depth is bounded to keep
// pathological payloads out of the index.
func Normalize(v any) (any, error) {
	return normalize(v, 0)
}

const maxValueDepth = 8

func normalize(v any, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, ErrValueTooDeep
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case bool:
		return val, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return f, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalize(elem, depth+1)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem, depth+1)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// NormalizeMapping normalizes every value of a schema-less mapping.
// Keys are opaque: a key containing a literal dot stays a single key and is
// never split into a nested path.
func NormalizeMapping(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "" {
			return nil, ErrEmptyKey
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Stringify renders a normalized value as the bucket key used by
// aggregations. Whole numbers drop their fractional part so that a metadata
// value of 1 buckets as "1", matching the stored JSON form.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
