// Package document provides record identity types and validation for Anno.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxStringIDBytes is the maximum size for string record IDs.
const MaxStringIDBytes = 256

// IDType represents the type of a record ID.
type IDType int

// IDTypeUnset is the zero IDType. It marks the absent ID, so an integer
// ID of 0 stays distinct from "no ID at all".
const (
	IDTypeUnset IDType = iota
	IDTypeU64
	IDTypeString
)

func (t IDType) String() string {
	switch t {
	case IDTypeUnset:
		return "unset"
	case IDTypeU64:
		return "u64"
	case IDTypeString:
		return "string"
	default:
		return "unknown"
	}
}

// ID is a normalized record ID. Records are keyed by either an unsigned
// integer or a string, unique within a dataset.
type ID struct {
	typ IDType
	u64 uint64
	str string
}

// Type returns the type of this ID.
func (id ID) Type() IDType {
	return id.typ
}

// U64 returns the integer value if this is a u64 ID, or 0 otherwise.
func (id ID) U64() uint64 {
	return id.u64
}

// String returns the canonical string form of the ID. Integer IDs render in
// base 10. The canonical form is also the backend document key, so ordering
// over canonical strings is the engine's collation order.
func (id ID) String() string {
	if id.typ == IDTypeU64 {
		return strconv.FormatUint(id.u64, 10)
	}
	return id.str
}

// NewU64ID creates an ID from a uint64 value.
func NewU64ID(v uint64) ID {
	return ID{typ: IDTypeU64, u64: v}
}

// NewStringID creates an ID from a string value.
// Returns an error if the string is empty or exceeds MaxStringIDBytes.
func NewStringID(v string) (ID, error) {
	if v == "" {
		return ID{}, &ValidationError{Field: "id", Message: "empty ID is not allowed"}
	}
	if len(v) > MaxStringIDBytes {
		return ID{}, &ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("string ID exceeds maximum length of %d bytes (got %d bytes)", MaxStringIDBytes, len(v)),
		}
	}
	return ID{typ: IDTypeString, str: v}, nil
}

// ValidationError represents a validation error with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseID parses and normalizes a record ID from any supported input type.
// Supported input types:
//   - uint64, int64, int, uint: parsed as u64
//   - float64 and json.Number: accepted when they represent a whole
//     non-negative number (JSON numbers decode as float64)
//   - string: treated as a string ID
//
// Returns an error for negative numbers, empty or oversized strings, and
// unsupported input types.
func ParseID(v any) (ID, error) {
	switch val := v.(type) {
	case uint64:
		return NewU64ID(val), nil

	case int64:
		if val < 0 {
			return ID{}, &ValidationError{Field: "id", Message: "negative integer IDs are not allowed"}
		}
		return NewU64ID(uint64(val)), nil

	case int:
		if val < 0 {
			return ID{}, &ValidationError{Field: "id", Message: "negative integer IDs are not allowed"}
		}
		return NewU64ID(uint64(val)), nil

	case uint:
		return NewU64ID(uint64(val)), nil

	case float64:
		maxUint64 := float64(^uint64(0))
		if val < 0 || val > maxUint64 || val != float64(uint64(val)) {
			return ID{}, &ValidationError{Field: "id", Message: "numeric ID must be a non-negative integer"}
		}
		return NewU64ID(uint64(val)), nil

	case json.Number:
		u, err := strconv.ParseUint(val.String(), 10, 64)
		if err != nil {
			return ID{}, &ValidationError{Field: "id", Message: fmt.Sprintf("invalid numeric ID: %v", err)}
		}
		return NewU64ID(u), nil

	case string:
		return NewStringID(val)

	case nil:
		return ID{}, &ValidationError{Field: "id", Message: "missing record ID"}

	default:
		return ID{}, &ValidationError{Field: "id", Message: fmt.Sprintf("unsupported ID type: %T", v)}
	}
}

// IsZero reports whether the ID is the zero value. ParseID never returns a
// zero ID: integer zero parses as a u64 ID with canonical form "0".
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalJSON implements json.Marshaler for ID.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.typ == IDTypeU64 {
		return json.Marshal(id.u64)
	}
	return json.Marshal(id.str)
}

// UnmarshalJSON implements json.Unmarshaler for ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Equal returns true if two IDs refer to the same record key.
func (id ID) Equal(other ID) bool {
	return id.typ == other.typ && id.u64 == other.u64 && id.str == other.str
}

// Compare orders two IDs by their canonical string form.
// Returns -1 if id < other, 0 if equal, 1 if id > other.
//
// Lexicographic ordering over the canonical form is deliberate: it matches
// the collation of document keys in the backing store, so integer IDs sort
// as 0, 1, 10, 11, ..., 2, 20, ... rather than numerically.
func (id ID) Compare(other ID) int {
	a, b := id.String(), other.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	if id.typ != other.typ {
		if id.typ < other.typ {
			return -1
		}
		return 1
	}
	return 0
}
