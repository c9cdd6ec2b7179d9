package schema

import "errors"

var (
	// ErrUnsupportedValue is returned when a value falls outside the closed
	// variant set (string, number, bool, list, mapping).
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrValueTooDeep is returned when nested lists/mappings exceed the
	// maximum depth.
	ErrValueTooDeep = errors.New("value nesting too deep")

	// ErrEmptyKey is returned for empty mapping keys.
	ErrEmptyKey = errors.New("empty mapping key")
)
