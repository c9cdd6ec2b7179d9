package search

import "fmt"

// BadRequestError rejects a structurally invalid search request, such as a
// sort id outside the allow-list.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// InvalidTextSearchError rejects a free-text query that cannot be parsed
// into any match clause.
type InvalidTextSearchError struct {
	Query string
}

func (e *InvalidTextSearchError) Error() string {
	return fmt.Sprintf("Failed to parse query [%s]", e.Query)
}
