package search

import (
	"fmt"
	"strings"

	"github.com/annosearch/anno/internal/backend"
)

// SortSpec is one requested sort step. Order is "asc" or "desc"; empty
// means ascending.
type SortSpec struct {
	ID    string `json:"id"`
	Order string `json:"order,omitempty"`
}

// sortableFields is the closed set of non-metadata sort ids, in the order
// the rejection message lists them.
var sortableFields = []string{
	"id", "metadata", "score", "predicted", "predicted_as", "predicted_by",
	"annotated_as", "annotated_by", "status", "last_updated", "event_timestamp",
}

var sortableSet = func() map[string]bool {
	set := make(map[string]bool, len(sortableFields))
	for _, f := range sortableFields {
		set[f] = true
	}
	return set
}()

func wrongSortID(id string) error {
	quoted := make([]string, len(sortableFields))
	for i, f := range sortableFields {
		quoted[i] = "'" + f + "'"
	}
	return &BadRequestError{
		Message: fmt.Sprintf("Wrong sort id %s. Valid values are: [%s]", id, strings.Join(quoted, ", ")),
	}
}

// translateSort validates the sort spec against the allow-list. A
// `metadata.<key>` id addresses one metadata key; every other id must be on
// the list. The default sort, and the implicit tie-break everywhere, is id
// ascending.
func translateSort(specs []SortSpec) ([]backend.SortField, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]backend.SortField, 0, len(specs))
	for _, spec := range specs {
		if !sortableSet[spec.ID] && !strings.HasPrefix(spec.ID, "metadata.") {
			return nil, wrongSortID(spec.ID)
		}
		switch spec.Order {
		case "", "asc", "desc":
		default:
			return nil, &BadRequestError{Message: fmt.Sprintf("Wrong sort order %s. Valid values are: ['asc', 'desc']", spec.Order)}
		}
		out = append(out, backend.SortField{
			Field: spec.ID,
			Desc:  spec.Order == "desc",
		})
	}
	return out, nil
}
