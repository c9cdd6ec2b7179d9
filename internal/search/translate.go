package search

import (
	"fmt"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/record"
)

// VectorParam selects a named record vector and a query value for
// similarity ordering.
type VectorParam struct {
	Name  string    `json:"name"`
	Value []float32 `json:"value"`
}

// Query is the filter half of a search request.
type Query struct {
	Text        string                   `json:"query_text,omitempty"`
	PredictedBy []string                 `json:"predicted_by,omitempty"`
	AnnotatedBy []string                 `json:"annotated_by,omitempty"`
	Status      []record.TaskStatus      `json:"status,omitempty"`
	Predicted   []record.PredictedStatus `json:"predicted,omitempty"`
	Metadata    map[string][]string      `json:"metadata,omitempty"`
	Vector      *VectorParam             `json:"vector,omitempty"`
}

// Request is a full search request: filters plus sort.
type Request struct {
	Query Query      `json:"query"`
	Sort  []SortSpec `json:"sort,omitempty"`
}

// Translate validates a search request and lowers it into a backend plan.
// Pagination is attached by the engine, not here.
func Translate(req *Request, caps backend.Capabilities) (*backend.Plan, error) {
	text, err := parseTextQuery(req.Query.Text)
	if err != nil {
		return nil, err
	}

	sort, err := translateSort(req.Sort)
	if err != nil {
		return nil, err
	}

	for _, s := range req.Query.Status {
		if !s.IsValid() {
			return nil, &BadRequestError{Message: fmt.Sprintf("Wrong status value %s", s)}
		}
	}
	for _, p := range req.Query.Predicted {
		if p != record.PredictedOK && p != record.PredictedKO {
			return nil, &BadRequestError{Message: fmt.Sprintf("Wrong predicted value %s", p)}
		}
	}

	plan := &backend.Plan{
		Text: text,
		Filters: backend.Filters{
			PredictedBy: req.Query.PredictedBy,
			AnnotatedBy: req.Query.AnnotatedBy,
			Status:      req.Query.Status,
			Predicted:   req.Query.Predicted,
			Metadata:    req.Query.Metadata,
		},
		Sort: sort,
	}

	if req.Query.Vector != nil {
		if !caps.VectorSearch {
			return nil, &BadRequestError{Message: "Vector search is not supported by the configured backend"}
		}
		if req.Query.Vector.Name == "" || len(req.Query.Vector.Value) == 0 {
			return nil, &BadRequestError{Message: "Vector query requires a name and a non-empty value"}
		}
		plan.Vector = &backend.VectorQuery{
			Name:  req.Query.Vector.Name,
			Value: req.Query.Vector.Value,
		}
	}

	return plan, nil
}
