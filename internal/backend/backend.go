// Package backend defines the document-oriented store contract the engine
// runs against: upsert-by-id with partial merge, filtered/sorted/paginated
// search, and an optional vector-similarity capability.
package backend

import (
	"context"
	"errors"

	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/record"
)

var (
	// ErrUnavailable signals that the backing store cannot be reached.
	// Callers own the retry policy; the engine never retries internally.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrRecordNotFound is returned by Get for an unknown record id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDatasetNotFound is returned when the dataset has no collection.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// Capabilities describes optional backend features. The engine probes them
// once at startup and caches the result for the process lifetime.
type Capabilities struct {
	VectorSearch bool
}

// SortField is one step of a sort spec, already validated by the query
// translator.
type SortField struct {
	Field string
	Desc  bool
}

// TextClause is a single analyzed match constraint. An empty Field matches
// the token against every input field; Exact requires a case- and
// token-exact match against the unanalyzed stream.
type TextClause struct {
	Field string
	Exact bool
	Term  string
}

// Filters are the structured constraints of a search. Values within one
// field are OR-ed, fields are AND-ed together.
type Filters struct {
	PredictedBy []string
	AnnotatedBy []string
	Status      []record.TaskStatus
	Predicted   []record.PredictedStatus
	Metadata    map[string][]string
}

// IsZero reports whether no structured filter is set.
func (f Filters) IsZero() bool {
	return len(f.PredictedBy) == 0 && len(f.AnnotatedBy) == 0 &&
		len(f.Status) == 0 && len(f.Predicted) == 0 && len(f.Metadata) == 0
}

// VectorQuery reorders results by ascending distance to the given vector.
type VectorQuery struct {
	Name  string
	Value []float32
}

// Plan is a translated search request, ready for backend execution.
type Plan struct {
	Text    []TextClause
	Filters Filters
	Vector  *VectorQuery
	Sort    []SortField
	From    int
	Limit   int
}

// Result is one page of matches plus the total filtered count.
type Result struct {
	Total   int
	Records []*record.Record
}

// Store is the document backend the engine talks to. Implementations must
// make Upsert atomic per (dataset, id): concurrent merges to the same id
// may not interleave field writes.
type Store interface {
	// Upsert merges a partial record into the stored document for
	// (dataset, patch.ID), creating it if absent, and stamps LastUpdated.
	// Returns the stored record after the merge.
	Upsert(ctx context.Context, dataset string, patch *record.Record) (*record.Record, error)

	// Get returns the stored record or ErrRecordNotFound.
	Get(ctx context.Context, dataset string, id document.ID) (*record.Record, error)

	// Search executes a translated plan and returns one page plus the
	// total filtered count.
	Search(ctx context.Context, dataset string, plan *Plan) (*Result, error)

	// Scan returns the full filtered set (no pagination), in no
	// particular order. Used by the aggregation engine.
	Scan(ctx context.Context, dataset string, plan *Plan) ([]*record.Record, error)

	// DeleteDataset drops the dataset's collection. Deleting an absent
	// dataset is not an error.
	DeleteDataset(ctx context.Context, dataset string) error

	// Capabilities reports optional backend features.
	Capabilities(ctx context.Context) (Capabilities, error)
}
