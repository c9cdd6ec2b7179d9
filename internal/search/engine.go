// Package search translates search requests into backend plans, executes
// them, and assembles the response: one page of hits, the total filtered
// count, and facet aggregations over the filtered set.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/metrics"
	"github.com/annosearch/anno/internal/record"
)

// Response is the assembled search result. Aggregations are only computed
// for the first page (offset zero); paging deeper returns hits and total
// alone.
type Response struct {
	Total        int              `json:"total"`
	Records      []*record.Record `json:"records"`
	Aggregations *Aggregations    `json:"aggregations,omitempty"`
}

// Page is the requested result window. A negative Limit means "use the
// configured default page size".
type Page struct {
	From  int
	Limit int
}

// Options configures an Engine.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	StemLanguage    string
	Logger          *logging.Logger
}

// Engine executes searches for one backend store.
type Engine struct {
	store    backend.Store
	registry *dataset.Registry
	agg      *Aggregator
	logger   *logging.Logger

	defaultPageSize int
	maxPageSize     int

	capsOnce sync.Once
	caps     backend.Capabilities
	capsErr  error
}

// NewEngine creates a search engine. Backend capabilities are probed on
// first use and cached for the process lifetime.
func NewEngine(store backend.Store, registry *dataset.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = 1000
	}
	return &Engine{
		store:           store,
		registry:        registry,
		agg:             NewAggregator(opts.StemLanguage),
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

func (e *Engine) capabilities(ctx context.Context) (backend.Capabilities, error) {
	e.capsOnce.Do(func() {
		e.caps, e.capsErr = e.store.Capabilities(ctx)
	})
	return e.caps, e.capsErr
}

// Search runs a translated search against one dataset. The dataset must
// exist in the registry; a registered dataset with no records yet yields an
// empty result, not an error.
func (e *Engine) Search(ctx context.Context, name string, req *Request, page Page) (*Response, error) {
	start := time.Now()
	resp, err := e.search(ctx, name, req, page)
	metrics.ObserveSearch(name, queryType(req), time.Since(start).Seconds(), err)
	return resp, err
}

func (e *Engine) search(ctx context.Context, name string, req *Request, page Page) (*Response, error) {
	if _, err := e.registry.Load(ctx, name); err != nil {
		return nil, err
	}

	caps, err := e.capabilities(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := Translate(req, caps)
	if err != nil {
		return nil, err
	}

	from := page.From
	if from < 0 {
		from = 0
	}
	limit := page.Limit
	if limit < 0 {
		limit = e.defaultPageSize
	}
	if limit > e.maxPageSize {
		limit = e.maxPageSize
	}
	plan.From = from
	plan.Limit = limit

	result, err := e.store.Search(ctx, name, plan)
	if err != nil {
		if errors.Is(err, backend.ErrDatasetNotFound) {
			// Registered but never written to.
			return &Response{Records: []*record.Record{}, Aggregations: e.emptyAggregations(from)}, nil
		}
		return nil, err
	}

	resp := &Response{
		Total:   result.Total,
		Records: result.Records,
	}
	if from == 0 {
		matched, err := e.store.Scan(ctx, name, plan)
		if err != nil {
			return nil, err
		}
		resp.Aggregations = e.agg.Aggregate(matched)
	}
	return resp, nil
}

func (e *Engine) emptyAggregations(from int) *Aggregations {
	if from > 0 {
		return nil
	}
	return e.agg.Aggregate(nil)
}

// queryType classifies a request for metrics labels.
func queryType(req *Request) string {
	switch {
	case req.Query.Vector != nil:
		return "vector"
	case req.Query.Text != "":
		return "text"
	case len(req.Query.PredictedBy) > 0 || len(req.Query.AnnotatedBy) > 0 ||
		len(req.Query.Status) > 0 || len(req.Query.Predicted) > 0 ||
		len(req.Query.Metadata) > 0:
		return "filter"
	default:
		return "match_all"
	}
}
