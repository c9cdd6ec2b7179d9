package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/record"
	"github.com/annosearch/anno/pkg/objectstore"
)

func newEngine(t *testing.T, opts Options) (*Engine, *backend.Memory, *dataset.Registry) {
	t.Helper()
	store := backend.NewMemory()
	reg := dataset.NewRegistry(objectstore.NewMemoryStore())
	var buf bytes.Buffer
	opts.Logger = logging.NewWithWriter(&buf)
	return NewEngine(store, reg, opts), store, reg
}

func seed(t *testing.T, store *backend.Memory, reg *dataset.Registry, name string, records ...*record.Record) {
	t.Helper()
	ctx := context.Background()
	if _, err := reg.Create(ctx, name); err != nil {
		t.Fatalf("Create dataset: %v", err)
	}
	for _, r := range records {
		if _, err := store.Upsert(ctx, name, r); err != nil {
			t.Fatalf("Upsert %s: %v", r.ID, err)
		}
	}
}

func seedRecord(t *testing.T, id any, text string) *record.Record {
	t.Helper()
	parsed, err := document.ParseID(id)
	if err != nil {
		t.Fatalf("ParseID(%v): %v", id, err)
	}
	return &record.Record{
		ID:     parsed,
		Inputs: map[string]any{"text": text},
		Status: record.StatusDefault,
	}
}

func TestSearchUnknownDataset(t *testing.T) {
	eng, _, _ := newEngine(t, Options{})
	_, err := eng.Search(context.Background(), "missing", &Request{}, Page{Limit: -1})
	if !errors.Is(err, dataset.ErrNotFound) {
		t.Errorf("err = %v, want dataset.ErrNotFound", err)
	}
}

func TestSearchRegisteredButEmptyDataset(t *testing.T) {
	eng, _, reg := newEngine(t, Options{})
	if _, err := reg.Create(context.Background(), "empty"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, err := eng.Search(context.Background(), "empty", &Request{}, Page{Limit: -1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 || len(resp.Records) != 0 {
		t.Errorf("empty dataset: total=%d records=%d", resp.Total, len(resp.Records))
	}
	if resp.Aggregations == nil {
		t.Error("first page of an empty dataset still carries empty aggregations")
	}
}

func TestSearchDefaultOrderIsLexicographicOverIntegerIDs(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	var records []*record.Record
	for i := 0; i < 100; i++ {
		records = append(records, seedRecord(t, i, fmt.Sprintf("row %d", i)))
	}
	seed(t, store, reg, "ds", records...)

	resp, err := eng.Search(context.Background(), "ds", &Request{}, Page{Limit: 8})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 100 {
		t.Errorf("total = %d, want 100", resp.Total)
	}
	want := []string{"0", "1", "10", "11", "12", "13", "14", "15"}
	for i, w := range want {
		if got := resp.Records[i].ID.String(); got != w {
			t.Fatalf("record[%d] = %s, want %s (page: %v)", i, got, w, ids(resp.Records))
		}
	}
}

func TestSearchAggregationsOnlyOnFirstPage(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	seed(t, store, reg, "ds",
		seedRecord(t, 1, "alpha data"),
		seedRecord(t, 2, "beta data"),
		seedRecord(t, 3, "gamma data"),
	)

	first, err := eng.Search(context.Background(), "ds", &Request{}, Page{From: 0, Limit: 2})
	if err != nil {
		t.Fatalf("Search first page: %v", err)
	}
	if first.Aggregations == nil {
		t.Fatal("first page must carry aggregations")
	}
	if first.Aggregations.Words["data"] != 3 {
		t.Errorf("aggregations cover the filtered set, not the page: %v", first.Aggregations.Words)
	}
	if first.Total != 3 || len(first.Records) != 2 {
		t.Errorf("total=%d page=%d", first.Total, len(first.Records))
	}

	second, err := eng.Search(context.Background(), "ds", &Request{}, Page{From: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Search second page: %v", err)
	}
	if second.Aggregations != nil {
		t.Error("aggregations must be suppressed when paging past the first page")
	}
	if second.Total != 3 {
		t.Errorf("total on second page = %d, want 3", second.Total)
	}
}

func TestSearchScopedAndExactQueries(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	seed(t, store, reg, "ds",
		seedRecord(t, 1, "The Data point"),
		seedRecord(t, 2, "unrelated row"),
	)

	run := func(q string) []string {
		t.Helper()
		resp, err := eng.Search(context.Background(), "ds", &Request{Query: Query{Text: q}}, Page{Limit: -1})
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		return ids(resp.Records)
	}

	if got := run("text: data"); len(got) != 1 || got[0] != "1" {
		t.Errorf("scoped query hits = %v", got)
	}
	if got := run("text.exact: Data"); len(got) != 1 || got[0] != "1" {
		t.Errorf("exact query with matching case hits = %v", got)
	}
	if got := run("text.exact: data"); len(got) != 0 {
		t.Errorf("exact query must be case sensitive, hits = %v", got)
	}
}

func TestSearchInvalidQueryAndSort(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	seed(t, store, reg, "ds", seedRecord(t, 1, "x"))

	_, err := eng.Search(context.Background(), "ds", &Request{Query: Query{Text: "!"}}, Page{Limit: -1})
	var invalid *InvalidTextSearchError
	if !errors.As(err, &invalid) {
		t.Errorf("err = %v, want InvalidTextSearchError", err)
	}

	_, err = eng.Search(context.Background(), "ds", &Request{Sort: []SortSpec{{ID: "wrongField"}}}, Page{Limit: -1})
	var bad *BadRequestError
	if !errors.As(err, &bad) {
		t.Errorf("err = %v, want BadRequestError", err)
	}
}

func TestSearchVectorOrdering(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	vec := func(id int, v []float32) *record.Record {
		r := seedRecord(t, id, "row")
		r.Vectors = map[string]record.Vector{"embedding": {Value: v}}
		return r
	}
	seed(t, store, reg, "ds",
		vec(0, []float32{1, 0, 0, 0}),
		vec(1, []float32{14, 15, 16, 17}),
		vec(2, []float32{10, 11, 12, 13}),
	)

	resp, err := eng.Search(context.Background(), "ds", &Request{
		Query: Query{Vector: &VectorParam{Name: "embedding", Value: []float32{14, 15, 16, 17}}},
	}, Page{Limit: -1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(resp.Records); len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "0" {
		t.Errorf("vector order = %v, want [1 2 0]", got)
	}
}

func TestSearchFilteredTotalAndFacets(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	validated := seedRecord(t, 1, "keep")
	validated.Status = record.StatusValidated
	seed(t, store, reg, "ds",
		validated,
		seedRecord(t, 2, "drop"),
		seedRecord(t, 3, "drop"),
	)

	resp, err := eng.Search(context.Background(), "ds", &Request{
		Query: Query{Status: []record.TaskStatus{record.StatusValidated}},
	}, Page{Limit: -1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want filtered count 1", resp.Total)
	}
	if resp.Aggregations.Status["Validated"] != 1 || resp.Aggregations.Status["Default"] != 0 {
		t.Errorf("facets must be computed over the filtered set: %v", resp.Aggregations.Status)
	}
}

func TestSearchPageSizeLimits(t *testing.T) {
	eng, store, reg := newEngine(t, Options{DefaultPageSize: 2, MaxPageSize: 3})
	var records []*record.Record
	for i := 0; i < 6; i++ {
		records = append(records, seedRecord(t, i, "row"))
	}
	seed(t, store, reg, "ds", records...)

	resp, err := eng.Search(context.Background(), "ds", &Request{}, Page{Limit: -1})
	if err != nil {
		t.Fatalf("Search default limit: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Errorf("default page size: got %d records, want 2", len(resp.Records))
	}

	resp, err = eng.Search(context.Background(), "ds", &Request{}, Page{Limit: 100})
	if err != nil {
		t.Fatalf("Search capped limit: %v", err)
	}
	if len(resp.Records) != 3 {
		t.Errorf("max page size: got %d records, want 3", len(resp.Records))
	}
}

func TestSearchBackendUnavailable(t *testing.T) {
	eng, store, reg := newEngine(t, Options{})
	seed(t, store, reg, "ds", seedRecord(t, 1, "x"))
	store.SetUnavailable(true)

	_, err := eng.Search(context.Background(), "ds", &Request{}, Page{Limit: -1})
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func ids(records []*record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID.String()
	}
	return out
}
