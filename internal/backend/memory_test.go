package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/record"
)

func mustID(t *testing.T, v any) document.ID {
	t.Helper()
	id, err := document.ParseID(v)
	if err != nil {
		t.Fatalf("ParseID(%v): %v", v, err)
	}
	return id
}

func textRecord(t *testing.T, id any, text string) *record.Record {
	t.Helper()
	return &record.Record{
		ID:     mustID(t, id),
		Inputs: map[string]any{"text": text},
		Status: record.StatusDefault,
	}
}

func upsert(t *testing.T, m *Memory, dataset string, r *record.Record) *record.Record {
	t.Helper()
	out, err := m.Upsert(context.Background(), dataset, r)
	if err != nil {
		t.Fatalf("Upsert(%s): %v", r.ID, err)
	}
	return out
}

func searchIDs(t *testing.T, m *Memory, dataset string, plan *Plan) []string {
	t.Helper()
	res, err := m.Search(context.Background(), dataset, plan)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := make([]string, len(res.Records))
	for i, r := range res.Records {
		ids[i] = r.ID.String()
	}
	return ids
}

func TestMemoryUpsertMergesPartialRecord(t *testing.T) {
	m := NewMemory()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	upsert(t, m, "ds", &record.Record{
		ID:             mustID(t, "r1"),
		Inputs:         map[string]any{"text": "hello world"},
		Metadata:       map[string]any{"source": "web"},
		Status:         record.StatusDefault,
		EventTimestamp: &ts,
	})
	upsert(t, m, "ds", &record.Record{
		ID:         mustID(t, "r1"),
		Annotation: &record.LabelSet{Agent: "alice", Labels: []record.Label{{Class: "spam", Score: 1}}},
		Status:     record.StatusValidated,
	})

	got, err := m.Get(context.Background(), "ds", mustID(t, "r1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Inputs["text"] != "hello world" {
		t.Errorf("inputs lost on merge: %v", got.Inputs)
	}
	if got.Metadata["source"] != "web" {
		t.Errorf("metadata lost on merge: %v", got.Metadata)
	}
	if got.EventTimestamp == nil || !got.EventTimestamp.Equal(ts) {
		t.Errorf("event timestamp lost on merge: %v", got.EventTimestamp)
	}
	if got.Status != record.StatusValidated {
		t.Errorf("status = %q, want %q", got.Status, record.StatusValidated)
	}
	if got.Annotation == nil || got.Annotation.Agent != "alice" {
		t.Errorf("annotation not applied: %+v", got.Annotation)
	}
}

func TestMemoryLastUpdatedStrictlyIncreases(t *testing.T) {
	m := NewMemory()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	first := upsert(t, m, "ds", textRecord(t, "r1", "one"))
	second := upsert(t, m, "ds", textRecord(t, "r1", "two"))

	if first.LastUpdated == nil || second.LastUpdated == nil {
		t.Fatal("LastUpdated not stamped")
	}
	if !second.LastUpdated.After(*first.LastUpdated) {
		t.Errorf("LastUpdated did not advance under a frozen clock: %v then %v",
			first.LastUpdated, second.LastUpdated)
	}
}

func TestMemoryUpsertReturnsCopy(t *testing.T) {
	m := NewMemory()
	out := upsert(t, m, "ds", textRecord(t, "r1", "hello"))
	out.Inputs["text"] = "mutated"

	got, err := m.Get(context.Background(), "ds", mustID(t, "r1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Inputs["text"] != "hello" {
		t.Errorf("caller mutation leaked into the store: %v", got.Inputs)
	}
}

func TestMemoryGetErrors(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "missing", mustID(t, "r1")); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("unknown dataset: err = %v, want ErrDatasetNotFound", err)
	}

	upsert(t, m, "ds", textRecord(t, "r1", "hello"))
	if _, err := m.Get(context.Background(), "ds", mustID(t, "r2")); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("unknown record: err = %v, want ErrRecordNotFound", err)
	}
}

func seedFilterDataset(t *testing.T, m *Memory) {
	t.Helper()
	recs := []*record.Record{
		{
			ID:         mustID(t, 1),
			Inputs:     map[string]any{"text": "the quick brown fox"},
			Prediction: &record.LabelSet{Agent: "model-a", Labels: []record.Label{{Class: "spam", Score: 0.9}}},
			Annotation: &record.LabelSet{Agent: "alice", Labels: []record.Label{{Class: "spam", Score: 1}}},
			Metadata:   map[string]any{"lang": "en", "split": "train"},
			Status:     record.StatusValidated,
		},
		{
			ID:         mustID(t, 2),
			Inputs:     map[string]any{"text": "lazy dogs sleep"},
			Prediction: &record.LabelSet{Agent: "model-a", Labels: []record.Label{{Class: "ham", Score: 0.7}}},
			Annotation: &record.LabelSet{Agent: "bob", Labels: []record.Label{{Class: "spam", Score: 1}}},
			Metadata:   map[string]any{"lang": "en", "split": "test"},
			Status:     record.StatusValidated,
		},
		{
			ID:       mustID(t, 3),
			Inputs:   map[string]any{"text": "quick review needed"},
			Metadata: map[string]any{"lang": "es"},
			Status:   record.StatusDefault,
		},
	}
	for _, r := range recs {
		upsert(t, m, "ds", r)
	}
}

func TestMemoryStructuredFilters(t *testing.T) {
	m := NewMemory()
	seedFilterDataset(t, m)

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"status", Filters{Status: []record.TaskStatus{record.StatusValidated}}, []string{"1", "2"}},
		{"predicted_by", Filters{PredictedBy: []string{"model-a"}}, []string{"1", "2"}},
		{"annotated_by", Filters{AnnotatedBy: []string{"alice"}}, []string{"1"}},
		{"annotated_by OR", Filters{AnnotatedBy: []string{"alice", "bob"}}, []string{"1", "2"}},
		{"predicted ok", Filters{Predicted: []record.PredictedStatus{record.PredictedOK}}, []string{"1"}},
		{"predicted ko", Filters{Predicted: []record.PredictedStatus{record.PredictedKO}}, []string{"2"}},
		{"metadata", Filters{Metadata: map[string][]string{"lang": {"es"}}}, []string{"3"}},
		{"fields AND", Filters{
			Status:   []record.TaskStatus{record.StatusValidated},
			Metadata: map[string][]string{"split": {"test"}},
		}, []string{"2"}},
		{"no match", Filters{Metadata: map[string][]string{"lang": {"fr"}}}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := searchIDs(t, m, "ds", &Plan{Filters: tc.filters, Limit: 100})
			if !equalStrings(got, tc.want) {
				t.Errorf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMemoryTextClauses(t *testing.T) {
	m := NewMemory()
	upsert(t, m, "ds", textRecord(t, 1, "The Quick brown fox"))
	upsert(t, m, "ds", &record.Record{
		ID:     mustID(t, 2),
		Inputs: map[string]any{"title": "quick note", "body": "nothing here"},
		Status: record.StatusDefault,
	})

	tests := []struct {
		name string
		text []TextClause
		want []string
	}{
		{"global term matches any field", []TextClause{{Term: "quick"}}, []string{"1", "2"}},
		{"field scoped", []TextClause{{Field: "title", Term: "quick"}}, []string{"2"}},
		{"scoped misses other field", []TextClause{{Field: "body", Term: "quick"}}, []string{}},
		{"analyzed is case insensitive", []TextClause{{Field: "text", Term: "quick"}}, []string{"1"}},
		{"exact matches original case", []TextClause{{Field: "text", Exact: true, Term: "Quick"}}, []string{"1"}},
		{"exact rejects case mismatch", []TextClause{{Field: "text", Exact: true, Term: "quick"}}, []string{}},
		{"clauses AND", []TextClause{{Term: "quick"}, {Term: "fox"}}, []string{"1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := searchIDs(t, m, "ds", &Plan{Text: tc.text, Limit: 100})
			if !equalStrings(got, tc.want) {
				t.Errorf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMemoryDefaultSortIsLexicographicByID(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 12; i++ {
		upsert(t, m, "ds", textRecord(t, i, "row"))
	}

	got := searchIDs(t, m, "ds", &Plan{Limit: 100})
	want := []string{"0", "1", "10", "11", "2", "3", "4", "5", "6", "7", "8", "9"}
	if !equalStrings(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestMemorySortSpec(t *testing.T) {
	m := NewMemory()
	score := func(id any, s float64) *record.Record {
		r := textRecord(t, id, "row")
		r.Prediction = &record.LabelSet{Agent: "m", Labels: []record.Label{{Class: "x", Score: s}}}
		return r
	}
	upsert(t, m, "ds", score("a", 0.2))
	upsert(t, m, "ds", score("b", 0.9))
	upsert(t, m, "ds", score("c", 0.5))
	upsert(t, m, "ds", textRecord(t, "d", "row")) // no score

	asc := searchIDs(t, m, "ds", &Plan{Sort: []SortField{{Field: "score"}}, Limit: 100})
	if !equalStrings(asc, []string{"a", "c", "b", "d"}) {
		t.Errorf("score asc = %v", asc)
	}

	desc := searchIDs(t, m, "ds", &Plan{Sort: []SortField{{Field: "score", Desc: true}}, Limit: 100})
	if !equalStrings(desc, []string{"b", "c", "a", "d"}) {
		t.Errorf("score desc = %v, want missing value still last", desc)
	}
}

func TestMemorySortByMetadataKey(t *testing.T) {
	m := NewMemory()
	meta := func(id any, v any) *record.Record {
		r := textRecord(t, id, "row")
		r.Metadata = map[string]any{"priority": v}
		return r
	}
	upsert(t, m, "ds", meta("a", "3"))
	upsert(t, m, "ds", meta("b", "1"))
	upsert(t, m, "ds", textRecord(t, "c", "row"))

	got := searchIDs(t, m, "ds", &Plan{Sort: []SortField{{Field: "metadata.priority"}}, Limit: 100})
	if !equalStrings(got, []string{"b", "a", "c"}) {
		t.Errorf("ids = %v", got)
	}
}

func TestMemoryPagination(t *testing.T) {
	m := NewMemory()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		upsert(t, m, "ds", textRecord(t, id, "row"))
	}

	res, err := m.Search(context.Background(), "ds", &Plan{From: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 5 {
		t.Errorf("Total = %d, want 5", res.Total)
	}
	if len(res.Records) != 2 || res.Records[0].ID.String() != "b" || res.Records[1].ID.String() != "c" {
		t.Errorf("page = %v", searchPage(res))
	}

	res, err = m.Search(context.Background(), "ds", &Plan{From: 10, Limit: 2})
	if err != nil {
		t.Fatalf("Search past end: %v", err)
	}
	if res.Total != 5 || len(res.Records) != 0 {
		t.Errorf("past end: total=%d page=%v", res.Total, searchPage(res))
	}

	res, err = m.Search(context.Background(), "ds", &Plan{From: 0, Limit: 0})
	if err != nil {
		t.Fatalf("Search limit=0: %v", err)
	}
	if res.Total != 5 || len(res.Records) != 0 {
		t.Errorf("limit=0 must still report total: total=%d page=%v", res.Total, searchPage(res))
	}
}

func TestMemoryVectorOrdering(t *testing.T) {
	m := NewMemory()
	vec := func(id any, v []float32) *record.Record {
		r := textRecord(t, id, "row")
		r.Vectors = map[string]record.Vector{"embedding": {Value: v}}
		return r
	}
	upsert(t, m, "ds", vec(0, []float32{1, 0, 0, 0}))
	upsert(t, m, "ds", vec(1, []float32{14, 15, 16, 17}))
	upsert(t, m, "ds", vec(2, []float32{10, 11, 12, 13}))
	upsert(t, m, "ds", textRecord(t, 3, "row")) // no vector

	got := searchIDs(t, m, "ds", &Plan{
		Vector: &VectorQuery{Name: "embedding", Value: []float32{14, 15, 16, 17}},
		Limit:  100,
	})
	want := []string{"1", "2", "0", "3"}
	if !equalStrings(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestMemoryScanIgnoresPagination(t *testing.T) {
	m := NewMemory()
	seedFilterDataset(t, m)

	recs, err := m.Scan(context.Background(), "ds", &Plan{
		Filters: Filters{Status: []record.TaskStatus{record.StatusValidated}},
		From:    1,
		Limit:   1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("Scan returned %d records, want the full filtered set of 2", len(recs))
	}
}

func TestMemoryMergeMovesPostings(t *testing.T) {
	m := NewMemory()
	seedFilterDataset(t, m)

	upsert(t, m, "ds", &record.Record{
		ID:     mustID(t, 3),
		Status: record.StatusDiscarded,
	})

	got := searchIDs(t, m, "ds", &Plan{
		Filters: Filters{Status: []record.TaskStatus{record.StatusDefault}},
		Limit:   100,
	})
	if len(got) != 0 {
		t.Errorf("stale status posting survived the merge: %v", got)
	}
	got = searchIDs(t, m, "ds", &Plan{
		Filters: Filters{Status: []record.TaskStatus{record.StatusDiscarded}},
		Limit:   100,
	})
	if !equalStrings(got, []string{"3"}) {
		t.Errorf("ids = %v, want [3]", got)
	}
}

func TestMemoryDeleteDataset(t *testing.T) {
	m := NewMemory()
	upsert(t, m, "ds", textRecord(t, "r1", "hello"))

	if err := m.DeleteDataset(context.Background(), "ds"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := m.Get(context.Background(), "ds", mustID(t, "r1")); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("after delete: err = %v, want ErrDatasetNotFound", err)
	}
	if err := m.DeleteDataset(context.Background(), "ds"); err != nil {
		t.Errorf("second delete must be a no-op, got %v", err)
	}
}

func TestMemoryUnavailable(t *testing.T) {
	m := NewMemory()
	upsert(t, m, "ds", textRecord(t, "r1", "hello"))
	m.SetUnavailable(true)

	ctx := context.Background()
	if _, err := m.Upsert(ctx, "ds", textRecord(t, "r2", "x")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Upsert err = %v", err)
	}
	if _, err := m.Search(ctx, "ds", &Plan{Limit: 10}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search err = %v", err)
	}
	if _, err := m.Capabilities(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Capabilities err = %v", err)
	}

	m.SetUnavailable(false)
	if _, err := m.Get(ctx, "ds", mustID(t, "r1")); err != nil {
		t.Errorf("store did not recover: %v", err)
	}
}

func searchPage(res *Result) []string {
	ids := make([]string, len(res.Records))
	for i, r := range res.Records {
		ids[i] = r.ID.String()
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
