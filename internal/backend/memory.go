package backend

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/fts"
	"github.com/annosearch/anno/internal/record"
	"github.com/annosearch/anno/internal/schema"
)

// Memory is an in-process Store, one inverted index per dataset. Posting
// lists are roaring bitmaps over row ids; rows are append-only, so a record
// keeps its row id across merges and only its postings move.
//
// It is the default runtime backend and the fixture for every engine test.
type Memory struct {
	mu          sync.RWMutex
	datasets    map[string]*memDataset
	clock       func() time.Time
	unavailable bool
}

type memDataset struct {
	mu       sync.RWMutex
	docs     map[string]*record.Record
	rows     []string
	rowOf    map[string]uint32
	postings map[string]*roaring.Bitmap
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		datasets: make(map[string]*memDataset),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the write timestamp source. Test hook.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// SetUnavailable toggles simulated backend outage: every operation returns
// ErrUnavailable while set. Test hook.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

func (m *Memory) check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return ErrUnavailable
	}
	return nil
}

// Capabilities reports vector-search support. The in-memory backend always
// supports brute-force similarity ordering.
func (m *Memory) Capabilities(ctx context.Context) (Capabilities, error) {
	if err := m.check(); err != nil {
		return Capabilities{}, err
	}
	return Capabilities{VectorSearch: true}, nil
}

func (m *Memory) dataset(name string, create bool) *memDataset {
	m.mu.RLock()
	ds := m.datasets[name]
	m.mu.RUnlock()
	if ds != nil || !create {
		return ds
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ds = m.datasets[name]; ds == nil {
		ds = &memDataset{
			docs:     make(map[string]*record.Record),
			rowOf:    make(map[string]uint32),
			postings: make(map[string]*roaring.Bitmap),
		}
		m.datasets[name] = ds
	}
	return ds
}

// Upsert merges the patch into the stored record under the dataset lock,
// which gives per-(dataset, id) atomicity: a reader never observes a
// half-merged document. LastUpdated strictly increases per id.
func (m *Memory) Upsert(ctx context.Context, dataset string, patch *record.Record) (*record.Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds := m.dataset(dataset, true)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	key := patch.ID.String()
	prev := ds.docs[key]

	merged := record.Merge(prev, patch)
	stamp := m.now()
	if prev != nil && prev.LastUpdated != nil && !stamp.After(*prev.LastUpdated) {
		stamp = prev.LastUpdated.Add(time.Nanosecond)
	}
	merged.LastUpdated = &stamp

	row, known := ds.rowOf[key]
	if !known {
		row = uint32(len(ds.rows))
		ds.rows = append(ds.rows, key)
		ds.rowOf[key] = row
	}

	if prev != nil {
		ds.unindex(row, indexKeys(prev))
	}
	ds.index(row, indexKeys(merged))
	ds.docs[key] = merged

	return merged.Clone(), nil
}

func (m *Memory) now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock()
}

// Get returns the stored record or ErrRecordNotFound.
func (m *Memory) Get(ctx context.Context, dataset string, id document.ID) (*record.Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	ds := m.dataset(dataset, false)
	if ds == nil {
		return nil, ErrDatasetNotFound
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()
	doc, ok := ds.docs[id.String()]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return doc.Clone(), nil
}

// DeleteDataset drops the dataset's collection.
func (m *Memory) DeleteDataset(ctx context.Context, dataset string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.datasets, dataset)
	return nil
}

// Search executes the plan: bitmap-filtered candidates, ordered by vector
// distance or by the sort spec with a stable id tie-break, then paginated.
func (m *Memory) Search(ctx context.Context, dataset string, plan *Plan) (*Result, error) {
	matched, err := m.matched(ctx, dataset, plan)
	if err != nil {
		return nil, err
	}

	orderRecords(matched, plan)

	total := len(matched)
	from := plan.From
	if from > total {
		from = total
	}
	page := matched[from:]
	if plan.Limit >= 0 && len(page) > plan.Limit {
		page = page[:plan.Limit]
	}

	out := make([]*record.Record, len(page))
	for i, r := range page {
		out[i] = r.Clone()
	}
	return &Result{Total: total, Records: out}, nil
}

// Scan returns the full filtered set without ordering guarantees.
func (m *Memory) Scan(ctx context.Context, dataset string, plan *Plan) ([]*record.Record, error) {
	matched, err := m.matched(ctx, dataset, plan)
	if err != nil {
		return nil, err
	}
	out := make([]*record.Record, len(matched))
	for i, r := range matched {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *Memory) matched(ctx context.Context, dataset string, plan *Plan) ([]*record.Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds := m.dataset(dataset, false)
	if ds == nil {
		return nil, ErrDatasetNotFound
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	candidates := roaring.New()
	candidates.AddRange(0, uint64(len(ds.rows)))

	intersect := func(bm *roaring.Bitmap) {
		candidates.And(bm)
	}
	union := func(keys []string) *roaring.Bitmap {
		out := roaring.New()
		for _, k := range keys {
			if bm := ds.postings[k]; bm != nil {
				out.Or(bm)
			}
		}
		return out
	}

	f := plan.Filters
	if len(f.PredictedBy) > 0 {
		intersect(union(prefixed("pred_by=", f.PredictedBy)))
	}
	if len(f.AnnotatedBy) > 0 {
		intersect(union(prefixed("ann_by=", f.AnnotatedBy)))
	}
	if len(f.Status) > 0 {
		keys := make([]string, len(f.Status))
		for i, s := range f.Status {
			keys[i] = "status=" + string(s)
		}
		intersect(union(keys))
	}
	if len(f.Predicted) > 0 {
		keys := make([]string, len(f.Predicted))
		for i, p := range f.Predicted {
			keys[i] = "predicted=" + string(p)
		}
		intersect(union(keys))
	}
	for key, values := range f.Metadata {
		keys := make([]string, len(values))
		for i, v := range values {
			keys[i] = "meta:" + key + "=" + v
		}
		intersect(union(keys))
	}

	for _, clause := range plan.Text {
		intersect(union([]string{clauseKey(clause)}))
	}

	matched := make([]*record.Record, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		row := it.Next()
		if int(row) >= len(ds.rows) {
			continue
		}
		matched = append(matched, ds.docs[ds.rows[row]])
	}
	return matched, nil
}

func prefixed(prefix string, values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prefix + v
	}
	return out
}

func clauseKey(c TextClause) string {
	if c.Field == "" {
		return "tok:" + c.Term
	}
	if c.Exact {
		return "xtok:" + c.Field + ":" + c.Term
	}
	return "ftok:" + c.Field + ":" + c.Term
}

func (ds *memDataset) index(row uint32, keys []string) {
	for _, k := range keys {
		bm := ds.postings[k]
		if bm == nil {
			bm = roaring.New()
			ds.postings[k] = bm
		}
		bm.Add(row)
	}
}

func (ds *memDataset) unindex(row uint32, keys []string) {
	for _, k := range keys {
		if bm := ds.postings[k]; bm != nil {
			bm.Remove(row)
		}
	}
}

var (
	analyzed = fts.NewTokenizer(nil)
	verbatim = fts.NewTokenizer(&fts.Config{CaseSensitive: true})
)

// indexKeys derives every posting key for a record: structured facets,
// analyzed tokens (global and per field), and the case-exact token stream.
func indexKeys(r *record.Record) []string {
	var keys []string
	add := func(k string) { keys = append(keys, k) }

	add("status=" + string(r.Status))
	if r.Prediction != nil {
		if r.Prediction.Agent != "" {
			add("pred_by=" + r.Prediction.Agent)
		}
		if top, ok := r.Prediction.Top(); ok {
			add("pred_as=" + top.Class)
		}
	}
	if r.Annotation != nil {
		if r.Annotation.Agent != "" {
			add("ann_by=" + r.Annotation.Agent)
		}
		if top, ok := r.Annotation.Top(); ok {
			add("ann_as=" + top.Class)
		}
	}
	if p := r.Predicted(); p != nil {
		add("predicted=" + string(*p))
	}

	for key, value := range r.Metadata {
		for _, v := range metadataTerms(value) {
			add("meta:" + key + "=" + v)
		}
	}

	seen := make(map[string]bool)
	for field, value := range r.Inputs {
		text, ok := value.(string)
		if !ok {
			continue
		}
		for _, tok := range analyzed.Tokenize(text) {
			k := "ftok:" + field + ":" + tok
			if !seen[k] {
				seen[k] = true
				add(k)
			}
			g := "tok:" + tok
			if !seen[g] {
				seen[g] = true
				add(g)
			}
		}
		for _, tok := range verbatim.Tokenize(text) {
			k := "xtok:" + field + ":" + tok
			if !seen[k] {
				seen[k] = true
				add(k)
			}
		}
	}

	return keys
}

// metadataTerms flattens a metadata value into filterable bucket terms.
// Lists contribute one term per element; everything else is a single term.
func metadataTerms(v any) []string {
	if list, ok := v.([]any); ok {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, schema.Stringify(e))
		}
		return out
	}
	return []string{schema.Stringify(v)}
}

// orderRecords sorts matches in place. A vector query overrides the sort
// spec and orders by ascending distance; otherwise the sort spec applies
// with a stable tie-break on id ascending.
func orderRecords(matched []*record.Record, plan *Plan) {
	if plan.Vector != nil {
		dist := make(map[string]float64, len(matched))
		for _, r := range matched {
			dist[r.ID.String()] = vectorDistance(r, plan.Vector)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			di, dj := dist[matched[i].ID.String()], dist[matched[j].ID.String()]
			if di != dj {
				return di < dj
			}
			return matched[i].ID.Compare(matched[j].ID) < 0
		})
		return
	}

	keys := plan.Sort
	if len(keys) == 0 {
		keys = []SortField{{Field: "id"}}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, key := range keys {
			va := sortValue(matched[i], key.Field)
			vb := sortValue(matched[j], key.Field)
			if va == nil && vb == nil {
				continue
			}
			// Records missing the sort value rank last in either
			// direction.
			if va == nil {
				return false
			}
			if vb == nil {
				return true
			}
			c := compareValues(va, vb)
			if key.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return matched[i].ID.Compare(matched[j].ID) < 0
	})
}

func sortValue(r *record.Record, field string) any {
	switch field {
	case "id":
		return r.ID.String()
	case "status":
		return string(r.Status)
	case "last_updated":
		if r.LastUpdated == nil {
			return nil
		}
		return *r.LastUpdated
	case "event_timestamp":
		if r.EventTimestamp == nil {
			return nil
		}
		return *r.EventTimestamp
	case "predicted":
		if p := r.Predicted(); p != nil {
			return string(*p)
		}
		return nil
	case "predicted_by":
		if r.Prediction != nil && r.Prediction.Agent != "" {
			return r.Prediction.Agent
		}
		return nil
	case "annotated_by":
		if r.Annotation != nil && r.Annotation.Agent != "" {
			return r.Annotation.Agent
		}
		return nil
	case "predicted_as":
		if top, ok := r.Prediction.Top(); ok {
			return top.Class
		}
		return nil
	case "annotated_as":
		if top, ok := r.Annotation.Top(); ok {
			return top.Class
		}
		return nil
	case "score":
		if top, ok := r.Prediction.Top(); ok {
			return top.Score
		}
		return nil
	case "metadata":
		return nil
	}
	if key, ok := metadataSortKey(field); ok {
		if v, present := r.Metadata[key]; present {
			return schema.Stringify(v)
		}
	}
	return nil
}

func metadataSortKey(field string) (string, bool) {
	const prefix = "metadata."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		return field[len(prefix):], true
	}
	return "", false
}

func compareValues(a, b any) int {
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0
		}
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case float64:
		vb, ok := b.(float64)
		if !ok {
			return 0
		}
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			return 0
		}
		switch {
		case va.Before(vb):
			return -1
		case va.After(vb):
			return 1
		}
		return 0
	default:
		return 0
	}
}

// vectorDistance is cosine distance (1 - cosine similarity); records
// missing the named vector sort after every scored record.
func vectorDistance(r *record.Record, q *VectorQuery) float64 {
	vec, ok := r.Vectors[q.Name]
	if !ok || len(vec.Value) != len(q.Value) || len(q.Value) == 0 {
		return math.Inf(1)
	}
	var dot, normA, normB float64
	for i := range q.Value {
		a := float64(vec.Value[i])
		b := float64(q.Value[i])
		dot += a * b
		normA += a * a
		normB += b * b
	}
	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
