package search

import (
	"testing"

	"github.com/annosearch/anno/internal/record"
)

func labeled(agent, class string, score float64) *record.LabelSet {
	return &record.LabelSet{Agent: agent, Labels: []record.Label{{Class: class, Score: score}}}
}

func TestAggregateFacets(t *testing.T) {
	records := []*record.Record{
		{
			Inputs:     map[string]any{"text": "first data point"},
			Prediction: labeled("model-a", "spam", 0.92),
			Annotation: labeled("alice", "spam", 0),
			Status:     record.StatusValidated,
		},
		{
			Inputs:     map[string]any{"text": "second data point"},
			Prediction: labeled("model-a", "ham", 0.41),
			Annotation: labeled("bob", "spam", 0),
			Status:     record.StatusValidated,
		},
		{
			Inputs: map[string]any{"text": "my data here"},
			Status: record.StatusDefault,
		},
	}

	agg := NewAggregator("").Aggregate(records)

	if agg.Status["Validated"] != 2 || agg.Status["Default"] != 1 {
		t.Errorf("status facet = %v", agg.Status)
	}
	if agg.PredictedBy["model-a"] != 2 {
		t.Errorf("predicted_by facet = %v", agg.PredictedBy)
	}
	if agg.PredictedAs["spam"] != 1 || agg.PredictedAs["ham"] != 1 {
		t.Errorf("predicted_as facet = %v", agg.PredictedAs)
	}
	if agg.AnnotatedBy["alice"] != 1 || agg.AnnotatedBy["bob"] != 1 {
		t.Errorf("annotated_by facet = %v", agg.AnnotatedBy)
	}
	if agg.Predicted["ok"] != 1 || agg.Predicted["ko"] != 1 {
		t.Errorf("predicted facet = %v", agg.Predicted)
	}
	if agg.Score["0.9"] != 1 || agg.Score["0.4"] != 1 {
		t.Errorf("score facet = %v", agg.Score)
	}
}

func TestAggregateWordsRemovesStopwordsAndCountsRecords(t *testing.T) {
	records := []*record.Record{
		{Inputs: map[string]any{"text": "the data is data"}},
		{Inputs: map[string]any{"text": "my data"}},
		{Inputs: map[string]any{"text": "their data too"}},
	}

	agg := NewAggregator("").Aggregate(records)

	if agg.Words["data"] != 3 {
		t.Errorf(`words["data"] = %d, want 3 (one per record, not per occurrence)`, agg.Words["data"])
	}
	for _, stop := range []string{"the", "is", "my", "their", "too"} {
		if _, ok := agg.Words[stop]; ok {
			t.Errorf("stopword %q leaked into words facet", stop)
		}
	}
}

func TestAggregateWordsStemming(t *testing.T) {
	records := []*record.Record{
		{Inputs: map[string]any{"text": "running runs"}},
	}

	agg := NewAggregator("english").Aggregate(records)
	if agg.Words["run"] != 1 {
		t.Errorf(`stemmed words facet = %v, want "run" present once`, agg.Words)
	}
	if _, ok := agg.Words["running"]; ok {
		t.Errorf("unstemmed token survived: %v", agg.Words)
	}
}

func TestAggregateMetadataDottedKeysAreSingleKeys(t *testing.T) {
	records := []*record.Record{
		{Inputs: map[string]any{"t": "a"}, Metadata: map[string]any{"field.one": float64(1)}},
		{Inputs: map[string]any{"t": "b"}, Metadata: map[string]any{"field.one": float64(1)}},
		{Inputs: map[string]any{"t": "c"}, Metadata: map[string]any{"field.one": float64(2)}},
	}

	agg := NewAggregator("").Aggregate(records)

	buckets, ok := agg.Metadata["field.one"]
	if !ok {
		t.Fatalf("dotted key not kept as a single key: %v", agg.Metadata)
	}
	if buckets["1"] != 2 || buckets["2"] != 1 {
		t.Errorf("metadata buckets = %v", buckets)
	}
	if _, ok := agg.Metadata["field"]; ok {
		t.Error("dotted key was split into a nested path")
	}
}

func TestAggregateMetadataListValues(t *testing.T) {
	records := []*record.Record{
		{Inputs: map[string]any{"t": "a"}, Metadata: map[string]any{"labels": []any{"x", "y"}}},
		{Inputs: map[string]any{"t": "b"}, Metadata: map[string]any{"labels": []any{"x"}}},
	}

	agg := NewAggregator("").Aggregate(records)
	buckets := agg.Metadata["labels"]
	if buckets["x"] != 2 || buckets["y"] != 1 {
		t.Errorf("metadata list buckets = %v", buckets)
	}
}

func TestScoreBucket(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, "0"},
		{0.04, "0"},
		{0.05, "0.05"},
		{0.92, "0.9"},
		{1, "0.95"},
	}
	for _, tc := range tests {
		if got := scoreBucket(tc.score); got != tc.want {
			t.Errorf("scoreBucket(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
