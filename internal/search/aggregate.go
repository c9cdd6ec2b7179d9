package search

import (
	"math"
	"strconv"

	"github.com/annosearch/anno/internal/fts"
	"github.com/annosearch/anno/internal/record"
	"github.com/annosearch/anno/internal/schema"
)

// Aggregations are facet counts computed over the full filtered set, not
// just the returned page.
type Aggregations struct {
	PredictedAs map[string]int            `json:"predicted_as"`
	PredictedBy map[string]int            `json:"predicted_by"`
	AnnotatedAs map[string]int            `json:"annotated_as"`
	AnnotatedBy map[string]int            `json:"annotated_by"`
	Status      map[string]int            `json:"status"`
	Predicted   map[string]int            `json:"predicted"`
	Metadata    map[string]map[string]int `json:"metadata"`
	Words       map[string]int            `json:"words"`
	Score       map[string]int            `json:"score"`
}

// scoreBucketWidth is the width of one score histogram bucket.
const scoreBucketWidth = 0.05

// Aggregator computes facets. Stemming only affects the words facet.
type Aggregator struct {
	words fts.Tokenizer
}

// NewAggregator creates an aggregator. stemLanguage is a snowball language
// name ("english", ...); empty disables stemming of word-cloud tokens.
func NewAggregator(stemLanguage string) *Aggregator {
	return &Aggregator{
		words: fts.NewTokenizer(&fts.Config{StemLanguage: stemLanguage}),
	}
}

// Aggregate computes all facets over the filtered set.
func (a *Aggregator) Aggregate(records []*record.Record) *Aggregations {
	agg := &Aggregations{
		PredictedAs: make(map[string]int),
		PredictedBy: make(map[string]int),
		AnnotatedAs: make(map[string]int),
		AnnotatedBy: make(map[string]int),
		Status:      make(map[string]int),
		Predicted:   make(map[string]int),
		Metadata:    make(map[string]map[string]int),
		Words:       make(map[string]int),
		Score:       make(map[string]int),
	}

	for _, r := range records {
		agg.Status[string(r.Status)]++

		if r.Prediction != nil {
			if r.Prediction.Agent != "" {
				agg.PredictedBy[r.Prediction.Agent]++
			}
			if top, ok := r.Prediction.Top(); ok {
				agg.PredictedAs[top.Class]++
				agg.Score[scoreBucket(top.Score)]++
			}
		}
		if r.Annotation != nil {
			if r.Annotation.Agent != "" {
				agg.AnnotatedBy[r.Annotation.Agent]++
			}
			if top, ok := r.Annotation.Top(); ok {
				agg.AnnotatedAs[top.Class]++
			}
		}
		if p := r.Predicted(); p != nil {
			agg.Predicted[string(*p)]++
		}

		a.countMetadata(agg, r)
		a.countWords(agg, r)
	}

	return agg
}

// countMetadata buckets metadata values per key. A dotted key such as
// "field.one" is one key, never a nested path; list values contribute one
// bucket per element.
func (a *Aggregator) countMetadata(agg *Aggregations, r *record.Record) {
	for key, value := range r.Metadata {
		buckets := agg.Metadata[key]
		if buckets == nil {
			buckets = make(map[string]int)
			agg.Metadata[key] = buckets
		}
		if list, ok := value.([]any); ok {
			for _, e := range list {
				buckets[schema.Stringify(e)]++
			}
			continue
		}
		buckets[schema.Stringify(value)]++
	}
}

// countWords adds each distinct non-stopword token of the record's text
// inputs once per record.
func (a *Aggregator) countWords(agg *Aggregations, r *record.Record) {
	seen := make(map[string]bool)
	for _, value := range r.Inputs {
		text, ok := value.(string)
		if !ok {
			continue
		}
		for _, tok := range fts.RemoveStopwords(a.words.Tokenize(text)) {
			if !seen[tok] {
				seen[tok] = true
				agg.Words[tok]++
			}
		}
	}
}

// scoreBucket maps a prediction score to its histogram bucket label, the
// bucket's lower bound. A score of exactly 1 lands in the last bucket.
func scoreBucket(score float64) string {
	if score < 0 {
		score = 0
	}
	i := int(math.Floor(score / scoreBucketWidth))
	if i >= int(1/scoreBucketWidth) {
		i = int(1/scoreBucketWidth) - 1
	}
	return strconv.FormatFloat(math.Round(float64(i)*scoreBucketWidth*100)/100, 'f', -1, 64)
}
