// Package record defines the annotation record model: inputs, predictions,
// annotations, metadata, and the lifecycle status attached to each record.
package record

import (
	"fmt"
	"time"

	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/schema"
)

// TaskStatus represents the lifecycle status of a record.
type TaskStatus string

const (
	StatusDefault   TaskStatus = "Default"
	StatusValidated TaskStatus = "Validated"
	StatusDiscarded TaskStatus = "Discarded"
	StatusEdited    TaskStatus = "Edited"
)

// IsValid returns true if the status is a recognized value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusDefault, StatusValidated, StatusDiscarded, StatusEdited:
		return true
	default:
		return false
	}
}

// PredictedStatus is the derived agreement between the top prediction label
// and the top annotation label.
type PredictedStatus string

const (
	PredictedOK PredictedStatus = "ok"
	PredictedKO PredictedStatus = "ko"
)

// Label is a single class label, optionally scored. Annotation labels carry
// no score; prediction labels do.
type Label struct {
	Class string  `json:"class"`
	Score float64 `json:"score,omitempty"`
}

// LabelSet is an agent plus its ordered label list, used for both
// predictions and annotations.
type LabelSet struct {
	Agent  string  `json:"agent"`
	Labels []Label `json:"labels"`
}

// Top returns the highest-scoring label. When scores tie (annotations carry
// none), the first label in the list wins.
func (ls *LabelSet) Top() (Label, bool) {
	if ls == nil || len(ls.Labels) == 0 {
		return Label{}, false
	}
	best := ls.Labels[0]
	for _, l := range ls.Labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

// Clone returns a deep copy of the label set.
func (ls *LabelSet) Clone() *LabelSet {
	if ls == nil {
		return nil
	}
	out := &LabelSet{Agent: ls.Agent}
	out.Labels = append(out.Labels, ls.Labels...)
	return out
}

// Vector is a named embedding attached to a record.
type Vector struct {
	Value []float32 `json:"value"`
}

// Record is an annotation record, identified by (dataset, id).
// Optional fields are pointers or nil-able maps so that a partial record can
// express "field absent" distinctly from "field empty"; the merge semantics
// in Merge depend on that distinction.
type Record struct {
	ID             document.ID       `json:"id"`
	Inputs         map[string]any    `json:"inputs,omitempty"`
	Prediction     *LabelSet         `json:"prediction,omitempty"`
	Annotation     *LabelSet         `json:"annotation,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	Status         TaskStatus        `json:"status,omitempty"`
	EventTimestamp *time.Time        `json:"event_timestamp,omitempty"`
	LastUpdated    *time.Time        `json:"last_updated,omitempty"`
	Vectors        map[string]Vector `json:"vectors,omitempty"`
	Metrics        map[string]any    `json:"metrics,omitempty"`
}

// Validate checks the invariants a record must satisfy before it can be
// written: a parsed ID and a non-empty inputs mapping. Metadata and inputs
// values must fit the closed value model.
func (r *Record) Validate() error {
	if r.ID.IsZero() {
		return &document.ValidationError{Field: "id", Message: "missing record ID"}
	}
	if len(r.Inputs) == 0 {
		return &document.ValidationError{Field: "inputs", Message: "inputs must not be empty"}
	}
	if _, err := schema.NormalizeMapping(r.Inputs); err != nil {
		return &document.ValidationError{Field: "inputs", Message: err.Error()}
	}
	if _, err := schema.NormalizeMapping(r.Metadata); err != nil {
		return &document.ValidationError{Field: "metadata", Message: err.Error()}
	}
	if r.Status != "" && !r.Status.IsValid() {
		return &document.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", r.Status)}
	}
	return nil
}

// Normalize canonicalizes the record in place: inputs and metadata values
// are normalized into the closed value model. Validate must have passed.
func (r *Record) Normalize() error {
	inputs, err := schema.NormalizeMapping(r.Inputs)
	if err != nil {
		return err
	}
	r.Inputs = inputs
	meta, err := schema.NormalizeMapping(r.Metadata)
	if err != nil {
		return err
	}
	r.Metadata = meta
	return nil
}

// Predicted derives the agreement status between prediction and annotation.
// Returns nil when either side is missing.
func (r *Record) Predicted() *PredictedStatus {
	pred, ok := r.Prediction.Top()
	if !ok {
		return nil
	}
	ann, ok := r.Annotation.Top()
	if !ok {
		return nil
	}
	s := PredictedKO
	if pred.Class == ann.Class {
		s = PredictedOK
	}
	return &s
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:         r.ID,
		Prediction: r.Prediction.Clone(),
		Annotation: r.Annotation.Clone(),
		Status:     r.Status,
	}
	out.Inputs = cloneMapping(r.Inputs)
	out.Metadata = cloneMapping(r.Metadata)
	out.Metrics = cloneMapping(r.Metrics)
	if r.EventTimestamp != nil {
		t := *r.EventTimestamp
		out.EventTimestamp = &t
	}
	if r.LastUpdated != nil {
		t := *r.LastUpdated
		out.LastUpdated = &t
	}
	if r.Vectors != nil {
		out.Vectors = make(map[string]Vector, len(r.Vectors))
		for name, v := range r.Vectors {
			vals := make([]float32, len(v.Value))
			copy(vals, v.Value)
			out.Vectors[name] = Vector{Value: vals}
		}
	}
	return out
}

func cloneMapping(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		return cloneMapping(val)
	default:
		return val
	}
}
