package record

import (
	"testing"
	"time"

	"github.com/annosearch/anno/internal/document"
)

func testRecord(id uint64) *Record {
	return &Record{
		ID:     document.NewU64ID(id),
		Inputs: map[string]any{"text": "some text"},
	}
}

func TestValidateRequiresInputs(t *testing.T) {
	r := &Record{ID: document.NewU64ID(1)}
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for empty inputs")
	}

	r.Inputs = map[string]any{"text": "ok"}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRequiresID(t *testing.T) {
	r := &Record{Inputs: map[string]any{"text": "ok"}}
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for missing id")
	}
}

func TestValidateRejectsBadStatus(t *testing.T) {
	r := testRecord(1)
	r.Status = "Bogus"
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for unknown status")
	}
}

func TestLabelSetTop(t *testing.T) {
	ls := &LabelSet{
		Agent: "test",
		Labels: []Label{
			{Class: "Test", Score: 0.3},
			{Class: "Mocking", Score: 0.7},
		},
	}
	top, ok := ls.Top()
	if !ok {
		t.Fatal("expected a top label")
	}
	if top.Class != "Mocking" {
		t.Errorf("expected Mocking, got %s", top.Class)
	}

	// Unscored labels keep list order.
	ann := &LabelSet{Agent: "gold", Labels: []Label{{Class: "Positive"}, {Class: "Negative"}}}
	top, _ = ann.Top()
	if top.Class != "Positive" {
		t.Errorf("expected first label for unscored set, got %s", top.Class)
	}

	var empty *LabelSet
	if _, ok := empty.Top(); ok {
		t.Error("nil label set must have no top label")
	}
}

func TestPredictedDerivation(t *testing.T) {
	r := testRecord(1)
	if r.Predicted() != nil {
		t.Error("no prediction: predicted must be nil")
	}

	r.Prediction = &LabelSet{Agent: "test", Labels: []Label{{Class: "Positive", Score: 0.6}, {Class: "Negative", Score: 0.3}}}
	if r.Predicted() != nil {
		t.Error("no annotation: predicted must be nil")
	}

	r.Annotation = &LabelSet{Agent: "gold", Labels: []Label{{Class: "Positive"}}}
	if got := r.Predicted(); got == nil || *got != PredictedOK {
		t.Errorf("expected ok, got %v", got)
	}

	r.Annotation = &LabelSet{Agent: "gold", Labels: []Label{{Class: "Negative"}}}
	if got := r.Predicted(); got == nil || *got != PredictedKO {
		t.Errorf("expected ko, got %v", got)
	}
}

func TestMergeOverwritesOnlyPresentFields(t *testing.T) {
	now := time.Now().UTC()
	base := &Record{
		ID:             document.NewU64ID(1),
		Inputs:         map[string]any{"text": "original"},
		Prediction:     &LabelSet{Agent: "model", Labels: []Label{{Class: "A", Score: 0.9}}},
		Metadata:       map[string]any{"split": "train"},
		Status:         StatusDefault,
		EventTimestamp: &now,
	}
	patch := &Record{
		ID:         document.NewU64ID(1),
		Annotation: &LabelSet{Agent: "gold", Labels: []Label{{Class: "A"}}},
	}

	merged := Merge(base, patch)
	if merged.Inputs["text"] != "original" {
		t.Error("inputs must be preserved when absent from patch")
	}
	if merged.Prediction == nil || merged.Prediction.Agent != "model" {
		t.Error("prediction must be preserved when absent from patch")
	}
	if merged.Annotation == nil || merged.Annotation.Agent != "gold" {
		t.Error("annotation from patch must be applied")
	}
	if merged.Metadata["split"] != "train" {
		t.Error("metadata must be preserved")
	}
}

func TestMergeDisjointFieldsIsUnion(t *testing.T) {
	a := &Record{
		ID:     document.NewU64ID(7),
		Inputs: map[string]any{"text": "body"},
	}
	b := &Record{
		ID:       document.NewU64ID(7),
		Metadata: map[string]any{"lang": "en"},
		Status:   StatusDiscarded,
	}

	merged := Merge(Merge(nil, a), b)
	if merged.Inputs["text"] != "body" {
		t.Error("expected inputs from first record")
	}
	if merged.Metadata["lang"] != "en" {
		t.Error("expected metadata from second record")
	}
	if merged.Status != StatusDiscarded {
		t.Error("expected status from second record")
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := testRecord(1)
	patch := &Record{ID: document.NewU64ID(1), Metadata: map[string]any{"k": "v"}}
	merged := Merge(base, patch)
	merged.Inputs["text"] = "changed"
	merged.Metadata["k"] = "changed"
	if base.Inputs["text"] != "some text" {
		t.Error("merge must not alias base inputs")
	}
	if patch.Metadata["k"] != "v" {
		t.Error("merge must not alias patch metadata")
	}
}

func TestDefaultStatusPolicy(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		want TaskStatus
	}{
		{"bare record", testRecord(1), StatusDefault},
		{
			"explicit status wins",
			&Record{Status: StatusDiscarded, Inputs: map[string]any{"t": "x"}},
			StatusDiscarded,
		},
		{
			"annotation with agent",
			&Record{
				Inputs:     map[string]any{"t": "x"},
				Annotation: &LabelSet{Agent: "gold", Labels: []Label{{Class: "A"}}},
			},
			StatusValidated,
		},
		{
			"annotation without agent stays default",
			&Record{
				Inputs:     map[string]any{"t": "x"},
				Annotation: &LabelSet{Labels: []Label{{Class: "A"}}},
			},
			StatusDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultStatusPolicy(tt.rec); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
