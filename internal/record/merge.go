package record

// Merge applies a partial record onto a stored record and returns the
// result. Every field present (non-nil, or non-empty for status) in patch
// overwrites the stored value; absent fields are preserved. Neither input is
// mutated.
//
// Re-ingesting a record with the same id is therefore an update, never a
// duplicate: a patch carrying only an annotation keeps the stored inputs,
// prediction, and metadata intact.
//
// A merged record always carries a valid status: when neither side has
// one, the result falls back to StatusDefault.
func Merge(base, patch *Record) *Record {
	if base == nil {
		out := patch.Clone()
		if out.Status == "" {
			out.Status = StatusDefault
		}
		return out
	}
	out := base.Clone()
	if patch == nil {
		if out.Status == "" {
			out.Status = StatusDefault
		}
		return out
	}

	if patch.Inputs != nil {
		out.Inputs = cloneMapping(patch.Inputs)
	}
	if patch.Prediction != nil {
		out.Prediction = patch.Prediction.Clone()
	}
	if patch.Annotation != nil {
		out.Annotation = patch.Annotation.Clone()
	}
	if patch.Metadata != nil {
		out.Metadata = cloneMapping(patch.Metadata)
	}
	if patch.Status != "" {
		out.Status = patch.Status
	}
	if patch.EventTimestamp != nil {
		t := *patch.EventTimestamp
		out.EventTimestamp = &t
	}
	if patch.Vectors != nil {
		merged := patch.Clone().Vectors
		out.Vectors = merged
	}
	// Metrics are backend-owned; a client patch never overwrites them.
	if patch.LastUpdated != nil {
		t := *patch.LastUpdated
		out.LastUpdated = &t
	}
	if out.Status == "" {
		out.Status = StatusDefault
	}
	return out
}
