package record

// StatusPolicy decides the status of a record at ingest time when the
// client did not pin one explicitly. The exact boundary between Validated
// and Edited is not universally agreed on, so the policy is injectable.
type StatusPolicy func(*Record) TaskStatus

// DefaultStatusPolicy implements the standard defaulting rule:
//   - an explicit valid status on the record wins;
//   - a record carrying an annotation with an agent is Validated;
//   - everything else is Default.
//
// Discarded and Edited are only ever set explicitly by the client.
func DefaultStatusPolicy(r *Record) TaskStatus {
	if r.Status.IsValid() {
		return r.Status
	}
	if r.Annotation != nil && r.Annotation.Agent != "" && len(r.Annotation.Labels) > 0 {
		return StatusValidated
	}
	return StatusDefault
}
