package dataset

import (
	"encoding/json"
	"time"
)

const CurrentFormatVersion = 1

// Settings is the dataset descriptor stored in meta/settings.json.
// It is the authoritative record of a dataset's existence: records can only
// be written to a dataset whose settings object exists and is not
// tombstoned.
type Settings struct {
	FormatVersion int       `json:"format_version"`
	Name          string    `json:"name"`
	Task          string    `json:"task"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Tags     map[string]string `json:"tags,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`

	Deletion DeletionState `json:"deletion"`
}

// DeletionState marks a dataset as deleted without reclaiming its key.
type DeletionState struct {
	Tombstoned   bool       `json:"tombstoned"`
	TombstonedAt *time.Time `json:"tombstoned_at,omitempty"`
}

// TaskTextClassification is the only task kind the engine serves today.
const TaskTextClassification = "TextClassification"

// NewSettings creates settings for a fresh dataset.
func NewSettings(name string) *Settings {
	now := time.Now().UTC()
	return &Settings{
		FormatVersion: CurrentFormatVersion,
		Name:          name,
		Task:          TaskTextClassification,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MergeTags folds new tags into the existing set. Existing keys are
// overwritten, keys absent from the update are preserved.
func (s *Settings) MergeTags(tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	if s.Tags == nil {
		s.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		s.Tags[k] = v
	}
}

// MergeMetadata folds new metadata into the existing set with the same
// additive semantics as MergeTags.
func (s *Settings) MergeMetadata(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any, len(meta))
	}
	for k, v := range meta {
		s.Metadata[k] = v
	}
}

// Clone creates a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var clone Settings
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}
