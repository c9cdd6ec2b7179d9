package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/annosearch/anno/pkg/objectstore"
)

var (
	ErrNotFound          = errors.New("dataset settings not found")
	ErrTombstoned        = errors.New("dataset has been deleted")
	ErrCASRetryExhausted = errors.New("CAS update failed after max retries")
)

const (
	maxCASRetries   = 10
	settingsKeyFmt  = "anno/datasets/%s/meta/settings.json"
	tombstoneKeyFmt = "anno/datasets/%s/meta/tombstone.json"
)

// Registry manages dataset settings in object storage with ETag-based CAS.
type Registry struct {
	store objectstore.Store
}

// NewRegistry creates a new Registry.
func NewRegistry(store objectstore.Store) *Registry {
	return &Registry{store: store}
}

// SettingsKey returns the object storage key for a dataset's settings.
func SettingsKey(name string) string {
	return fmt.Sprintf(settingsKeyFmt, name)
}

// TombstoneKey returns the object storage key for a dataset's tombstone.
func TombstoneKey(name string) string {
	return fmt.Sprintf(tombstoneKeyFmt, name)
}

// Loaded is a settings object loaded from storage, including its ETag.
type Loaded struct {
	Settings *Settings
	ETag     string
}

// Load loads dataset settings from object storage.
// Returns ErrNotFound if the dataset doesn't exist and ErrTombstoned if it
// has been deleted.
func (r *Registry) Load(ctx context.Context, name string) (*Loaded, error) {
	reader, info, err := r.store.Get(ctx, SettingsKey(name))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if settings.Deletion.Tombstoned {
		return nil, ErrTombstoned
	}

	return &Loaded{Settings: &settings, ETag: info.ETag}, nil
}

// Create creates settings for a new dataset if they don't exist.
// Uses PutIfAbsent to ensure atomic creation.
func (r *Registry) Create(ctx context.Context, name string) (*Loaded, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	settings := NewSettings(name)
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	info, err := r.store.PutIfAbsent(ctx, SettingsKey(name), bytes.NewReader(data), int64(len(data)), &objectstore.PutOptions{
		ContentType: "application/json",
	})
	if err != nil {
		if errors.Is(err, objectstore.ErrAlreadyExists) {
			return r.Load(ctx, name)
		}
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}

	return &Loaded{Settings: settings, ETag: info.ETag}, nil
}

// LoadOrCreate loads existing settings or creates them for a fresh dataset.
func (r *Registry) LoadOrCreate(ctx context.Context, name string) (*Loaded, error) {
	loaded, err := r.Load(ctx, name)
	if err == nil {
		return loaded, nil
	}
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, name)
	}
	return nil, err
}

// UpdateFunc mutates settings in place. Returning an error aborts the
// update.
type UpdateFunc func(settings *Settings) error

// Update applies an update function to the dataset settings using CAS.
// It retries on ETag mismatch up to maxCASRetries times; each retry re-reads
// the stored settings so the update function always sees the latest version.
func (r *Registry) Update(ctx context.Context, name string, update UpdateFunc) (*Loaded, error) {
	var lastErr error

	for i := 0; i < maxCASRetries; i++ {
		loaded, err := r.Load(ctx, name)
		if err != nil {
			return nil, err
		}

		settings := loaded.Settings.Clone()
		if settings == nil {
			return nil, errors.New("failed to clone settings")
		}
		if err := update(settings); err != nil {
			return nil, err
		}
		settings.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}

		info, err := r.store.PutIfMatch(ctx, SettingsKey(name), bytes.NewReader(data), int64(len(data)), loaded.ETag, &objectstore.PutOptions{
			ContentType: "application/json",
		})
		if err != nil {
			if errors.Is(err, objectstore.ErrPrecondition) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}

		return &Loaded{Settings: settings, ETag: info.ETag}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrCASRetryExhausted, lastErr)
}

// Tombstone is the deletion marker for a dataset.
type Tombstone struct {
	DeletedAt time.Time `json:"deleted_at"`
}

// Delete removes the dataset from the registry. A tombstone object is
// written first so readers racing the deletion see a consistent marker,
// then both the settings and the tombstone are removed, which lets a later
// bulk ingest recreate the dataset from scratch. The caller is responsible
// for dropping the record collection from the backend.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if _, err := r.Load(ctx, name); err != nil {
		return err
	}

	tombstone := &Tombstone{DeletedAt: time.Now().UTC()}
	data, err := json.Marshal(tombstone)
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}

	_, err = r.store.PutIfAbsent(ctx, TombstoneKey(name), bytes.NewReader(data), int64(len(data)), &objectstore.PutOptions{
		ContentType: "application/json",
	})
	if err != nil && !errors.Is(err, objectstore.ErrAlreadyExists) {
		return fmt.Errorf("failed to write tombstone: %w", err)
	}

	_, err = r.Update(ctx, name, func(settings *Settings) error {
		now := time.Now().UTC()
		settings.Deletion.Tombstoned = true
		settings.Deletion.TombstonedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	if err := r.store.Delete(ctx, SettingsKey(name)); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	if err := r.store.Delete(ctx, TombstoneKey(name)); err != nil {
		return fmt.Errorf("failed to delete tombstone: %w", err)
	}
	return nil
}

// List returns the names of all live datasets.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	var names []string
	marker := ""
	for {
		res, err := r.store.List(ctx, &objectstore.ListOptions{
			Prefix: "anno/datasets/",
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list datasets: %w", err)
		}
		for _, obj := range res.Objects {
			name, ok := nameFromSettingsKey(obj.Key)
			if !ok {
				continue
			}
			if _, err := r.Load(ctx, name); err != nil {
				continue
			}
			names = append(names, name)
		}
		if !res.IsTruncated {
			return names, nil
		}
		marker = res.NextMarker
	}
}

func nameFromSettingsKey(key string) (string, bool) {
	const prefix = "anno/datasets/"
	const suffix = "/meta/settings.json"
	if len(key) <= len(prefix)+len(suffix) {
		return "", false
	}
	if key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return "", false
	}
	return key[len(prefix) : len(key)-len(suffix)], true
}
