// Package snapshot exports dataset records to object storage as
// zstd-compressed JSONL and restores them through the ingest pipeline.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/ingest"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/metrics"
	"github.com/annosearch/anno/internal/record"
	"github.com/annosearch/anno/pkg/objectstore"
)

const (
	FormatVersion = 1

	DataExtension     = ".jsonl.zst"
	ManifestExtension = ".manifest.json"
)

var (
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
	ErrNotFound         = errors.New("snapshot not found")
)

// Manifest describes one exported snapshot. The checksum covers the
// uncompressed JSONL payload.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	Dataset       string            `json:"dataset"`
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	Records       int               `json:"records"`
	Checksum      string            `json:"checksum"`
	DataKey       string            `json:"data_key"`
	DataBytes     int64             `json:"data_bytes"`
	Tags          map[string]string `json:"tags,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// Prefix is the object key prefix snapshots live under.
	Prefix string
	// BatchSize bounds how many records a restore feeds the processor at
	// once.
	BatchSize int
	Logger    *logging.Logger
}

// Manager exports and restores dataset snapshots.
type Manager struct {
	objects   objectstore.Store
	registry  *dataset.Registry
	store     backend.Store
	processor *ingest.Processor
	prefix    string
	batchSize int
	logger    *logging.Logger
	clock     func() time.Time
}

func NewManager(objects objectstore.Store, registry *dataset.Registry, store backend.Store, processor *ingest.Processor, opts Options) *Manager {
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	if prefix == "" {
		prefix = "anno/snapshots"
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Manager{
		objects:   objects,
		registry:  registry,
		store:     store,
		processor: processor,
		prefix:    prefix,
		batchSize: batchSize,
		logger:    logger,
		clock:     time.Now,
	}
}

// SetClock overrides the time source; for tests.
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

func (m *Manager) dataKey(name, id string) string {
	return fmt.Sprintf("%s/%s/%s%s", m.prefix, name, id, DataExtension)
}

func (m *Manager) manifestKey(name, id string) string {
	return fmt.Sprintf("%s/%s/%s%s", m.prefix, name, id, ManifestExtension)
}

// Export snapshots all records of a dataset. The dataset must exist; a
// dataset with no records yet exports an empty snapshot.
func (m *Manager) Export(ctx context.Context, name string) (manifest *Manifest, err error) {
	defer func() {
		var size int64
		if manifest != nil {
			size = manifest.DataBytes
		}
		metrics.ObserveSnapshot("export", size, err)
	}()

	loaded, err := m.registry.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	records, err := m.store.Scan(ctx, name, &backend.Plan{})
	if err != nil {
		if errors.Is(err, backend.ErrDatasetNotFound) {
			records = nil
		} else {
			return nil, err
		}
	}

	var jsonl bytes.Buffer
	hash := xxhash.New()
	enc := json.NewEncoder(io.MultiWriter(&jsonl, hash))
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
	}

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(jsonl.Bytes()); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	now := m.clock().UTC()
	id := fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), uuid.NewString()[:8])
	man := &Manifest{
		FormatVersion: FormatVersion,
		Dataset:       name,
		ID:            id,
		CreatedAt:     now,
		Records:       len(records),
		Checksum:      fmt.Sprintf("%016x", hash.Sum64()),
		DataKey:       m.dataKey(name, id),
		DataBytes:     int64(compressed.Len()),
		Tags:          loaded.Settings.Tags,
		Metadata:      loaded.Settings.Metadata,
	}

	if _, err := m.objects.Put(ctx, man.DataKey, bytes.NewReader(compressed.Bytes()), int64(compressed.Len()), &objectstore.PutOptions{ContentType: "application/zstd"}); err != nil {
		return nil, fmt.Errorf("writing snapshot data: %w", err)
	}
	manifestBytes, err := json.Marshal(man)
	if err != nil {
		return nil, err
	}
	if _, err := m.objects.PutIfAbsent(ctx, m.manifestKey(name, id), bytes.NewReader(manifestBytes), int64(len(manifestBytes)), &objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return nil, fmt.Errorf("writing snapshot manifest: %w", err)
	}

	m.logger.WithContext(ctx).Info("snapshot exported",
		"dataset", name,
		"snapshot_id", id,
		"records", man.Records,
		"compressed_bytes", man.DataBytes)
	return man, nil
}

// Restore re-ingests a snapshot into its dataset, creating the dataset if
// it no longer exists. Records flow through the ingest processor, so they
// merge with whatever the dataset currently holds.
func (m *Manager) Restore(ctx context.Context, name, id string) (result *ingest.Result, err error) {
	defer func() {
		metrics.ObserveSnapshot("restore", 0, err)
	}()

	man, err := m.Load(ctx, name, id)
	if err != nil {
		return nil, err
	}

	body, _, err := m.objects.Get(ctx, man.DataKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: data object %s", ErrNotFound, man.DataKey)
		}
		return nil, err
	}
	defer body.Close()

	zr, err := zstd.NewReader(body)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	jsonl, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot %s: %w", id, err)
	}
	if got := fmt.Sprintf("%016x", xxhash.Sum64(jsonl)); got != man.Checksum {
		return nil, fmt.Errorf("%w: snapshot %s has checksum %s, manifest says %s", ErrChecksumMismatch, id, got, man.Checksum)
	}

	var records []*record.Record
	scanner := bufio.NewScanner(bytes.NewReader(jsonl))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decoding snapshot record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(records) != man.Records {
		return nil, fmt.Errorf("snapshot %s holds %d records, manifest says %d", id, len(records), man.Records)
	}

	total := &ingest.Result{Dataset: name}
	for start := 0; start < len(records); start += m.batchSize {
		end := start + m.batchSize
		if end > len(records) {
			end = len(records)
		}
		bulk := &ingest.Bulk{Records: records[start:end]}
		if start == 0 {
			bulk.Tags = man.Tags
			bulk.Meta = man.Metadata
		}
		res, err := m.processor.Process(ctx, name, bulk)
		if err != nil {
			return nil, err
		}
		total.Processed += res.Processed
		total.Failed += res.Failed
	}
	if len(records) == 0 {
		// An empty snapshot still recreates the dataset and its tags.
		if _, err := m.processor.Process(ctx, name, &ingest.Bulk{Tags: man.Tags, Meta: man.Metadata}); err != nil {
			return nil, err
		}
	}

	m.logger.WithContext(ctx).Info("snapshot restored",
		"dataset", name,
		"snapshot_id", id,
		"processed", total.Processed,
		"failed", total.Failed)
	return total, nil
}

// Load fetches one snapshot manifest.
func (m *Manager) Load(ctx context.Context, name, id string) (*Manifest, error) {
	body, _, err := m.objects.Get(ctx, m.manifestKey(name, id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, id)
		}
		return nil, err
	}
	defer body.Close()

	var man Manifest
	if err := json.NewDecoder(body).Decode(&man); err != nil {
		return nil, fmt.Errorf("decoding manifest %s/%s: %w", name, id, err)
	}
	return &man, nil
}

// List returns the manifests of all snapshots of a dataset, newest first.
func (m *Manager) List(ctx context.Context, name string) ([]*Manifest, error) {
	prefix := fmt.Sprintf("%s/%s/", m.prefix, name)
	var manifests []*Manifest
	marker := ""
	for {
		res, err := m.objects.List(ctx, &objectstore.ListOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, obj := range res.Objects {
			if !strings.HasSuffix(obj.Key, ManifestExtension) {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), ManifestExtension)
			man, err := m.Load(ctx, name, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			manifests = append(manifests, man)
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})
	return manifests, nil
}

// Delete removes one snapshot's data and manifest objects.
func (m *Manager) Delete(ctx context.Context, name, id string) error {
	man, err := m.Load(ctx, name, id)
	if err != nil {
		return err
	}
	if err := m.objects.Delete(ctx, man.DataKey); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return err
	}
	if err := m.objects.Delete(ctx, m.manifestKey(name, id)); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return err
	}
	return nil
}
