// Package ingest implements bulk record writes: validation, normalization,
// status derivation, and the partial-merge upsert into the backend.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/metrics"
	"github.com/annosearch/anno/internal/record"
)

// ErrTooManyRecords is returned when a bulk request exceeds the configured
// per-call record cap.
var ErrTooManyRecords = errors.New("too many records in bulk request")

// Bulk is one bulk ingest request.
type Bulk struct {
	Records []*record.Record
	Tags    map[string]string
	Meta    map[string]any
}

// Result reports the outcome of a bulk ingest. Failed counts records that
// were rejected by validation; the rest were written.
type Result struct {
	Dataset   string `json:"dataset"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Processor runs bulk ingests against a dataset registry and a backend
// store.
type Processor struct {
	registry *dataset.Registry
	store    backend.Store
	policy   record.StatusPolicy
	logger   *logging.Logger
	maxBulk  int
	clock    func() time.Time
}

// Options configures a Processor. Zero values fall back to defaults.
type Options struct {
	Policy  record.StatusPolicy
	Logger  *logging.Logger
	MaxBulk int
}

// NewProcessor creates a bulk ingest processor.
func NewProcessor(registry *dataset.Registry, store backend.Store, opts Options) *Processor {
	policy := opts.Policy
	if policy == nil {
		policy = record.DefaultStatusPolicy
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	maxBulk := opts.MaxBulk
	if maxBulk <= 0 {
		maxBulk = 1000
	}
	return &Processor{
		registry: registry,
		store:    store,
		policy:   policy,
		logger:   logger,
		maxBulk:  maxBulk,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the ingest timestamp source. Test hook.
func (p *Processor) SetClock(clock func() time.Time) {
	p.clock = clock
}

// Process runs one bulk ingest. The dataset is created on first write.
// Dataset tags and metadata are merged even when every record fails
// validation: the request reached the dataset, so its annotations stick.
// Record failures never abort the batch.
func (p *Processor) Process(ctx context.Context, name string, bulk *Bulk) (*Result, error) {
	if len(bulk.Records) > p.maxBulk {
		return nil, ErrTooManyRecords
	}

	start := time.Now()
	if _, err := p.registry.LoadOrCreate(ctx, name); err != nil {
		return nil, err
	}
	if len(bulk.Tags) > 0 || len(bulk.Meta) > 0 {
		_, err := p.registry.Update(ctx, name, func(s *dataset.Settings) error {
			s.MergeTags(bulk.Tags)
			s.MergeMetadata(bulk.Meta)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	result := &Result{Dataset: name}
	log := p.logger.WithContext(ctx)

	for _, rec := range bulk.Records {
		if err := p.writeRecord(ctx, name, rec); err != nil {
			if errors.Is(err, backend.ErrUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			result.Failed++
			log.Warn("record rejected", "dataset", name, "record_id", rec.ID.String(), "error", err)
			continue
		}
		result.Processed++
	}

	metrics.ObserveBulk(name, result.Processed, result.Failed, time.Since(start).Seconds())
	return result, nil
}

func (p *Processor) writeRecord(ctx context.Context, name string, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := rec.Normalize(); err != nil {
		return err
	}
	if rec.EventTimestamp == nil {
		now := p.clock()
		rec.EventTimestamp = &now
	}
	// Derive a status only when the patch carries a signal for it. A
	// metadata-only patch keeps the stored status through the merge.
	if rec.Status != "" || rec.Annotation != nil {
		rec.Status = p.policy(rec)
	}

	_, err := p.store.Upsert(ctx, name, rec)
	return err
}
