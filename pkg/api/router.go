// Package api exposes the HTTP surface: dataset management, bulk ingest,
// search, snapshots, health, and metrics.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/config"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/ingest"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/record"
	"github.com/annosearch/anno/internal/search"
	"github.com/annosearch/anno/internal/snapshot"
	"github.com/annosearch/anno/pkg/objectstore"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(nil)
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

type Router struct {
	cfg       *config.Config
	mux       *http.ServeMux
	handler   http.Handler
	logger    *logging.Logger
	registry  *dataset.Registry
	store     backend.Store
	processor *ingest.Processor
	engine    *search.Engine
	snapshots *snapshot.Manager
}

// NewRouter wires the full request pipeline on top of one object store and
// one search backend.
func NewRouter(cfg *config.Config, objects objectstore.Store, store backend.Store, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.New()
	}

	registry := dataset.NewRegistry(objects)
	processor := ingest.NewProcessor(registry, store, ingest.Options{
		Logger:  logger,
		MaxBulk: cfg.Ingest.GetMaxBulkRecords(),
	})

	stemLanguage := ""
	if cfg.Search.WordCloudStemming {
		stemLanguage = "english"
	}
	engine := search.NewEngine(store, registry, search.Options{
		DefaultPageSize: cfg.Search.GetDefaultPageSize(),
		MaxPageSize:     cfg.Search.GetMaxPageSize(),
		StemLanguage:    stemLanguage,
		Logger:          logger,
	})

	snapshots := snapshot.NewManager(objects, registry, store, processor, snapshot.Options{
		Prefix:    cfg.Snapshot.GetPrefix(),
		BatchSize: cfg.Snapshot.GetScanPageSize(),
		Logger:    logger,
	})

	r := &Router{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		registry:  registry,
		store:     store,
		processor: processor,
		engine:    engine,
		snapshots: snapshots,
	}

	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /metrics", r.handleMetrics)
	r.mux.HandleFunc("GET /api/datasets", r.authMiddleware(r.handleListDatasets))
	r.mux.HandleFunc("GET /api/datasets/{name}", r.authMiddleware(r.handleGetDataset))
	r.mux.HandleFunc("DELETE /api/datasets/{name}", r.authMiddleware(r.handleDeleteDataset))
	r.mux.HandleFunc("POST /api/datasets/{name}/TextClassification:bulk", r.authMiddleware(r.writeTimeoutMiddleware(r.handleBulk)))
	r.mux.HandleFunc("POST /api/datasets/{name}/TextClassification:search", r.authMiddleware(r.searchTimeoutMiddleware(r.handleSearch)))
	r.mux.HandleFunc("POST /api/datasets/{name}/snapshots", r.authMiddleware(r.writeTimeoutMiddleware(r.handleCreateSnapshot)))
	r.mux.HandleFunc("GET /api/datasets/{name}/snapshots", r.authMiddleware(r.handleListSnapshots))
	r.mux.HandleFunc("POST /api/datasets/{name}/snapshots/{id}/restore", r.authMiddleware(r.writeTimeoutMiddleware(r.handleRestoreSnapshot)))
	r.mux.HandleFunc("DELETE /api/datasets/{name}/snapshots/{id}", r.authMiddleware(r.handleDeleteSnapshot))

	r.handler = logging.Middleware(logger)(r.mux)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.ContentLength > MaxRequestBodySize {
		r.writeAPIError(w, ErrBadRequest("request body exceeds size limit"))
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, MaxRequestBodySize)
	req.Body = decompressBody(req)

	if strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			gz.Close()
			gzipWriterPool.Put(gz)
		}()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		r.handler.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, req)
		return
	}

	r.handler.ServeHTTP(w, req)
}

func decompressBody(req *http.Request) io.ReadCloser {
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return gz
	}
	return req.Body
}

func (r *Router) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.AuthToken == "" {
			next(w, req)
			return
		}

		auth := req.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			r.writeAPIError(w, ErrUnauthorized("missing or invalid Authorization header"))
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != r.cfg.AuthToken {
			r.writeAPIError(w, ErrUnauthorized("invalid token"))
			return
		}
		next(w, req)
	}
}

func (r *Router) timeoutMiddleware(timeoutMs int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
		next(w, req.WithContext(ctx))
	}
}

func (r *Router) searchTimeoutMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return r.timeoutMiddleware(r.cfg.Timeout.GetSearchTimeout(), next)
}

func (r *Router) writeTimeoutMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return r.timeoutMiddleware(r.cfg.Timeout.GetWriteTimeout(), next)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	promhttp.Handler().ServeHTTP(w, req)
}

type datasetResponse struct {
	Name      string            `json:"name"`
	Task      string            `json:"task"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Tags      map[string]string `json:"tags"`
	Metadata  map[string]any    `json:"metadata"`
}

func toDatasetResponse(s *dataset.Settings) *datasetResponse {
	tags := s.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	meta := s.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &datasetResponse{
		Name:      s.Name,
		Task:      s.Task,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Tags:      tags,
		Metadata:  meta,
	}
}

func (r *Router) handleListDatasets(w http.ResponseWriter, req *http.Request) {
	names, err := r.registry.List(req.Context())
	if err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}

	datasets := make([]*datasetResponse, 0, len(names))
	for _, name := range names {
		loaded, err := r.registry.Load(req.Context(), name)
		if err != nil {
			if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrTombstoned) {
				continue
			}
			r.writeAPIError(w, mapError(err))
			return
		}
		datasets = append(datasets, toDatasetResponse(loaded.Settings))
	}
	r.writeJSON(w, http.StatusOK, datasets)
}

func (r *Router) handleGetDataset(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	loaded, err := r.registry.Load(req.Context(), name)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrTombstoned) {
			r.writeAPIError(w, ErrDatasetNotFound(name))
			return
		}
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, toDatasetResponse(loaded.Settings))
}

// handleDeleteDataset removes a dataset and its records. Deleting a dataset
// that does not exist succeeds; the call reports whether anything was
// removed.
func (r *Router) handleDeleteDataset(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")

	deleted := true
	if err := r.registry.Delete(req.Context(), name); err != nil {
		if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrTombstoned) {
			deleted = false
		} else {
			r.writeAPIError(w, mapError(err))
			return
		}
	}
	if err := r.store.DeleteDataset(req.Context(), name); err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"deleted": deleted,
	})
}

type bulkRequest struct {
	Records  []*record.Record  `json:"records"`
	Tags     map[string]string `json:"tags,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

func (r *Router) handleBulk(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")

	var body bulkRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeAPIError(w, ErrInvalidJSON())
		return
	}

	result, err := r.processor.Process(req.Context(), name, &ingest.Bulk{
		Records: body.Records,
		Tags:    body.Tags,
		Meta:    body.Metadata,
	})
	if err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")

	page, apiErr := parsePage(req)
	if apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	searchReq := &search.Request{}
	if req.Body != nil {
		if err := json.NewDecoder(req.Body).Decode(searchReq); err != nil && !errors.Is(err, io.EOF) {
			r.writeAPIError(w, ErrInvalidJSON())
			return
		}
	}

	resp, err := r.engine.Search(req.Context(), name, searchReq, page)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrTombstoned) {
			r.writeAPIError(w, ErrDatasetNotFound(name))
			return
		}
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, resp)
}

func parsePage(req *http.Request) (search.Page, *APIError) {
	page := search.Page{From: 0, Limit: -1}
	q := req.URL.Query()

	if raw := q.Get("from"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, ErrBadRequest("from must be a non-negative integer")
		}
		page.From = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, ErrBadRequest("limit must be a non-negative integer")
		}
		page.Limit = v
	}
	return page, nil
}

func (r *Router) handleCreateSnapshot(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	man, err := r.snapshots.Export(req.Context(), name)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrTombstoned) {
			r.writeAPIError(w, ErrDatasetNotFound(name))
			return
		}
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusCreated, man)
}

func (r *Router) handleListSnapshots(w http.ResponseWriter, req *http.Request) {
	manifests, err := r.snapshots.List(req.Context(), req.PathValue("name"))
	if err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}
	if manifests == nil {
		manifests = []*snapshot.Manifest{}
	}
	r.writeJSON(w, http.StatusOK, manifests)
}

func (r *Router) handleRestoreSnapshot(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	id := req.PathValue("id")
	result, err := r.snapshots.Restore(req.Context(), name, id)
	if err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleDeleteSnapshot(w http.ResponseWriter, req *http.Request) {
	if err := r.snapshots.Delete(req.Context(), req.PathValue("name"), req.PathValue("id")); err != nil {
		r.writeAPIError(w, mapError(err))
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (r *Router) writeAPIError(w http.ResponseWriter, err *APIError) {
	r.writeJSON(w, err.StatusCode, ErrorResponse{
		Detail: ErrorDetail{
			Code:   err.Code,
			Params: ErrorParams{Message: err.Message},
		},
	})
}
