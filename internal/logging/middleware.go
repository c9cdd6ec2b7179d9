package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DatasetFromPath extracts the dataset name from an API request path.
// Route values are not visible outside the mux, so this parses the
// /api/datasets/{name} prefix directly.
func DatasetFromPath(path string) string {
	const prefix = "/api/datasets/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware creates an HTTP middleware that logs requests.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			endpoint := r.Method + " " + r.URL.Path
			dataset := DatasetFromPath(r.URL.Path)

			ctx := r.Context()
			ctx = ContextWithRequestID(ctx, requestID)
			ctx = ContextWithRequestTime(ctx, start)
			ctx = ContextWithEndpoint(ctx, endpoint)
			if dataset != "" {
				ctx = ContextWithDataset(ctx, dataset)
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(rw, r.WithContext(ctx))

			elapsed := float64(time.Since(start).Microseconds()) / 1000.0
			info := &RequestInfo{
				RequestID:     requestID,
				Dataset:       dataset,
				Endpoint:      endpoint,
				ServerTotalMs: elapsed,
			}

			logger.WithRequestInfo(info).Info("request completed",
				"status", rw.statusCode,
				"method", r.Method,
				"path", r.URL.Path,
			)
		})
	}
}
