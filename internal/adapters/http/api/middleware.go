package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/waypoint/pkg/metrics"
)

// MetricsMiddleware records request count, latency and failures of next
// under the route pattern.
func MetricsMiddleware(next http.HandlerFunc, pattern string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		status := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(pattern, r.Method, status)
		metrics.RecordHTTPRequestDuration(pattern, r.Method, status, float64(time.Since(start).Microseconds())/1000.0)
		if sw.status >= http.StatusBadRequest {
			metrics.RecordHTTPError(pattern, r.Method, statusCode(sw.status))
		}
	}
}

// statusCode names a failure status the way response bodies do.
func statusCode(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return codeInternal
	case status == http.StatusNotFound:
		return codeNotFound
	case status == http.StatusConflict:
		return codeConflict
	case status == http.StatusBadRequest:
		return codeBadRequest
	}
	return "client_error"
}

// statusWriter remembers the status written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
