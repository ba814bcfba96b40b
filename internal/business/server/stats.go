package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/openkcm/oauth-server/internal/middleware/responsewriter"
)

// Stats are the process wide counters reported by the health endpoint.
type Stats struct {
	start         time.Time
	totalRequests atomic.Uint64
	totalBytes    atomic.Uint64
}

func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

type StatsSnapshot struct {
	UptimeMicros  int64  `json:"uptime_micros"`
	TotalRequests uint64 `json:"total_requests"`
	TotalBytes    uint64 `json:"total_bytes"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		UptimeMicros:  time.Since(s.start).Microseconds(),
		TotalRequests: s.totalRequests.Load(),
		TotalBytes:    s.totalBytes.Load(),
	}
}

// Middleware counts every request and the response bytes written for it. It
// must run inside responsewriter.ResponseWriterMiddleware.
func (s *Stats) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.totalRequests.Add(1)

		next.ServeHTTP(w, r)

		if ww, err := responsewriter.ResponseWriterFromContext(r.Context()); err == nil {
			s.totalBytes.Add(uint64(ww.BytesWritten()))
		}
	})
}
