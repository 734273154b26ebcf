package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// consoleOperations names the routes the console serves, keyed by method and
// chi route pattern.
var consoleOperations = map[string]string{
	"GET /api/console/state":                                  "console.state",
	"POST /api/console/reservations/load":                     "console.load",
	"DELETE /api/console/reservations/{id}":                   "console.remove",
	"PUT /api/console/selection":                              "console.select",
	"POST /api/console/modals/close":                          "console.modals.close",
	"POST /api/console/modals/{kind}":                         "console.modals.show",
	"GET /api/console/catalog":                                "console.catalog",
	"PUT /api/console/draft":                                  "console.draft.build",
	"PUT /api/console/draft/items/{productId}/{axis}/{index}": "console.draft.unit",
	"POST /api/console/draft/commit":                          "console.commit",
	"GET /api/console/draft/ticket":                           "console.ticket",
	"GET /ws/console":                                         "console.ws",
	"POST /internal/events/reservation":                       "internal.reservation_event",
	"GET /internal/stats":                                     "internal.stats",
	"GET /health":                                             "health",
}

// OperationName maps a request to its console operation. Unknown routes are
// named by method and pattern; requests that matched no route share one
// bucket so arbitrary paths cannot grow the stats.
func OperationName(method, pattern string) string {
	if op, ok := consoleOperations[method+" "+pattern]; ok {
		return op
	}
	if pattern == "" {
		return "unmatched"
	}
	return strings.ToLower(method) + " " + pattern
}

const latencySamples = 128

type operationWindow struct {
	requests uint64
	failures uint64
	samples  [latencySamples]time.Duration
	next     int
	filled   int
}

func (w *operationWindow) observe(d time.Duration, failed bool) {
	w.requests++
	if failed {
		w.failures++
	}
	w.samples[w.next] = d
	w.next = (w.next + 1) % latencySamples
	if w.filled < latencySamples {
		w.filled++
	}
}

func (w *operationWindow) quantiles() (p50, p95 time.Duration) {
	if w.filled == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, w.filled)
	copy(sorted, w.samples[:w.filled])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return nearestRank(sorted, 50), nearestRank(sorted, 95)
}

func nearestRank(sorted []time.Duration, pct int) time.Duration {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// OperationSummary is one operation's counters over the process lifetime and
// its latency quantiles over the most recent samples.
type OperationSummary struct {
	Operation string `json:"operation"`
	Requests  uint64 `json:"requests"`
	Failures  uint64 `json:"failures"`
	P50Millis int64  `json:"p50Ms"`
	P95Millis int64  `json:"p95Ms"`
}

// OperationStats aggregates request outcomes per console operation.
type OperationStats struct {
	mu  sync.Mutex
	ops map[string]*operationWindow
}

func NewOperationStats() *OperationStats {
	return &OperationStats{ops: make(map[string]*operationWindow)}
}

// Observe records one request. A failure is a 5xx; client errors are the
// caller's problem and do not count.
func (s *OperationStats) Observe(op string, d time.Duration, status int) (p50, p95 time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.ops[op]
	if w == nil {
		w = &operationWindow{}
		s.ops[op] = w
	}
	w.observe(d, status >= http.StatusInternalServerError)
	return w.quantiles()
}

func (s *OperationStats) Summary() []OperationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OperationSummary, 0, len(s.ops))
	for op, w := range s.ops {
		p50, p95 := w.quantiles()
		out = append(out, OperationSummary{
			Operation: op,
			Requests:  w.requests,
			Failures:  w.failures,
			P50Millis: p50.Milliseconds(),
			P95Millis: p95.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

type operationWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *operationWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *operationWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(data)
	w.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through.
func (w *operationWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return hijacker.Hijack()
}

func (w *operationWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Telemetry logs one line per request, labelled with its console operation,
// and feeds stats. Server errors are logged at warn level.
func Telemetry(logger *zap.Logger, stats *OperationStats) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = NewOperationStats()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ow := &operationWriter{ResponseWriter: w}
			next.ServeHTTP(ow, r)

			status := ow.status
			if status == 0 {
				status = http.StatusOK
			}
			pattern := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				pattern = rc.RoutePattern()
			}
			op := OperationName(r.Method, pattern)
			elapsed := time.Since(start)
			p50, p95 := stats.Observe(op, elapsed, status)

			fields := []zap.Field{
				zap.String("operation", op),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("requestId", RequestIDFrom(r.Context())),
				zap.Int("status", status),
				zap.Int("bytes", ow.bytes),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
				zap.Int64("p50_ms", p50.Milliseconds()),
				zap.Int64("p95_ms", p95.Milliseconds()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("console_request", fields...)
				return
			}
			logger.Info("console_request", fields...)
		})
	}
}
