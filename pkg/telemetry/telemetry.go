// Package telemetry is minimal, low-overhead request telemetry for the
// reader API. By default only slow requests are logged; full span traces
// are recorded for a very small sample of requests.
package telemetry

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"mikradb/pkg/logger"
)

type ctxKeyType struct{}

var (
	requestCtr    uint64
	spanCtr       uint64
	sampleRate    = 0.001
	slowThreshold = 200 * time.Millisecond
)

// Span is a simple span relative to request start (milliseconds).
type Span struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Op       string `json:"op"`
	StartMs  int64  `json:"start_ms"`
	Duration int64  `json:"duration_ms"`
}

// Telemetry holds the per-request trace and metadata.
type Telemetry struct {
	RequestID string `json:"request_id"`
	Op        string `json:"op"`
	Duration  int64  `json:"duration_ms"`
	Status    int    `json:"status"`
	Spans     []Span `json:"spans,omitempty"`

	startTime time.Time
	mu        sync.Mutex
	spanStack []string
}

// Middleware wraps the handler and records request timing plus sampled spans.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()

		var tel *Telemetry
		if shouldSample() {
			tel = &Telemetry{
				RequestID: reqID,
				Op:        r.URL.Path,
				startTime: start,
			}
			rootID := genSpanID()
			tel.Spans = append(tel.Spans, Span{ID: rootID, Op: tel.Op})
			tel.spanStack = append(tel.spanStack, rootID)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyType{}, tel))
		}

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		if tel != nil {
			tel.mu.Lock()
			tel.Status = srw.status
			tel.Duration = dur.Milliseconds()
			logger.Debug("request_trace", "request_id", tel.RequestID, "op", tel.Op,
				"status", tel.Status, "duration_ms", tel.Duration, "spans", len(tel.Spans))
			tel.mu.Unlock()
		}
		if dur >= slowThreshold {
			logger.Warn("slow_request", "request_id", reqID, "method", r.Method,
				"path", r.URL.Path, "status", srw.status, "duration_ms", dur.Milliseconds())
		}
	})
}

// StartSpan records a child span when the request is sampled; the returned
// func closes the span. A no-op otherwise.
func StartSpan(ctx context.Context, name string) func() {
	tel, ok := ctx.Value(ctxKeyType{}).(*Telemetry)
	if !ok {
		return func() {}
	}
	startRel := time.Since(tel.startTime).Milliseconds()
	id := genSpanID()

	tel.mu.Lock()
	parent := ""
	if len(tel.spanStack) > 0 {
		parent = tel.spanStack[len(tel.spanStack)-1]
	}
	tel.Spans = append(tel.Spans, Span{ID: id, ParentID: parent, Op: name, StartMs: startRel})
	idx := len(tel.Spans) - 1
	tel.spanStack = append(tel.spanStack, id)
	tel.mu.Unlock()

	return func() {
		tel.mu.Lock()
		tel.Spans[idx].Duration = time.Since(tel.startTime).Milliseconds() - startRel
		if n := len(tel.spanStack); n > 0 && tel.spanStack[n-1] == id {
			tel.spanStack = tel.spanStack[:n-1]
		}
		tel.mu.Unlock()
	}
}

func shouldSample() bool {
	return rand.Float64() < sampleRate
}

func genRequestID() string {
	return fmt.Sprintf("req-%d", atomic.AddUint64(&requestCtr, 1))
}

func genSpanID() string {
	return fmt.Sprintf("span-%d", atomic.AddUint64(&spanCtr, 1))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
