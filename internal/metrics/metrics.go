package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:status_class -> count

	// Application metrics
	activeChatStreams int64

	// Custom counters
	counters map[string]*uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	buckets    []float64
	bucketVals []uint64
}

// NewHistogram creates a new histogram with default buckets
func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		counters:        make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

// global metrics instance
var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", normalizeEndpoint(path), method)

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	counter := m.requestCount[key]
	hist := m.requestDuration[key]

	if statusCode >= 400 {
		errKey := fmt.Sprintf("%s:%dxx", normalizeEndpoint(path), statusCode/100)
		if m.requestErrors[errKey] == nil {
			var zero uint64
			m.requestErrors[errKey] = &zero
		}
		atomic.AddUint64(m.requestErrors[errKey], 1)
	}
	m.mu.Unlock()

	atomic.AddUint64(counter, 1)
	hist.Observe(duration.Seconds())
}

// IncCounter increments a named counter
func (m *Metrics) IncCounter(name string) {
	m.mu.Lock()
	if m.counters[name] == nil {
		var zero uint64
		m.counters[name] = &zero
	}
	counter := m.counters[name]
	m.mu.Unlock()

	atomic.AddUint64(counter, 1)
}

// CounterValue returns the current value of a named counter
func (m *Metrics) CounterValue(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.counters[name]; c != nil {
		return atomic.LoadUint64(c)
	}
	return 0
}

// ChatStreamOpened increments the active chat websocket gauge
func (m *Metrics) ChatStreamOpened() {
	atomic.AddInt64(&m.activeChatStreams, 1)
}

// ChatStreamClosed decrements the active chat websocket gauge
func (m *Metrics) ChatStreamClosed() {
	atomic.AddInt64(&m.activeChatStreams, -1)
}

// ActiveChatStreams returns the current gauge value
func (m *Metrics) ActiveChatStreams() int64 {
	return atomic.LoadInt64(&m.activeChatStreams)
}

// normalizeEndpoint collapses path parameters so metrics aggregate per
// route rather than per resource id.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if looksLikeID(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) == 36 && strings.Count(s, "-") == 4 {
		return true
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits > 0 && digits == len(s)
}

// Handler returns an HTTP handler exposing metrics in a plain text format
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		var b strings.Builder
		fmt.Fprintf(&b, "uptime_seconds %d\n", int64(time.Since(m.startTime).Seconds()))
		fmt.Fprintf(&b, "active_chat_streams %d\n", m.ActiveChatStreams())

		m.mu.RLock()
		defer m.mu.RUnlock()

		keys := make([]string, 0, len(m.requestCount))
		for k := range m.requestCount {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "request_count{endpoint=%q} %d\n", k, atomic.LoadUint64(m.requestCount[k]))
		}

		names := make([]string, 0, len(m.counters))
		for k := range m.counters {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, "%s %d\n", k, atomic.LoadUint64(m.counters[k]))
		}

		w.Write([]byte(b.String()))
	}
}
