// Package metrics implements dependency-free counters, gauges and histograms
// with Prometheus text exposition. Counters use atomics; histograms take a
// mutex since they are only touched around network calls.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing number.
type Counter struct {
	name string
	help string
	val  int64
}

func (c *Counter) Inc()            { atomic.AddInt64(&c.val, 1) }
func (c *Counter) Add(delta int64) { atomic.AddInt64(&c.val, delta) }
func (c *Counter) Get() int64      { return atomic.LoadInt64(&c.val) }

// Gauge is an arbitrary number that can go up and down.
type Gauge struct {
	name string
	help string
	bits uint64 // float64 bits, accessed atomically
}

func (g *Gauge) Set(v float64) { atomic.StoreUint64(&g.bits, math.Float64bits(v)) }
func (g *Gauge) Get() float64  { return math.Float64frombits(atomic.LoadUint64(&g.bits)) }

// Histogram counts observations into fixed cumulative buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	buckets []float64 // sorted ascending, last is +Inf
	counts  []uint64
	sum     float64
	count   uint64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ub := range h.buckets {
		if v <= ub {
			h.counts[i]++
			break
		}
	}
	h.sum += v
	h.count++
}

// ObserveSince records the elapsed time since start, in seconds.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Registry holds all metrics. The zero value is not usable; use NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: sanitize(name), help: help}
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: sanitize(name), help: help}
	r.gauges[name] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sorted := append([]float64{}, buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{name: sanitize(name), help: help, buckets: sorted, counts: make([]uint64, len(sorted))}
	r.histograms[name] = h
	return h
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		r.mu.RLock()
		counters := sortedValues(r.counters)
		gauges := sortedValues(r.gauges)
		histograms := sortedValues(r.histograms)
		r.mu.RUnlock()

		for _, c := range counters {
			fmt.Fprintf(w, "# HELP %s %s\n", c.name, escapeHelp(c.help))
			fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(w, "%s %d\n", c.name, c.Get())
		}
		for _, g := range gauges {
			fmt.Fprintf(w, "# HELP %s %s\n", g.name, escapeHelp(g.help))
			fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(w, "%s %g\n", g.name, g.Get())
		}
		for _, h := range histograms {
			fmt.Fprintf(w, "# HELP %s %s\n", h.name, escapeHelp(h.help))
			fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
			h.mu.Lock()
			var cum uint64
			for i, ub := range h.buckets {
				cum += h.counts[i]
				le := fmt.Sprintf("%g", ub)
				if math.IsInf(ub, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, le, cum)
			}
			fmt.Fprintf(w, "%s_sum %g\n", h.name, h.sum)
			fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
			h.mu.Unlock()
		}
	})
}

type named interface{ metricName() string }

func (c *Counter) metricName() string   { return c.name }
func (g *Gauge) metricName() string     { return g.name }
func (h *Histogram) metricName() string { return h.name }

func sortedValues[T named](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func escapeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
