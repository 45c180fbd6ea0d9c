package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't
// match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrDuplicateMetric is returned when a name is registered twice.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// Type is the exposition type of a metric.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
)

// Metric is implemented by every registered metric.
type Metric interface {
	Name() string
	Help() string
	Type() Type
	// Collect returns the samples to expose, in a stable order.
	Collect() []Sample
}

// Sample is a single exposed value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// atomicFloat64 stores the bits of a float64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// family holds one child per label combination.
type family[V any] struct {
	name       string
	help       string
	labelNames []string
	newValue   func() *V

	mu       sync.RWMutex
	children map[string]*child[V]
}

type child[V any] struct {
	labels map[string]string
	value  *V
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

func (f *family[V]) with(values []string) (*V, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s expects %d labels, got %d", ErrLabelCountMismatch, f.name, len(f.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.children[key]; ok {
		return c.value, nil
	}
	labels := make(map[string]string, len(values))
	for i, name := range f.labelNames {
		labels[name] = values[i]
	}
	c = &child[V]{labels: labels, value: f.newValue()}
	f.children[key] = c
	return c.value, nil
}

// each visits children sorted by label values.
func (f *family[V]) each(fn func(labels map[string]string, v *V)) {
	f.mu.RLock()
	keys := make([]string, 0, len(f.children))
	for k := range f.children {
		keys = append(keys, k)
	}
	children := make(map[string]*child[V], len(f.children))
	for k, c := range f.children {
		children[k] = c
	}
	f.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		fn(children[k].labels, children[k].value)
	}
}

// Counter is a monotonically increasing metric.
type Counter struct {
	family[atomicFloat64]
}

// Type returns TypeCounter.
func (c *Counter) Type() Type { return TypeCounter }

// Inc adds one to the counter for the label values.
func (c *Counter) Inc(labels ...string) error {
	v, err := c.with(labels)
	if err != nil {
		return err
	}
	v.Add(1)
	return nil
}

// Value returns the current count for the label values.
func (c *Counter) Value(labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := c.children[strings.Join(labels, "\x00")]; ok {
		return ch.value.Load()
	}
	return 0
}

// Collect returns one sample per label combination.
func (c *Counter) Collect() []Sample {
	var out []Sample
	c.each(func(labels map[string]string, v *atomicFloat64) {
		out = append(out, Sample{Name: c.name, Labels: labels, Value: v.Load()})
	})
	return out
}

// GaugeFunc reports values computed at scrape time.
type GaugeFunc struct {
	name       string
	help       string
	labelNames []string
	fn         func() map[string]float64
}

func (g *GaugeFunc) Name() string { return g.name }
func (g *GaugeFunc) Help() string { return g.help }

// Type returns TypeGauge.
func (g *GaugeFunc) Type() Type { return TypeGauge }

// Collect calls the gauge function. With one label name, the map keys are
// its values; without labels the "" key is reported.
func (g *GaugeFunc) Collect() []Sample {
	values := g.fn()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Sample, 0, len(keys))
	for _, k := range keys {
		var labels map[string]string
		if len(g.labelNames) == 1 {
			labels = map[string]string{g.labelNames[0]: k}
		}
		out = append(out, Sample{Name: g.name, Labels: labels, Value: values[k]})
	}
	return out
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	family[histogramValue]
	buckets []float64
}

type histogramValue struct {
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

// Type returns TypeHistogram.
func (h *Histogram) Type() Type { return TypeHistogram }

// Observe records value for the label values.
func (h *Histogram) Observe(value float64, labels ...string) error {
	v, err := h.with(labels)
	if err != nil {
		return err
	}
	if i, ok := slices.BinarySearch(h.buckets, value); ok || i < len(h.buckets) {
		v.counts[i].Add(1)
	}
	v.sum.Add(value)
	v.count.Add(1)
	return nil
}

// Collect returns cumulative buckets, _sum and _count per label combination.
func (h *Histogram) Collect() []Sample {
	var out []Sample
	h.each(func(labels map[string]string, v *histogramValue) {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += v.counts[i].Load()
			le := make(map[string]string, len(labels)+1)
			for k, val := range labels {
				le[k] = val
			}
			le["le"] = formatFloat(bound)
			out = append(out, Sample{Name: h.name + "_bucket", Labels: le, Value: float64(cumulative)})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: labels, Value: v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(v.count.Load())},
		)
	})
	return out
}

// Registry holds the metrics of one server.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{family: family[atomicFloat64]{
		name:       name,
		help:       help,
		labelNames: labels,
		newValue:   func() *atomicFloat64 { return &atomicFloat64{} },
		children:   make(map[string]*child[atomicFloat64]),
	}}
	r.register(c)
	return c
}

// NewGaugeFunc registers a gauge computed by fn at scrape time. At most one
// label is supported.
func (r *Registry) NewGaugeFunc(name, help string, fn func() map[string]float64, labels ...string) *GaugeFunc {
	if len(labels) > 1 {
		panic(fmt.Sprintf("gauge %s: at most one label is supported", name))
	}
	g := &GaugeFunc{name: name, help: help, labelNames: labels, fn: fn}
	r.register(g)
	return g
}

// NewHistogram creates and registers a histogram. A +Inf bucket is added.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	sorted := slices.Clone(buckets)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{buckets: sorted}
	h.family = family[histogramValue]{
		name:       name,
		help:       help,
		labelNames: labels,
		newValue: func() *histogramValue {
			return &histogramValue{counts: make([]atomic.Uint64, len(sorted))}
		},
		children: make(map[string]*child[histogramValue]),
	}
	r.register(h)
	return h
}

// register panics on duplicate names, which would produce invalid output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[m.Name()] {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = true
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric in the Prometheus text format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	metrics := slices.Clone(r.metrics)
	r.mu.RUnlock()

	var b strings.Builder
	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
		fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			if len(s.Labels) == 0 {
				fmt.Fprintf(&b, "%s %s\n", s.Name, formatFloat(s.Value))
			} else {
				fmt.Fprintf(&b, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
			}
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = r.WriteTo(w)
	})
}

// formatLabels formats labels as key="value" pairs sorted by key.
func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabelValue(labels[k]) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%g", v)
	}
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func escapeLabelValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

// DurationBuckets are histogram buckets in seconds sized for mock delays,
// from immediate answers to multi-second simulated latency.
var DurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
