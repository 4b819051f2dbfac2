package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets favour the sub-second range of a gateway round trip.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Registry exposes the subset of Prometheus registry functionality needed by the application.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	reg        prometheus.Registerer
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	namespace  string
	subsystem  string
}

// New registers collectors on the process-wide default registerer.
func New(namespace, subsystem string) Registry {
	return NewWithRegisterer(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewWithRegisterer registers collectors on reg. Tests pass a private prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer, namespace, subsystem string) Registry {
	return &registry{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		namespace:  namespace,
		subsystem:  subsystem,
	}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return &boundCounter{c: c.v.With(labelMap(labels))}
}

type boundCounter struct{ c prometheus.Counter }

func (b *boundCounter) Add(d float64) {
	if b == nil || b.c == nil {
		return
	}
	b.c.Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return &boundHistogram{o: h.v.With(labelMap(labels))}
}

type boundHistogram struct{ o prometheus.Observer }

func (b *boundHistogram) Observe(v float64) {
	if b == nil || b.o == nil {
		return
	}
	b.o.Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ensure only registered once
	if cv, ok := r.counters[name]; ok {
		return &counter{v: cv}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	r.reg.MustRegister(cv)
	r.counters[name] = cv
	return &counter{v: cv}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hv, ok := r.histograms[name]; ok {
		return &histogram{v: hv}
	}
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	r.reg.MustRegister(hv)
	r.histograms[name] = hv
	return &histogram{v: hv}
}
