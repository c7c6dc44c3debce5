package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Compile-time check.
var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory is a MetricFactory backed by client_golang. Dotted
// metric names become underscore names under the configured namespace,
// with "_total" appended to counters.
type PrometheusFactory struct {
	namespace  string
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory that registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusFactory(namespace string, reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		namespace:  namespace,
		registerer: reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory. Repeated calls return the same counter.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      MetricName(name) + "_total",
		Help:      "Total " + strings.ReplaceAll(name, ".", " "),
	})
	c = register(f.registerer, c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory. Repeated calls return the same histogram.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      MetricName(name),
		Help:      "Distribution of " + strings.ReplaceAll(name, ".", " "),
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
	})
	h = register(f.registerer, h)
	f.histograms[name] = h
	return h
}

// MetricName converts a dotted metric name into a Prometheus-safe one.
func MetricName(name string) string {
	name = strings.TrimPrefix(name, "ledger.")
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// register registers c, reusing an already registered collector of the
// same description.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
