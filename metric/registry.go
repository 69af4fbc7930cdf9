package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/easternanemone/daqstreams/errors"
)

// Registry manages the core runtime metrics plus any driver-specific
// collectors registered at runtime.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	core               *Metrics

	mu         sync.Mutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a metrics registry with the core runtime metrics and
// Go runtime collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		core:               NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(r.core.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Core returns the core runtime metrics.
func (r *Registry) Core() *Metrics {
	return r.core
}

// Register adds a driver-specific collector under owner.name. Duplicate
// keys and Prometheus descriptor conflicts are rejected.
func (r *Registry) Register(owner, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapFatal(
			fmt.Errorf("metric %s already registered", key),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapFatal(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", key))
		}
		return errors.WrapFatal(err, "Registry", "Register", "prometheus registration")
	}

	r.registered[key] = c
	return nil
}

// Unregister removes a previously registered collector. Reports whether
// anything was removed.
func (r *Registry) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	c, exists := r.registered[key]
	if !exists {
		return false
	}
	if !r.prometheusRegistry.Unregister(c) {
		return false
	}
	delete(r.registered, key)
	return true
}
