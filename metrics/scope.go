// Package metrics provides a small Prometheus-backed stats collector used
// by the validation accumulator to count pass/warn/fail outcomes per check
// key, without requiring callers who don't care about metrics to wire
// anything up.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Scope is a stats collector that tags the stats it collects with a
// period-joined scope prefix (promScope records it as the "scope" label).
type Scope interface {
	NewScope(scopes ...string) Scope

	Inc(stat string, value int64) error

	MustRegister(...prometheus.Collector)
}

// promScope is a Scope that sends data to Prometheus. Counters are created
// lazily on first use and cached, so callers never need to pre-register the
// full set of validation check keys.
type promScope struct {
	prometheus.Registerer
	prefix string

	mu       *sync.Mutex
	counters map[string]*prometheus.CounterVec
}

var _ Scope = &promScope{}

// NewPromScope returns a Scope that sends data to Prometheus via registerer.
func NewPromScope(registerer prometheus.Registerer, scopes ...string) Scope {
	return &promScope{
		Registerer: registerer,
		prefix:     strings.Join(scopes, "."),
		mu:         &sync.Mutex{},
		counters:   make(map[string]*prometheus.CounterVec),
	}
}

// NewScope generates a new Scope prefixed by this Scope's prefix plus the
// given scopes joined by periods.
func (s *promScope) NewScope(scopes ...string) Scope {
	scope := strings.Join(scopes, ".")
	prefix := scope
	if s.prefix != "" {
		prefix = s.prefix + "." + scope
	}
	return &promScope{
		Registerer: s.Registerer,
		prefix:     prefix,
		mu:         s.mu,
		counters:   s.counters,
	}
}

// Inc increments the named stat, labeled by the Scope's prefix.
func (s *promScope) Inc(stat string, value int64) error {
	name := sanitize(stat)
	s.mu.Lock()
	cv, ok := s.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: "count of " + stat + " occurrences",
		}, []string{"scope"})
		if err := s.Registerer.Register(cv); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				cv = are.ExistingCollector.(*prometheus.CounterVec)
			} else {
				s.mu.Unlock()
				return err
			}
		}
		s.counters[name] = cv
	}
	s.mu.Unlock()
	cv.WithLabelValues(s.prefix).Add(float64(value))
	return nil
}

func (s *promScope) MustRegister(cs ...prometheus.Collector) {
	s.Registerer.MustRegister(cs...)
}

func sanitize(stat string) string {
	return "provisioning_cms_" + strings.NewReplacer(".", "_", "-", "_").Replace(stat)
}

type noopScope struct{}

// NewNoopScope returns a Scope that won't collect anything.
func NewNoopScope() Scope {
	return noopScope{}
}

func (ns noopScope) NewScope(scopes ...string) Scope { return ns }
func (noopScope) Inc(stat string, value int64) error { return nil }
func (noopScope) MustRegister(...prometheus.Collector) {}
