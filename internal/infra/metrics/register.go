// Package metrics holds the harvest service's Prometheus collectors. Each
// file declares its collectors and enqueues them from init(); main registers
// the whole set once before the /metrics endpoint comes up.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister registers every enqueued harvest collector with the default
// Prometheus registry. Safe to call more than once; only the first call
// registers.
func MustRegister() {
	registerOnce.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}
