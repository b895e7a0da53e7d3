// Package metrics exposes the Prometheus counters and histograms the GSUP
// front-end updates as it accepts connections, frames and forwards
// procedures to the external provisioner. Metric names are namespaced with
// the configured prefix (default hlr_gsup) so the registry can be shared
// with other collectors exposed through the admin surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by the connection state machine and
// provisioner client.
type Metrics struct {
	ConnectionsOpen          prometheus.Gauge
	ConnectionsTotal         prometheus.Counter
	FramesReceivedTotal      *prometheus.CounterVec
	FramesSentTotal          *prometheus.CounterVec
	ProvisionerRequestsTotal prometheus.Counter
	ProvisionerFailuresTotal prometheus.Counter
	UpdateLocationDuration   prometheus.Histogram
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New registers a fresh set of collectors under namespace against registry.
func New(namespace string, registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of currently open GSUP/IPA connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted GSUP/IPA connections.",
		}),
		FramesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "IPA frames received, labeled by protocol byte kind.",
		}, []string{"kind"}),
		FramesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "IPA frames sent, labeled by protocol byte kind.",
		}, []string{"kind"}),
		ProvisionerRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioner_requests_total",
			Help:      "Total requests issued to the external auth/provisioner service.",
		}),
		ProvisionerFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioner_failures_total",
			Help:      "Total failed (non-2xx or transport error) provisioner requests.",
		}),
		UpdateLocationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_location_duration_seconds",
			Help:      "End-to-end duration of an Update Location procedure.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.ConnectionsOpen,
		m.ConnectionsTotal,
		m.FramesReceivedTotal,
		m.FramesSentTotal,
		m.ProvisionerRequestsTotal,
		m.ProvisionerFailuresTotal,
		m.UpdateLocationDuration,
	)

	return m
}

// Init registers the global metrics set. Safe to call more than once; only
// the first call takes effect.
func Init(namespace string, registry prometheus.Registerer) *Metrics {
	globalOnce.Do(func() {
		global = New(namespace, registry)
	})
	return global
}

// Get returns the global metrics set, or a detached unregistered one if
// Init was never called (e.g. in tests).
func Get() *Metrics {
	if global == nil {
		return New("hlr_gsup_test", prometheus.NewRegistry())
	}
	return global
}
