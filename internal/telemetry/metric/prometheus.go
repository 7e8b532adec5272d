// Package metric provides Prometheus metrics for licmesh.
//
// It exposes ledger transition counts, credential issuance and
// verification outcomes and reconciler progress in Prometheus format.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licmesh"

// Registry holds all application metrics. A nil *Registry is valid and
// records nothing, so components can take it as an optional dependency.
type Registry struct {
	reg *prometheus.Registry

	// Ledger metrics
	Transitions *prometheus.CounterVec // op, result
	Events      *prometheus.CounterVec // type

	// Access metrics
	CredentialsIssued   *prometheus.CounterVec // result
	CredentialsVerified *prometheus.CounterVec // result

	// Reconciler metrics
	Invalidations   prometheus.Counter
	EventsDiscarded prometheus.Counter
	EventsParked    prometheus.Counter
	ReconcileLag    prometheus.Gauge

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec // route, status
	Authentications *prometheus.CounterVec   // result
	Forwards        *prometheus.CounterVec   // result
}

// NewRegistry creates the metric set and registers it, together with the
// Go runtime and process collectors, on a fresh prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transitions_total",
			Help:      "Ledger transition attempts by operation and result code",
		}, []string{"op", "result"}),

		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Committed ledger events by type",
		}, []string{"type"}),

		CredentialsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "credentials_issued_total",
			Help:      "Access issuance attempts by result code",
		}, []string{"result"}),

		CredentialsVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "credentials_verified_total",
			Help:      "Credential verifications by outcome",
		}, []string{"result"}),

		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "invalidations_total",
			Help:      "Token-level credential invalidations applied",
		}),

		EventsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "events_discarded_total",
			Help:      "Events dropped because their sequence was not newer than the token watermark",
		}),

		EventsParked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "events_parked_total",
			Help:      "Events parked after exhausting retries",
		}),

		ReconcileLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "lag_events",
			Help:      "Committed events not yet processed by the reconciler",
		}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),

		Authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "authentications_total",
			Help:      "API key authentication attempts by result code",
		}, []string{"result"}),
		Forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "leader_forwards_total",
			Help:      "Ledger writes a follower forwarded to the leader, by result",
		}, []string{"result"}),
	}

	r.reg.MustRegister(
		r.Transitions,
		r.Events,
		r.CredentialsIssued,
		r.CredentialsVerified,
		r.Invalidations,
		r.EventsDiscarded,
		r.EventsParked,
		r.ReconcileLag,
		r.RequestDuration,
		r.Authentications,
		r.Forwards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry for components that register
// their own collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.reg.MustRegister(cs...)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveTransition counts a transition attempt. code is empty on success.
func (r *Registry) ObserveTransition(op, code string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(op, resultLabel(code)).Inc()
}

// ObserveEvent counts a committed event.
func (r *Registry) ObserveEvent(typ string) {
	if r == nil {
		return
	}
	r.Events.WithLabelValues(typ).Inc()
}

// ObserveIssue counts an issuance attempt. code is empty on success.
func (r *Registry) ObserveIssue(code string) {
	if r == nil {
		return
	}
	r.CredentialsIssued.WithLabelValues(resultLabel(code)).Inc()
}

// ObserveVerify counts a verification outcome.
func (r *Registry) ObserveVerify(result string) {
	if r == nil {
		return
	}
	r.CredentialsVerified.WithLabelValues(result).Inc()
}

// ObserveAuth counts an API key authentication by result code; "" is ok.
func (r *Registry) ObserveAuth(code string) {
	if r == nil {
		return
	}
	r.Authentications.WithLabelValues(resultLabel(code)).Inc()
}

// ObserveForward counts a forwarded write: "ok" when the leader answered,
// "unreachable" when it did not.
func (r *Registry) ObserveForward(result string) {
	if r == nil {
		return
	}
	r.Forwards.WithLabelValues(result).Inc()
}

// IncInvalidations counts an applied invalidation.
func (r *Registry) IncInvalidations() {
	if r == nil {
		return
	}
	r.Invalidations.Inc()
}

// IncDiscarded counts a discarded stale event.
func (r *Registry) IncDiscarded() {
	if r == nil {
		return
	}
	r.EventsDiscarded.Inc()
}

// IncParked counts a parked poison event.
func (r *Registry) IncParked() {
	if r == nil {
		return
	}
	r.EventsParked.Inc()
}

// SetReconcileLag records reconciler lag.
func (r *Registry) SetReconcileLag(n uint64) {
	if r == nil {
		return
	}
	r.ReconcileLag.Set(float64(n))
}

// ObserveRequest records an HTTP request.
func (r *Registry) ObserveRequest(route, status string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}

func resultLabel(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}
