// Package metrics expone contadores Prometheus del motor de cría.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	transitions   *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	pairingChecks *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New registra los contadores en reg. Con reg == nil se usa un registry
// propio (tests, o varios routers en el mismo proceso).
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breeding",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by name and result.",
		}, []string{"transition", "result"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breeding",
			Name:      "rollbacks_total",
			Help:      "Optimistic local changes restored after a remote failure.",
		}, []string{"collection"}),
		pairingChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breeding",
			Name:      "pairing_checks_total",
			Help:      "Pairing compatibility evaluations by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(r.transitions, r.rollbacks, r.pairingChecks)
	return r
}

// Transition cuenta una transición; err == nil => "ok".
func (r *Recorder) Transition(name string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.transitions.WithLabelValues(name, result).Inc()
}

func (r *Recorder) Rollback(collection string) {
	if r == nil {
		return
	}
	r.rollbacks.WithLabelValues(collection).Inc()
}

func (r *Recorder) PairingCheck(outcome string) {
	if r == nil {
		return
	}
	r.pairingChecks.WithLabelValues(outcome).Inc()
}

// Handler sirve /metrics para este registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
