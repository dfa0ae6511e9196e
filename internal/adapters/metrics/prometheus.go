// Package metrics exposes workflow counters in the Prometheus text format.
//
//   - futureshook_runs_total{state,code}             finished runs by terminal state
//   - futureshook_run_duration_seconds{state}        wall time of a run
//   - futureshook_orders_total{type,side,result}     submissions by outcome
//   - futureshook_protective_retries_total           failed protective attempts
//   - futureshook_notifications_total{phase,result}  lifecycle notifications
//   - futureshook_orders_cancelled_total             orders removed by cancel-all
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// Compile-time check that Prometheus implements ports.Metrics
var _ ports.Metrics = (*Prometheus)(nil)

// Prometheus records metrics on its own registry so tests can create as many as they like.
type Prometheus struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	orders        *prometheus.CounterVec
	retries       prometheus.Counter
	notifications *prometheus.CounterVec
	cancelled     prometheus.Counter
}

// NewPrometheus creates and registers the collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "futureshook_runs_total",
				Help: "Workflow runs by terminal state and error code",
			},
			[]string{"state", "code"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "futureshook_run_duration_seconds",
				Help:    "Workflow run wall time",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"state"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "futureshook_orders_total",
				Help: "Orders submitted to the exchange",
			},
			[]string{"type", "side", "result"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "futureshook_protective_retries_total",
				Help: "Failed protective order attempts that were retried or exhausted",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "futureshook_notifications_total",
				Help: "Lifecycle notifications by phase and result",
			},
			[]string{"phase", "result"},
		),
		cancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "futureshook_orders_cancelled_total",
				Help: "Open orders cancelled before closing a position",
			},
		),
	}
	p.registry.MustRegister(p.runs, p.runDuration, p.orders, p.retries, p.notifications, p.cancelled)
	return p
}

// Handler serves the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ObserveRun(state domain.WorkflowState, code string, d time.Duration) {
	p.runs.WithLabelValues(string(state), code).Inc()
	p.runDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

func (p *Prometheus) IncOrder(kind domain.OrderKind, side domain.OrderSide, accepted bool) {
	p.orders.WithLabelValues(string(kind), string(side), result(accepted)).Inc()
}

func (p *Prometheus) IncProtectiveRetry() {
	p.retries.Inc()
}

func (p *Prometheus) IncNotification(phase domain.Phase, ok bool) {
	p.notifications.WithLabelValues(string(phase), result(ok)).Inc()
}

func (p *Prometheus) IncCancelled(n int) {
	if n > 0 {
		p.cancelled.Add(float64(n))
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
