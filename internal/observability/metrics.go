// Package observability — metrics.go
//
// Prometheus metrics for llm-osd.
//
// Endpoint: GET /metrics, GET /healthz on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format.
// Bind: loopback only — no external exposure.
//
// Metric naming convention: llmosd_<subsystem>_<name>.
//
// All metrics are registered on a dedicated prometheus.Registry, not the
// default global registry, so this process can be instrumented alongside
// other libraries without collisions.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric descriptor llm-osd records.
type Metrics struct {
	registry *prometheus.Registry

	startedAt time.Time

	// RequestsTotal counts every request that reached the connection
	// server, regardless of outcome.
	RequestsTotal prometheus.Counter

	// RequestsByErrorTotal counts top-level rejections before dispatch.
	// Labels: code (parse_failed, validation_failed, request_too_large).
	RequestsByErrorTotal *prometheus.CounterVec

	// ActionsTotal counts every per-action result produced, regardless of
	// outcome. Labels: type (one of the eleven action types).
	ActionsTotal *prometheus.CounterVec

	// ActionsDeniedTotal counts actions the policy engine gated.
	// Labels: reason (policy_denied, confirmation_required).
	ActionsDeniedTotal *prometheus.CounterVec

	// ActionDurationSeconds records, for each action in a plan, the
	// dispatch time of the whole plan, labeled with that action's type;
	// individual actions are not timed separately.
	ActionDurationSeconds *prometheus.HistogramVec

	// ConnectionsInFlight is the number of connections currently being
	// served.
	ConnectionsInFlight prometheus.Gauge

	// AuditWriteFailuresTotal counts failed audit log appends. A failure
	// here never changes a client-visible response; this metric exists so
	// the condition is observable without one.
	AuditWriteFailuresTotal prometheus.Counter

	uptimeSeconds prometheus.GaugeFunc
}

// NewMetrics constructs and registers every metric on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry:  registry,
		startedAt: time.Now(),

		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmosd_requests_total",
			Help: "Total requests accepted by the connection server.",
		}),
		RequestsByErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmosd_requests_by_error_total",
			Help: "Requests rejected before per-action dispatch, by error code.",
		}, []string{"code"}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmosd_actions_total",
			Help: "Per-action results produced, by action type.",
		}, []string{"type"}),
		ActionsDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmosd_actions_denied_total",
			Help: "Actions rejected by the policy engine, by reason.",
		}, []string{"reason"}),
		ActionDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmosd_action_duration_seconds",
			Help:    "Whole-plan dispatch time, observed once per action and labeled by action type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		ConnectionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmosd_connections_in_flight",
			Help: "Connections currently being served.",
		}),
		AuditWriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmosd_audit_write_failures_total",
			Help: "Audit log append failures.",
		}),
	}

	m.uptimeSeconds = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "llmosd_uptime_seconds",
		Help: "Seconds since this process started.",
	}, func() float64 {
		return time.Since(m.startedAt).Seconds()
	})

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestsByErrorTotal,
		m.ActionsTotal,
		m.ActionsDeniedTotal,
		m.ActionDurationSeconds,
		m.ConnectionsInFlight,
		m.AuditWriteFailuresTotal,
		m.uptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics runs an HTTP server exposing /metrics and /healthz on addr
// until ctx is canceled, then shuts it down gracefully.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observability: metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
