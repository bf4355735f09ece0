// File: internal/observability/metrics.go
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics bundles the agent's Prometheus instruments. A nil *Metrics is valid
// and turns every recording call into a no-op, so components can take it as an
// optional dependency.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	actionsExecuted  *prometheus.CounterVec
	issuesFound      *prometheus.CounterVec
	instructionCalls *prometheus.CounterVec
}

// NewMetrics creates the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "uxprobe_sessions_started_total",
			Help: "Number of browser sessions started.",
		}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uxprobe_sessions_finished_total",
			Help: "Number of sessions finished, by terminal state.",
		}, []string{"state"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uxprobe_sessions_active",
			Help: "Number of sessions currently running.",
		}),
		actionsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uxprobe_actions_executed_total",
			Help: "Number of actions executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		issuesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uxprobe_issues_found_total",
			Help: "Number of issues derived from session evidence, by category.",
		}, []string{"category"}),
		instructionCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uxprobe_instruction_calls_total",
			Help: "Calls to the external instruction source, by outcome.",
		}, []string{"outcome"}),
	}
}

// SessionStarted records a new running session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.sessionsActive.Inc()
}

// SessionFinished records a session reaching a terminal state.
func (m *Metrics) SessionFinished(state string) {
	if m == nil {
		return
	}
	m.sessionsFinished.WithLabelValues(state).Inc()
	m.sessionsActive.Dec()
}

// ActionExecuted records one completed action.
func (m *Metrics) ActionExecuted(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.actionsExecuted.WithLabelValues(kind, outcome).Inc()
}

// IssueFound records one derived issue.
func (m *Metrics) IssueFound(category string) {
	if m == nil {
		return
	}
	m.issuesFound.WithLabelValues(category).Inc()
}

// InstructionCall records the outcome of one instruction source round-trip.
func (m *Metrics) InstructionCall(outcome string) {
	if m == nil {
		return
	}
	m.instructionCalls.WithLabelValues(outcome).Inc()
}

// Serve exposes the registry on addr until ctx is cancelled. It blocks, so
// callers run it in its own goroutine.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if m == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listener starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
