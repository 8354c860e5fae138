// Package observability holds the Prometheus instruments shared by the API
// server and the agent worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chriscow/lk-voice/pkg/agent"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	ns       string

	Requests        *prometheus.CounterVec
	SessionsCreated prometheus.Counter
	TokensIssued    prometheus.Counter
	StoreErrors     *prometheus.CounterVec

	AgentStates     *prometheus.CounterVec
	AgentResponses  *prometheus.CounterVec
	AgentDegraded   prometheus.Counter
	AgentUtterances prometheus.Counter
	ResponseLatency prometheus.Histogram
}

// NewMetrics creates the instruments on a private registry that also carries
// the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,
		ns:       namespace,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by route pattern and status code.",
		}, []string{"route", "code"}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Conversation sessions created.",
		}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Participant access tokens issued.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Session store failures by operation.",
		}, []string{"op"}),
		AgentStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_state_transitions_total",
			Help:      "Agent lifecycle transitions by target state.",
		}, []string{"state"}),
		AgentResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_responses_total",
			Help:      "Agent responses by trigger.",
		}, []string{"trigger"}),
		AgentDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_degraded_total",
			Help:      "Responses that fell back to the apology text.",
		}),
		AgentUtterances: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_utterances_total",
			Help:      "Participant utterances detected.",
		}),
		ResponseLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_response_latency_ms",
			Help:      "Time to produce a response in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2500, 5000, 10000},
		}),
	}
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// WorkerStatus is what the worker gauges read.
type WorkerStatus interface {
	IsConnected() bool
	ActiveJobs() int
}

// TrackWorker exports the worker's connection state and job count.
func (m *Metrics) TrackWorker(w WorkerStatus) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.ns,
		Name:      "worker_connected",
		Help:      "1 while the worker is registered with the server.",
	}, func() float64 {
		if w.IsConnected() {
			return 1
		}
		return 0
	})
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.ns,
		Name:      "worker_active_jobs",
		Help:      "Jobs currently running on this worker.",
	}, func() float64 {
		return float64(w.ActiveJobs())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AgentObserver reports agent activity into m.
func (m *Metrics) AgentObserver() agent.Observer {
	return agentObserver{m: m}
}

type agentObserver struct {
	m *Metrics
}

func (o agentObserver) StateChanged(s agent.State) {
	o.m.AgentStates.WithLabelValues(s.String()).Inc()
}

func (o agentObserver) Responded(trigger agent.Trigger, latency time.Duration, degraded bool) {
	o.m.AgentResponses.WithLabelValues(string(trigger)).Inc()
	o.m.ResponseLatency.Observe(float64(latency.Milliseconds()))
	if degraded {
		o.m.AgentDegraded.Inc()
	}
}

func (o agentObserver) UtteranceDetected() {
	o.m.AgentUtterances.Inc()
}
