package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for orchestration runs, model calls
// and tool calls.
type Metrics struct {
	stageDuration  *prometheus.HistogramVec
	stageSteps     *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runsActive     prometheus.Gauge
	workerOutcomes *prometheus.CounterVec
	modelCalls     *prometheus.CounterVec
	modelTokens    *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg and panics on conflicts
// other than an identical collector already being registered.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "aios", Subsystem: "orchestrator", Name: name, Help: help}
	}

	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aios", Subsystem: "orchestrator", Name: "stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage", "status"}),
		stageSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aios", Subsystem: "orchestrator", Name: "stage_steps",
			Help:    "Model turns used by each agent run.",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30},
		}, []string{"agent"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts(opts("stage_failures_total", "Stages that ended in an error.")), []string{"stage"}),
		runs:          prometheus.NewCounterVec(prometheus.CounterOpts(opts("runs_total", "Finished orchestration runs by result.")), []string{"result"}),
		runsActive:    prometheus.NewGauge(prometheus.GaugeOpts(opts("runs_active", "Orchestration runs in progress."))),
		workerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts(opts("worker_outcomes_total", "Dispatched worker outcomes.")),
			[]string{"kind", "status"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts(opts("model_calls_total", "Chat model calls.")),
			[]string{"model", "status"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts(opts("model_tokens_total", "Tokens reported by chat models.")),
			[]string{"direction"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts(opts("tool_calls_total", "Tool invocations.")),
			[]string{"tool", "status"}),
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return already.ExistingCollector
			}
			panic(err)
		}
		return c
	}
	m.stageDuration = register(m.stageDuration).(*prometheus.HistogramVec)
	m.stageSteps = register(m.stageSteps).(*prometheus.HistogramVec)
	m.stageFailures = register(m.stageFailures).(*prometheus.CounterVec)
	m.runs = register(m.runs).(*prometheus.CounterVec)
	m.runsActive = register(m.runsActive).(prometheus.Gauge)
	m.workerOutcomes = register(m.workerOutcomes).(*prometheus.CounterVec)
	m.modelCalls = register(m.modelCalls).(*prometheus.CounterVec)
	m.modelTokens = register(m.modelTokens).(*prometheus.CounterVec)
	m.toolCalls = register(m.toolCalls).(*prometheus.CounterVec)
	return m
}

// ObserveStage records a finished stage.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
	if status == "error" {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveSteps records the model turns an agent run used.
func (m *Metrics) ObserveSteps(agent string, steps int) {
	if m == nil {
		return
	}
	m.stageSteps.WithLabelValues(agent).Observe(float64(steps))
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) runFinished(result string) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runs.WithLabelValues(result).Inc()
}

// ObserveWorker records one dispatched worker outcome.
func (m *Metrics) ObserveWorker(kind string, success bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "failed"
	}
	m.workerOutcomes.WithLabelValues(kind, status).Inc()
}

// ObserveModelCall records a chat model call and its token usage.
func (m *Metrics) ObserveModelCall(model, status string, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(model, status).Inc()
	if promptTokens > 0 {
		m.modelTokens.WithLabelValues("input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.modelTokens.WithLabelValues("output").Add(float64(completionTokens))
	}
}

// ObserveToolCall records a tool invocation.
func (m *Metrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}
