package platform

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver records run events as Prometheus metrics.
type MetricsObserver struct {
	NopObserver

	registry *prometheus.Registry

	Actions       *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Polls         *prometheus.CounterVec
}

// NewMetricsObserver creates a MetricsObserver with its own registry. An
// empty namespace defaults to "appsyncctl".
func NewMetricsObserver(namespace string) *MetricsObserver {
	if namespace == "" {
		namespace = "appsyncctl"
	}
	reg := prometheus.NewRegistry()

	m := &MetricsObserver{
		registry: reg,
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Reconciliation actions by resource kind and action",
		}, []string{"kind", "action"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "result"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Asynchronous status polls by kind and reported status",
		}, []string{"kind", "status"}),
	}

	reg.MustRegister(m.Actions)
	reg.MustRegister(m.StageDuration)
	reg.MustRegister(m.Polls)
	return m
}

// Registry returns the registry holding the observer's metrics.
func (m *MetricsObserver) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current metrics in Prometheus text format, for
// pickup by a node exporter textfile collector.
func (m *MetricsObserver) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *MetricsObserver) StageFinished(_ context.Context, stage Stage, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.StageDuration.WithLabelValues(string(stage), result).Observe(elapsed.Seconds())
}

func (m *MetricsObserver) Applied(_ context.Context, kind Kind, _ string, action Action, _ []DiffEntry) {
	m.Actions.WithLabelValues(string(kind), string(action)).Inc()
}

func (m *MetricsObserver) Polled(_ context.Context, kind Kind, status string) {
	m.Polls.WithLabelValues(string(kind), status).Inc()
}
