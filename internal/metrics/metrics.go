// Package metrics records batch pass results for the node-exporter
// textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mikey/mail-triage/internal/core"
)

// Metrics holds the pass metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	MessagesIngested prometheus.Counter
	MessagesRouted   *prometheus.CounterVec
	MessagesClosed   prometheus.Counter
	MessagesPurged   prometheus.Counter
	MessageErrors    prometheus.Counter

	Threads         prometheus.Gauge
	OwnerThreads    prometheus.Gauge
	SubjectLinks    prometheus.Gauge
	ReputationSize  *prometheus.GaugeVec
	PassDuration    prometheus.Gauge
	LastPassSuccess prometheus.Gauge
}

// NewMetrics creates the pass metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_messages_ingested_total",
			Help: "Messages stored for the first time",
		}),
		MessagesRouted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailtriage_messages_routed_total",
			Help: "Messages moved by the triage pass",
		}, []string{"destination"}),
		MessagesClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_messages_closed_total",
			Help: "Answered messages moved to the closed folder",
		}),
		MessagesPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_messages_purged_total",
			Help: "Blacklisted messages deleted from the server",
		}),
		MessageErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_message_errors_total",
			Help: "Messages skipped because they could not be processed",
		}),

		Threads: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailtriage_threads",
			Help: "Threads found by the last analysis",
		}),
		OwnerThreads: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailtriage_owner_threads",
			Help: "Threads the owner participated in",
		}),
		SubjectLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailtriage_subject_links",
			Help: "Subject links accepted by the last analysis",
		}),
		ReputationSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailtriage_reputation_addresses",
			Help: "Addresses in each reputation table",
		}, []string{"table"}),
		PassDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailtriage_pass_duration_seconds",
			Help: "Wall time of the last batch pass",
		}),
		LastPassSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailtriage_last_pass_success_timestamp_seconds",
			Help: "Unix time the last batch pass completed",
		}),
	}
}

// ObservePass records a completed pass
func (m *Metrics) ObservePass(r *core.PassReport) {
	m.MessagesIngested.Add(float64(r.Ingested))
	for dest, n := range r.Routed {
		m.MessagesRouted.WithLabelValues(dest).Add(float64(n))
	}
	m.MessagesClosed.Add(float64(r.Closed))
	m.MessagesPurged.Add(float64(r.Purged))
	m.MessageErrors.Add(float64(r.MessageErrors))

	m.Threads.Set(float64(r.Threads))
	m.OwnerThreads.Set(float64(r.OwnerThreads))
	m.SubjectLinks.Set(float64(r.SubjectLinks))
	m.ReputationSize.WithLabelValues("request").Set(float64(r.RequestSenders))
	m.ReputationSize.WithLabelValues("junk").Set(float64(r.JunkSenders))
	m.PassDuration.Set(r.Duration.Seconds())
	m.LastPassSuccess.SetToCurrentTime()
}

// WriteTextfile writes every metric to path atomically. An empty path is a
// no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
