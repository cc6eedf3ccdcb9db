package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/pairing"
)

// Metrics holds the Prometheus collectors of one viewer process.
type Metrics struct {
	registry *prometheus.Registry

	eventsNormalized prometheus.Counter
	recordsSkipped   prometheus.Counter
	payloadsRejected prometheus.Counter
	arrowsBuilt      *prometheus.CounterVec
	unmatchedSends   prometheus.Gauge
	unkeyedEvents    prometheus.Gauge
	fetchRequests    *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	staleResponses   prometheus.Counter
	framesRendered   prometheus.Counter
	renderDuration   prometheus.Histogram
	commandsDropped  prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		eventsNormalized: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_events_normalized_total",
			Help: "Events produced by the normalizer.",
		}),
		recordsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_records_skipped_total",
			Help: "Records dropped for a missing timestamp or undecodable payload.",
		}),
		payloadsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_payloads_rejected_total",
			Help: "Payloads whose shape was not recognized.",
		}),
		arrowsBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trace_arrows_built_total",
			Help: "Message arrows reconstructed, by message type.",
		}, []string{"type"}),
		unmatchedSends: f.NewGauge(prometheus.GaugeOpts{
			Name: "trace_unmatched_sends",
			Help: "Sends without a matching receive in the current dataset.",
		}),
		unkeyedEvents: f.NewGauge(prometheus.GaugeOpts{
			Name: "trace_unkeyed_events",
			Help: "Message records missing the fields needed for pairing in the current dataset.",
		}),
		fetchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trace_fetch_requests_total",
			Help: "Backend requests by outcome.",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trace_fetch_duration_seconds",
			Help:    "Backend request latency including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		staleResponses: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_stale_responses_total",
			Help: "Responses discarded because a newer load superseded them.",
		}),
		framesRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_frames_rendered_total",
			Help: "Frames rendered and published.",
		}),
		renderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trace_render_duration_seconds",
			Help:    "Time to build one frame.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		commandsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "trace_commands_dropped_total",
			Help: "Control commands rejected because the session inbox was full.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch is installed as the fetch client observer.
func (m *Metrics) ObserveFetch(_ string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	switch {
	case err == nil:
		m.fetchRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, fetch.ErrNotFound):
		m.fetchRequests.WithLabelValues("not_found").Inc()
	default:
		m.fetchRequests.WithLabelValues("error").Inc()
	}
}

// RecordNormalized counts one normalization pass.
func (m *Metrics) RecordNormalized(events, skipped int, rejected bool) {
	if m == nil {
		return
	}
	m.eventsNormalized.Add(float64(events))
	m.recordsSkipped.Add(float64(skipped))
	if rejected {
		m.payloadsRejected.Inc()
	}
}

// RecordClassified records a fresh reconstruction.
func (m *Metrics) RecordClassified(res pairing.Result) {
	if m == nil {
		return
	}
	for _, a := range res.Arrows {
		m.arrowsBuilt.WithLabelValues(a.Type).Inc()
	}
	m.unmatchedSends.Set(float64(res.UnmatchedSends))
	m.unkeyedEvents.Set(float64(res.Unkeyed))
}

// RecordStale counts a discarded superseded response.
func (m *Metrics) RecordStale() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

// RecordFrame records one published frame.
func (m *Metrics) RecordFrame(d time.Duration) {
	if m == nil {
		return
	}
	m.framesRendered.Inc()
	m.renderDuration.Observe(d.Seconds())
}

// RecordDroppedCommand counts a command rejected by a full inbox.
func (m *Metrics) RecordDroppedCommand() {
	if m == nil {
		return
	}
	m.commandsDropped.Inc()
}
