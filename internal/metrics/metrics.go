// Package metrics exposes Prometheus instruments for the epoch pipeline and
// the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beliefmarket"

type Metrics struct {
	registry *prometheus.Registry

	epochs        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	quality       prometheus.Histogram
	slashed       prometheus.Counter
	participants  prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the instruments on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Epoch runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "epoch_stage_duration_seconds",
			Help:      "Time spent in each epoch stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9),
		}, []string{"stage"}),
		quality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decomposition_quality",
			Help:      "Quality score of accepted decompositions.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		slashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_redistributed_total",
			Help:      "Stake units moved from losers to winners.",
		}),
		participants: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "epoch_participants",
			Help:      "Participants per processed epoch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.epochs,
		m.stageDuration,
		m.quality,
		m.slashed,
		m.participants,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EpochOutcome counts one finished epoch run. outcome is "processed" or an
// error kind such as "low_decomposition_quality".
func (m *Metrics) EpochOutcome(outcome string) {
	if m == nil {
		return
	}
	m.epochs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveDecomposition(quality float64, participants int) {
	if m == nil {
		return
	}
	m.quality.Observe(quality)
	m.participants.Observe(float64(participants))
}

func (m *Metrics) AddRedistributed(amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.slashed.Add(float64(amount))
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
