package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
)

type Metrics struct {
	cyclesTotal         *prometheus.CounterVec
	cycleDuration       prometheus.Histogram
	signerRequestsTotal *prometheus.CounterVec
	signerDuration      prometheus.Histogram
	fetchRequestsTotal  *prometheus.CounterVec
	alertsFiredTotal    *prometheus.CounterVec
	driftDetectedTotal  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signwatch_cycles_total", Help: "Monitoring cycles by trigger and resulting status"},
			[]string{"trigger", "status"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signwatch_cycle_duration_seconds",
				Help:    "Monitoring cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		signerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signwatch_signer_requests_total", Help: "Signing collaborator calls by outcome"},
			[]string{"outcome"},
		),
		signerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signwatch_signer_duration_seconds",
				Help:    "Signing call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		fetchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signwatch_fetch_requests_total", Help: "Web client fetches by outcome"},
			[]string{"outcome"},
		),
		alertsFiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signwatch_alerts_fired_total", Help: "Alerts fired by rule and severity"},
			[]string{"rule", "severity"},
		),
		driftDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signwatch_drift_detected_total", Help: "Drift detections by change type"},
			[]string{"type"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.signerRequestsTotal,
		m.signerDuration,
		m.fetchRequestsTotal,
		m.alertsFiredTotal,
		m.driftDetectedTotal,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveCycle records one finished monitoring cycle.
func (m *Metrics) ObserveCycle(record logging.CycleRecord) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(record.Trigger, record.Status).Inc()
	m.cycleDuration.Observe(float64(record.DurationMS) / 1000)
	for _, t := range record.ChangeTypes {
		m.driftDetectedTotal.WithLabelValues(t).Inc()
	}
}

func (m *Metrics) ObserveSigner(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.signerRequestsTotal.WithLabelValues(outcome(success)).Inc()
	m.signerDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveFetch(success bool) {
	if m == nil {
		return
	}
	m.fetchRequestsTotal.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) ObserveAlert(rule, severity string) {
	if m == nil {
		return
	}
	m.alertsFiredTotal.WithLabelValues(rule, severity).Inc()
}

func outcome(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
