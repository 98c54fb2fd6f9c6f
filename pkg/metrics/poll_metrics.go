package metrics

import (
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/prometheus/client_golang/prometheus"
)

// PollMetrics holds Prometheus metrics describing the coordinators themselves.
// It implements coordinator.PollObserver and prometheus.Collector.
type PollMetrics struct {
	// Poll duration histogram (in seconds)
	PollDurationSeconds *prometheus.HistogramVec

	// Poll errors by coordinator and error kind
	PollErrorsTotal *prometheus.CounterVec

	// Last successful poll timestamp (unix seconds)
	LastSuccessUnix *prometheus.GaugeVec

	// 1 if the last poll succeeded
	UpdateSuccess *prometheus.GaugeVec

	// Circuit breaker state per device (0 closed, 1 open, 2 half-open)
	CircuitBreakerState *prometheus.GaugeVec

	// Build info gauge
	BuildInfo *prometheus.GaugeVec

	now func() time.Time
}

// NewPollMetrics creates the coordinator metrics without registering them.
func NewPollMetrics(version string) *PollMetrics {
	pm := &PollMetrics{
		// 50ms .. 12.8s, the device answers slowly when busy
		PollDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radiotherm_coordinator_poll_duration_seconds",
			Help:    "Time taken to poll a thermostat in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 9),
		}, []string{"coordinator"}),

		PollErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiotherm_coordinator_poll_errors_total",
			Help: "Total number of failed polls by error kind",
		}, []string{"coordinator", "kind"}),

		LastSuccessUnix: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_coordinator_last_success_unix",
			Help: "Unix timestamp of the last successful poll",
		}, []string{"coordinator"}),

		UpdateSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_coordinator_update_success",
			Help: "Set to 1 if the last poll succeeded, 0 otherwise",
		}, []string{"coordinator"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_circuit_breaker_state",
			Help: "Circuit breaker state per thermostat (0 closed, 1 open, 2 half-open)",
		}, []string{"host"}),

		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_coordinator_build_info",
			Help: "Build information for the coordinator (value is always 1)",
		}, []string{"version"}),

		now: time.Now,
	}

	pm.BuildInfo.WithLabelValues(version).Set(1)
	return pm
}

func (pm *PollMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pm.PollDurationSeconds,
		pm.PollErrorsTotal,
		pm.LastSuccessUnix,
		pm.UpdateSuccess,
		pm.CircuitBreakerState,
		pm.BuildInfo,
	}
}

// Describe implements prometheus.Collector
func (pm *PollMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range pm.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (pm *PollMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range pm.collectors() {
		c.Collect(ch)
	}
}

// ObserveBreaker records a circuit breaker state change for host.
// It matches radiotherm.CircuitBreakerConfig.OnStateChange.
func (pm *PollMetrics) ObserveBreaker(host string, state radiotherm.CircuitBreakerState) {
	pm.CircuitBreakerState.WithLabelValues(host).Set(float64(state))
}

// ObservePoll records the outcome of one poll.
func (pm *PollMetrics) ObservePoll(name string, duration time.Duration, err error) {
	pm.PollDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())

	if err != nil {
		pm.PollErrorsTotal.WithLabelValues(name, radiotherm.Classify(err).String()).Inc()
		pm.UpdateSuccess.WithLabelValues(name).Set(0)
		return
	}

	pm.UpdateSuccess.WithLabelValues(name).Set(1)
	pm.LastSuccessUnix.WithLabelValues(name).Set(float64(pm.now().Unix()))
}
