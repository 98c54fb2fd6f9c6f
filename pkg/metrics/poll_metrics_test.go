package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newTestPollMetrics(t *testing.T) (*PollMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	pm := NewPollMetrics("1.2.3")
	pm.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, registry.Register(pm))
	return pm, registry
}

func TestNewPollMetrics_BuildInfo(t *testing.T) {
	pm, _ := newTestPollMetrics(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.BuildInfo.WithLabelValues("1.2.3")))
}

func TestObservePoll_Success(t *testing.T) {
	pm, registry := newTestPollMetrics(t)

	pm.ObservePoll("radiotherm Kitchen", 250*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.UpdateSuccess.WithLabelValues("radiotherm Kitchen")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(pm.LastSuccessUnix.WithLabelValues("radiotherm Kitchen")))
	assert.Equal(t, 0, testutil.CollectAndCount(pm.PollErrorsTotal))

	count, err := testutil.GatherAndCount(registry, "radiotherm_coordinator_poll_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestObservePoll_ErrorsByKind(t *testing.T) {
	pm, _ := newTestPollMetrics(t)

	pm.ObservePoll("radiotherm Kitchen", time.Second, &radiotherm.TstatError{Message: "bad value"})
	pm.ObservePoll("radiotherm Kitchen", time.Second, &radiotherm.TstatError{Message: "bad value"})
	pm.ObservePoll("radiotherm Kitchen", time.Second, timeoutError{})
	pm.ObservePoll("radiotherm Kitchen", time.Second, errors.New("connection refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.PollErrorsTotal.WithLabelValues("radiotherm Kitchen", "device_busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.PollErrorsTotal.WithLabelValues("radiotherm Kitchen", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.PollErrorsTotal.WithLabelValues("radiotherm Kitchen", "unclassified")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.UpdateSuccess.WithLabelValues("radiotherm Kitchen")))
}

func TestObservePoll_Exposition(t *testing.T) {
	pm, _ := newTestPollMetrics(t)

	pm.ObservePoll("radiotherm Hall", time.Second, nil)
	pm.ObservePoll("radiotherm Hall", time.Second, errors.New("boom"))

	expected := `
# HELP radiotherm_coordinator_update_success Set to 1 if the last poll succeeded, 0 otherwise
# TYPE radiotherm_coordinator_update_success gauge
radiotherm_coordinator_update_success{coordinator="radiotherm Hall"} 0
`
	assert.NoError(t, testutil.CollectAndCompare(pm.UpdateSuccess, strings.NewReader(expected)))
	// last success survives a later failure
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(pm.LastSuccessUnix.WithLabelValues("radiotherm Hall")))
}

func TestObserveBreaker(t *testing.T) {
	pm, registry := newTestPollMetrics(t)

	pm.ObserveBreaker("10.0.0.5", radiotherm.CircuitClosed)
	pm.ObserveBreaker("10.0.0.9", radiotherm.CircuitClosed)
	pm.ObserveBreaker("10.0.0.9", radiotherm.CircuitOpen)

	expected := `
# HELP radiotherm_circuit_breaker_state Circuit breaker state per thermostat (0 closed, 1 open, 2 half-open)
# TYPE radiotherm_circuit_breaker_state gauge
radiotherm_circuit_breaker_state{host="10.0.0.5"} 0
radiotherm_circuit_breaker_state{host="10.0.0.9"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "radiotherm_circuit_breaker_state"))
}

func TestObserveBreaker_FromCircuitBreaker(t *testing.T) {
	pm, _ := newTestPollMetrics(t)

	device := &mocks.MockDeviceAPI{HostName: "10.0.0.5"}
	device.ExpectTstatError(errors.New("connection refused"))
	cb := radiotherm.NewDeviceAPIWithCircuitBreaker(device, radiotherm.CircuitBreakerConfig{
		MaxConsecutiveFailures: 1,
		Timeout:                time.Minute,
		OnStateChange:          pm.ObserveBreaker,
	}, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.CircuitBreakerState.WithLabelValues("10.0.0.5")))

	_, err := cb.Tstat(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.CircuitBreakerState.WithLabelValues("10.0.0.5")))
}
