// Package collector implements the Prometheus collector for thermostat state.
//
// The collector never talks to a device. Each scrape reads the snapshot
// cached by every coordinator, so scrapes stay cheap and the device only
// sees the regular poll traffic.
package collector

import (
	"errors"
	"sync"

	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/andreweacott/radiotherm-coordinator/pkg/metrics"
	"github.com/andreweacott/radiotherm-coordinator/pkg/thermostat"
	"github.com/prometheus/client_golang/prometheus"
)

// RecordSource lists the devices to export.
type RecordSource interface {
	Records() []*thermostat.DeviceRecord
}

// ThermostatCollector implements the prometheus.Collector interface
type ThermostatCollector struct {
	source            RecordSource
	metricDescriptors *metrics.MetricDescriptors
	pollMetrics       *metrics.PollMetrics // Optional: coordinator health
	log               *logger.Entry

	// Collect rebuilds the gauge vecs, so scrapes run one at a time
	mu sync.Mutex
}

// NewThermostatCollector creates a collector over the records of source.
func NewThermostatCollector(source RecordSource, md *metrics.MetricDescriptors, log *logger.Logger) *ThermostatCollector {
	if log == nil {
		log = logger.Discard()
	}
	return &ThermostatCollector{
		source:            source,
		metricDescriptors: md,
		log:               log.WithComponent("collector"),
	}
}

// WithPollMetrics adds coordinator health metrics to the collector
func (tc *ThermostatCollector) WithPollMetrics(pm *metrics.PollMetrics) *ThermostatCollector {
	tc.pollMetrics = pm
	return tc
}

// Describe sends the super-set of all possible descriptors of metrics collected by this collector
func (tc *ThermostatCollector) Describe(ch chan<- *prometheus.Desc) {
	tc.metricDescriptors.Describe(ch)
	if tc.pollMetrics != nil {
		tc.pollMetrics.Describe(ch)
	}
}

// Collect is called by the Prometheus client when scraping /metrics
func (tc *ThermostatCollector) Collect(ch chan<- prometheus.Metric) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	// unloaded devices must disappear from the output
	tc.metricDescriptors.Reset()
	for _, rec := range tc.source.Records() {
		tc.collectRecord(rec)
	}
	tc.metricDescriptors.Collect(ch)

	if tc.pollMetrics != nil {
		tc.pollMetrics.Collect(ch)
	}
}

func (tc *ThermostatCollector) collectRecord(rec *thermostat.DeviceRecord) {
	uc := rec.Coordinator
	labels := []string{uc.Host, uc.DeviceName}
	md := tc.metricDescriptors

	md.IsAvailable.WithLabelValues(labels...).Set(metrics.BoolToFloat(uc.LastUpdateSuccess()))

	update, ok := uc.Data()
	if !ok {
		return
	}

	m := ExtractThermostatMetrics(&update)
	invalid := make(map[string]bool)
	for _, err := range ValidateThermostatMetrics(m) {
		tc.log.With("device", uc.DeviceName, "host", uc.Host).Warn("Invalid thermostat value, skipping metric", "error", err)
		var ve *ValidationError
		if errors.As(err, &ve) {
			invalid[ve.Field] = true
		}
	}

	if m.TemperatureFahrenheit != nil && !invalid["temperature"] {
		md.TemperatureMeasuredFahrenheit.WithLabelValues(labels...).Set(*m.TemperatureFahrenheit)
		md.TemperatureMeasuredCelsius.WithLabelValues(labels...).Set(metrics.FahrenheitToCelsius(*m.TemperatureFahrenheit))
	}
	tc.recordTarget(labels, "heat", m.TargetHeatFahrenheit, invalid["target_heat"])
	tc.recordTarget(labels, "cool", m.TargetCoolFahrenheit, invalid["target_cool"])
	if m.Humidity != nil && !invalid["humidity"] {
		md.HumidityMeasuredPercentage.WithLabelValues(labels...).Set(*m.Humidity)
	}

	md.IsHoldEnabled.WithLabelValues(labels...).Set(metrics.BoolToFloat(m.IsHoldEnabled))
	md.IsHeating.WithLabelValues(labels...).Set(metrics.BoolToFloat(m.IsHeating))
	md.IsCooling.WithLabelValues(labels...).Set(metrics.BoolToFloat(m.IsCooling))
	md.IsFanRunning.WithLabelValues(labels...).Set(metrics.BoolToFloat(m.IsFanRunning))
	md.OperatingMode.WithLabelValues(labels...).Set(float64(m.Mode))
}

func (tc *ThermostatCollector) recordTarget(labels []string, side string, value *float64, invalid bool) {
	if value == nil || invalid {
		return
	}
	setLabels := append(append([]string{}, labels...), side)
	tc.metricDescriptors.TemperatureSetFahrenheit.WithLabelValues(setLabels...).Set(*value)
	tc.metricDescriptors.TemperatureSetCelsius.WithLabelValues(setLabels...).Set(metrics.FahrenheitToCelsius(*value))
}
