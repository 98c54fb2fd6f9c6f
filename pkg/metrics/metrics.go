package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var thermostatLabels = []string{"host", "name"}

// MetricDescriptors holds the Prometheus metric descriptors for thermostat state.
// All metrics are labelled by host and device name.
type MetricDescriptors struct {
	TemperatureMeasuredFahrenheit *prometheus.GaugeVec
	TemperatureMeasuredCelsius    *prometheus.GaugeVec
	// Target temperatures carry an extra "side" label: heat or cool
	TemperatureSetFahrenheit *prometheus.GaugeVec
	TemperatureSetCelsius    *prometheus.GaugeVec
	HumidityMeasuredPercentage *prometheus.GaugeVec
	IsHoldEnabled              *prometheus.GaugeVec
	IsHeating                  *prometheus.GaugeVec
	IsCooling                  *prometheus.GaugeVec
	IsFanRunning               *prometheus.GaugeVec
	OperatingMode              *prometheus.GaugeVec
	IsAvailable                *prometheus.GaugeVec
}

// NewMetricDescriptors creates the thermostat metrics without registering them.
func NewMetricDescriptors() *MetricDescriptors {
	setLabels := append([]string{}, thermostatLabels...)
	setLabels = append(setLabels, "side")

	return &MetricDescriptors{
		TemperatureMeasuredFahrenheit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_temperature_measured_fahrenheit",
			Help: "Measured temperature in Fahrenheit",
		}, thermostatLabels),
		TemperatureMeasuredCelsius: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_temperature_measured_celsius",
			Help: "Measured temperature in Celsius",
		}, thermostatLabels),
		TemperatureSetFahrenheit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_temperature_set_fahrenheit",
			Help: "Target temperature in Fahrenheit",
		}, setLabels),
		TemperatureSetCelsius: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_temperature_set_celsius",
			Help: "Target temperature in Celsius",
		}, setLabels),
		HumidityMeasuredPercentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_humidity_measured_percentage",
			Help: "Measured relative humidity as a percentage (CT80 only)",
		}, thermostatLabels),
		IsHoldEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_is_hold_enabled",
			Help: "Whether the target temperature is held (1 = hold, 0 = schedule)",
		}, thermostatLabels),
		IsHeating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_is_heating",
			Help: "Whether the heating stage is running",
		}, thermostatLabels),
		IsCooling: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_is_cooling",
			Help: "Whether the cooling stage is running",
		}, thermostatLabels),
		IsFanRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_is_fan_running",
			Help: "Whether the fan is running",
		}, thermostatLabels),
		OperatingMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_operating_mode",
			Help: "Thermostat mode (0 = off, 1 = heat, 2 = cool, 3 = auto)",
		}, thermostatLabels),
		IsAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiotherm_is_available",
			Help: "Whether the last poll of the device succeeded",
		}, thermostatLabels),
	}
}

func (md *MetricDescriptors) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		md.TemperatureMeasuredFahrenheit,
		md.TemperatureMeasuredCelsius,
		md.TemperatureSetFahrenheit,
		md.TemperatureSetCelsius,
		md.HumidityMeasuredPercentage,
		md.IsHoldEnabled,
		md.IsHeating,
		md.IsCooling,
		md.IsFanRunning,
		md.OperatingMode,
		md.IsAvailable,
	}
}

// Describe sends the descriptors of all thermostat metrics.
func (md *MetricDescriptors) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range md.collectors() {
		c.Describe(ch)
	}
}

// Collect sends the current values of all thermostat metrics.
func (md *MetricDescriptors) Collect(ch chan<- prometheus.Metric) {
	for _, c := range md.collectors() {
		c.Collect(ch)
	}
}

// Reset clears all metric values
func (md *MetricDescriptors) Reset() {
	md.TemperatureMeasuredFahrenheit.Reset()
	md.TemperatureMeasuredCelsius.Reset()
	md.TemperatureSetFahrenheit.Reset()
	md.TemperatureSetCelsius.Reset()
	md.HumidityMeasuredPercentage.Reset()
	md.IsHoldEnabled.Reset()
	md.IsHeating.Reset()
	md.IsCooling.Reset()
	md.IsFanRunning.Reset()
	md.OperatingMode.Reset()
	md.IsAvailable.Reset()
}

// FahrenheitToCelsius converts Fahrenheit to Celsius
func FahrenheitToCelsius(fahrenheit float64) float64 {
	return (fahrenheit - 32) * 5 / 9
}

// BoolToFloat maps true to 1 and false to 0.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
