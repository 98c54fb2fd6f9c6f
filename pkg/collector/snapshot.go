// Package collector provides thermostat snapshot extraction helpers.
package collector

import (
	"fmt"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

// Validation constants for metric ranges
const (
	// Temperature (Fahrenheit) - what the device can plausibly report
	MinValidTemperature float64 = -40
	MaxValidTemperature float64 = 140

	// Humidity (%) - always 0-100
	MinValidHumidity float64 = 0
	MaxValidHumidity float64 = 100
)

// ThermostatMetrics holds the values extracted from one Update
type ThermostatMetrics struct {
	TemperatureFahrenheit *float64
	TargetHeatFahrenheit  *float64
	TargetCoolFahrenheit  *float64
	Humidity              *float64
	Mode                  radiotherm.Mode
	IsHoldEnabled         bool
	IsHeating             bool
	IsCooling             bool
	IsFanRunning          bool
}

// ExtractThermostatMetrics extracts all metrics from an Update
func ExtractThermostatMetrics(update *radiotherm.Update) *ThermostatMetrics {
	if update == nil {
		return &ThermostatMetrics{}
	}
	tstat := update.Tstat
	temp := tstat.Temp

	return &ThermostatMetrics{
		TemperatureFahrenheit: &temp,
		TargetHeatFahrenheit:  tstat.THeat,
		TargetCoolFahrenheit:  tstat.TCool,
		Humidity:              update.Humidity,
		Mode:                  tstat.TMode,
		IsHoldEnabled:         tstat.HoldEnabled(),
		IsHeating:             tstat.TState == 1,
		IsCooling:             tstat.TState == 2,
		IsFanRunning:          tstat.FState == 1,
	}
}

// ValidationError represents a validation error for a metric
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s = %v, %s", ve.Field, ve.Value, ve.Reason)
}

func validateTemperature(temp float64, fieldName string) error {
	if temp < MinValidTemperature || temp > MaxValidTemperature {
		return &ValidationError{
			Field:  fieldName,
			Value:  temp,
			Reason: fmt.Sprintf("outside valid range [%g, %g]°F", MinValidTemperature, MaxValidTemperature),
		}
	}
	return nil
}

func validateHumidity(humidity float64, fieldName string) error {
	if humidity < MinValidHumidity || humidity > MaxValidHumidity {
		return &ValidationError{
			Field:  fieldName,
			Value:  humidity,
			Reason: fmt.Sprintf("outside valid range [%g, %g]%%", MinValidHumidity, MaxValidHumidity),
		}
	}
	return nil
}

// ValidateThermostatMetrics validates extracted metrics
func ValidateThermostatMetrics(metrics *ThermostatMetrics) []error {
	if metrics == nil {
		return []error{&ValidationError{Field: "metrics", Reason: "metrics object is nil"}}
	}

	var errs []error
	temps := []struct {
		field string
		value *float64
	}{
		{"temperature", metrics.TemperatureFahrenheit},
		{"target_heat", metrics.TargetHeatFahrenheit},
		{"target_cool", metrics.TargetCoolFahrenheit},
	}
	for _, t := range temps {
		if t.value == nil {
			continue
		}
		if err := validateTemperature(*t.value, t.field); err != nil {
			errs = append(errs, err)
		}
	}

	if metrics.Humidity != nil {
		if err := validateHumidity(*metrics.Humidity, "humidity"); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
