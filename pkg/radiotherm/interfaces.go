// Package radiotherm talks to Radio Thermostat devices over their local HTTP API.
package radiotherm

import (
	"context"
	"time"
)

// DeviceAPI defines the interface for thermostat interactions.
// This interface allows for dependency injection and testing with mocks.
type DeviceAPI interface {
	// Host returns the network address of the thermostat
	Host() string

	// Tstat retrieves the current thermostat state
	Tstat(ctx context.Context) (TstatState, error)

	// Humidity retrieves relative humidity (CT80 only)
	Humidity(ctx context.Context) (float64, error)

	// Name retrieves the user-assigned device name
	Name(ctx context.Context) (string, error)

	// Sys retrieves system information (uuid, firmware)
	Sys(ctx context.Context) (SysInfo, error)

	// Model retrieves the model string, e.g. "CT50 V1.94"
	Model(ctx context.Context) (string, error)

	SetTargetHeat(ctx context.Context, temp float64) error
	SetTargetCool(ctx context.Context, temp float64) error
	SetMode(ctx context.Context, mode Mode) error
	SetFanMode(ctx context.Context, mode FanMode) error
	SetHold(ctx context.Context, hold bool) error
	SetTime(ctx context.Context, t time.Time) error
}
