package thermostat

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

var (
	ErrNoData            = errors.New("no thermostat data yet")
	ErrTargetNotSettable = errors.New("target temperature cannot be set in the current state")
)

// SetTargetTemperature writes the setpoint that matches the current mode,
// applies the record's hold preference and schedules a delayed refresh.
func SetTargetTemperature(ctx context.Context, rec *DeviceRecord, temp float64) error {
	data, ok := rec.Coordinator.Data()
	if !ok {
		return ErrNoData
	}
	device := rec.Coordinator.Device
	temp = roundTemp(temp)

	var err error
	switch data.Tstat.TMode {
	case radiotherm.ModeHeat:
		err = device.SetTargetHeat(ctx, temp)
	case radiotherm.ModeCool:
		err = device.SetTargetCool(ctx, temp)
	case radiotherm.ModeAuto:
		// in auto only the active side can be adjusted
		switch data.Tstat.TState {
		case 1:
			err = device.SetTargetHeat(ctx, temp)
		case 2:
			err = device.SetTargetCool(ctx, temp)
		default:
			return fmt.Errorf("%w: auto mode is idle", ErrTargetNotSettable)
		}
	default:
		return fmt.Errorf("%w: mode is %s", ErrTargetNotSettable, data.Tstat.TMode)
	}
	if err != nil {
		return fmt.Errorf("set target temperature: %w", err)
	}

	if err := device.SetHold(ctx, rec.HoldTemp.Load()); err != nil {
		return fmt.Errorf("set hold: %w", err)
	}

	rec.Coordinator.RequestRefresh()
	return nil
}

// SetHold toggles the hold flag on the device and in the record.
func SetHold(ctx context.Context, rec *DeviceRecord, hold bool) error {
	if err := rec.Coordinator.Device.SetHold(ctx, hold); err != nil {
		return fmt.Errorf("set hold: %w", err)
	}
	rec.HoldTemp.Store(hold)
	rec.Coordinator.RequestRefresh()
	return nil
}

// SetMode changes the operating mode.
func SetMode(ctx context.Context, rec *DeviceRecord, mode radiotherm.Mode) error {
	if err := rec.Coordinator.Device.SetMode(ctx, mode); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	rec.Coordinator.RequestRefresh()
	return nil
}

// SetFanMode changes the fan setting.
func SetFanMode(ctx context.Context, rec *DeviceRecord, mode radiotherm.FanMode) error {
	if err := rec.Coordinator.Device.SetFanMode(ctx, mode); err != nil {
		return fmt.Errorf("set fan mode: %w", err)
	}
	rec.Coordinator.RequestRefresh()
	return nil
}

// roundTemp rounds to the half degree the device accepts.
func roundTemp(temp float64) float64 {
	return math.Round(temp*2) / 2
}
