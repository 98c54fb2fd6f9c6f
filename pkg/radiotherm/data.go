package radiotherm

import (
	"context"
	"fmt"
)

// GetData reads the current thermostat state, plus humidity when the model has a sensor.
func GetData(ctx context.Context, device DeviceAPI, withHumidity bool) (Update, error) {
	tstat, err := device.Tstat(ctx)
	if err != nil {
		return Update{}, fmt.Errorf("read tstat: %w", err)
	}

	update := Update{Tstat: tstat}
	if withHumidity {
		humidity, err := device.Humidity(ctx)
		if err != nil {
			return Update{}, fmt.Errorf("read humidity: %w", err)
		}
		update.Humidity = &humidity
	}
	return update, nil
}

// GetInitData gathers the static data needed to set up a device.
func GetInitData(ctx context.Context, device DeviceAPI) (InitData, error) {
	name, err := device.Name(ctx)
	if err != nil {
		return InitData{}, fmt.Errorf("read name: %w", err)
	}
	sys, err := device.Sys(ctx)
	if err != nil {
		return InitData{}, fmt.Errorf("read sys: %w", err)
	}
	model, err := device.Model(ctx)
	if err != nil {
		return InitData{}, fmt.Errorf("read model: %w", err)
	}

	return InitData{
		Device:          device,
		Name:            name,
		MAC:             FormatMAC(sys.UUID),
		Model:           model,
		FirmwareVersion: sys.FWVersion,
		APIVersion:      sys.APIVersion,
	}, nil
}
