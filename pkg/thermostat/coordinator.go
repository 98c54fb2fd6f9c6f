// Package thermostat wires a Radio Thermostat into the generic coordinator.
package thermostat

import (
	"context"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/coordinator"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

const (
	UpdateInterval      = 15 * time.Second
	RequestRefreshDelay = 3 * time.Second
)

// UpdateCoordinator polls one thermostat and caches its latest Update.
type UpdateCoordinator struct {
	*coordinator.Coordinator[radiotherm.Update]

	Device       radiotherm.DeviceAPI
	Host         string
	DeviceName   string
	withHumidity bool
}

// Settings tunes polling. Zero fields take the package defaults.
type Settings struct {
	Interval            time.Duration
	RequestRefreshDelay time.Duration
}

// NewUpdateCoordinator creates the coordinator for the device in initData.
// The device needs a moment to reflect written state, so refresh requests
// are delayed rather than run immediately.
func NewUpdateCoordinator(host string, initData radiotherm.InitData, settings Settings, opts ...coordinator.Option) *UpdateCoordinator {
	if settings.Interval <= 0 {
		settings.Interval = UpdateInterval
	}
	if settings.RequestRefreshDelay <= 0 {
		settings.RequestRefreshDelay = RequestRefreshDelay
	}

	uc := &UpdateCoordinator{
		Device:       initData.Device,
		Host:         host,
		DeviceName:   initData.Name,
		withHumidity: radiotherm.SupportsHumidity(initData.Model),
	}

	opts = append([]coordinator.Option{
		coordinator.WithRequestRefreshDelay(settings.RequestRefreshDelay),
		coordinator.WithImmediateRefresh(false),
	}, opts...)
	uc.Coordinator = coordinator.New("radiotherm "+initData.Name, settings.Interval, uc.fetch, opts...)
	return uc
}

func (uc *UpdateCoordinator) fetch(ctx context.Context) (radiotherm.Update, error) {
	update, err := radiotherm.GetData(ctx, uc.Device, uc.withHumidity)
	if err == nil {
		return update, nil
	}

	switch radiotherm.Classify(err) {
	case radiotherm.KindDeviceBusy:
		return radiotherm.Update{}, coordinator.UpdateFailed(err,
			"%s (%s) was busy (invalid value returned): %s", uc.DeviceName, uc.Host, radiotherm.Detail(err))
	case radiotherm.KindTimeout:
		return radiotherm.Update{}, coordinator.UpdateFailed(err,
			"%s (%s) timed out waiting for a response: %s", uc.DeviceName, uc.Host, radiotherm.Detail(err))
	default:
		return radiotherm.Update{}, err
	}
}
