package thermostat

import (
	"sync/atomic"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

// DeviceRecord groups everything kept for one configured thermostat.
type DeviceRecord struct {
	Coordinator *UpdateCoordinator
	InitData    radiotherm.InitData

	// HoldTemp makes temperature writes also set the device hold flag.
	HoldTemp atomic.Bool
}

// NewDeviceRecord builds a record with the given hold flag.
func NewDeviceRecord(c *UpdateCoordinator, initData radiotherm.InitData, holdTemp bool) *DeviceRecord {
	rec := &DeviceRecord{
		Coordinator: c,
		InitData:    initData,
	}
	rec.HoldTemp.Store(holdTemp)
	return rec
}
