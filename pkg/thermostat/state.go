package thermostat

import (
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

// State is the public view of a device, served over HTTP and MQTT.
type State struct {
	Name        string    `json:"name"`
	Host        string    `json:"host"`
	Model       string    `json:"model,omitempty"`
	Available   bool      `json:"available"`
	Temperature float64   `json:"temperature"`
	TargetHeat  *float64  `json:"target_heat,omitempty"`
	TargetCool  *float64  `json:"target_cool,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Mode        string    `json:"mode"`
	FanMode     string    `json:"fan_mode"`
	Action      string    `json:"action"`
	FanRunning  bool      `json:"fan_running"`
	Hold        bool      `json:"hold"`
	HoldTemp    bool      `json:"hold_temp"`
	LastUpdated time.Time `json:"last_updated"`
}

// State builds the view from the cached snapshot. It reports false until
// the first successful refresh.
func (r *DeviceRecord) State() (State, bool) {
	update, ok := r.Coordinator.Data()
	if !ok {
		return State{}, false
	}
	return r.StateFrom(update, r.Coordinator.LastUpdateSuccess()), true
}

// StateFrom builds the view for an update delivered by a notification.
func (r *DeviceRecord) StateFrom(update radiotherm.Update, available bool) State {
	tstat := update.Tstat
	return State{
		Name:        r.InitData.Name,
		Host:        r.Coordinator.Host,
		Model:       r.InitData.Model,
		Available:   available,
		Temperature: tstat.Temp,
		TargetHeat:  tstat.THeat,
		TargetCool:  tstat.TCool,
		Humidity:    update.Humidity,
		Mode:        tstat.TMode.String(),
		FanMode:     tstat.FMode.String(),
		Action:      action(tstat.TState),
		FanRunning:  tstat.FState == 1,
		Hold:        tstat.HoldEnabled(),
		HoldTemp:    r.HoldTemp.Load(),
		LastUpdated: r.Coordinator.LastUpdated(),
	}
}

func action(tstate int) string {
	switch tstate {
	case 1:
		return "heating"
	case 2:
		return "cooling"
	default:
		return "idle"
	}
}
