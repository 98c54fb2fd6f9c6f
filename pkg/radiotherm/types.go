package radiotherm

import (
	"fmt"
	"strings"
)

// Mode is the thermostat operating mode (tmode).
type Mode int

const (
	ModeOff Mode = iota
	ModeHeat
	ModeCool
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeHeat:
		return "heat"
	case ModeCool:
		return "cool"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseMode parses the names used on the HTTP and MQTT surfaces.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "off":
		return ModeOff, nil
	case "heat":
		return ModeHeat, nil
	case "cool":
		return ModeCool, nil
	case "auto":
		return ModeAuto, nil
	default:
		return ModeOff, fmt.Errorf("invalid mode: %q", s)
	}
}

// FanMode is the fan setting (fmode).
type FanMode int

const (
	FanAuto FanMode = iota
	FanCirculate
	FanOn
)

func (f FanMode) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanCirculate:
		return "circulate"
	case FanOn:
		return "on"
	default:
		return "unknown"
	}
}

func ParseFanMode(s string) (FanMode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return FanAuto, nil
	case "circulate":
		return FanCirculate, nil
	case "on":
		return FanOn, nil
	default:
		return FanAuto, fmt.Errorf("invalid fan mode: %q", s)
	}
}

// DeviceTime is the thermostat clock as reported in /tstat.
type DeviceTime struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// TstatState is the raw /tstat payload.
type TstatState struct {
	Temp      float64    `json:"temp"`
	TMode     Mode       `json:"tmode"`
	FMode     FanMode    `json:"fmode"`
	Override  int        `json:"override"`
	Hold      int        `json:"hold"`
	THeat     *float64   `json:"t_heat,omitempty"`
	TCool     *float64   `json:"t_cool,omitempty"`
	TState    int        `json:"tstate"`
	FState    int        `json:"fstate"`
	Time      DeviceTime `json:"time"`
	TTypePost int        `json:"t_type_post"`
}

// Running reports whether the thermostat is actively heating or cooling.
func (t TstatState) Running() bool {
	return t.TState != 0
}

// HoldEnabled reports whether the target temperature is held.
func (t TstatState) HoldEnabled() bool {
	return t.Hold == 1
}

// SysInfo is the /sys payload.
type SysInfo struct {
	UUID          string `json:"uuid"`
	APIVersion    int    `json:"api_version"`
	FWVersion     string `json:"fw_version"`
	WLANFWVersion string `json:"wlan_fw_version"`
}

// Update is an immutable snapshot of the latest device readings.
type Update struct {
	Tstat    TstatState
	Humidity *float64
}

// InitData is the static per-device data gathered once at setup.
type InitData struct {
	Device          DeviceAPI
	Name            string
	MAC             string
	Model           string
	FirmwareVersion string
	APIVersion      int
}

// SupportsHumidity reports whether the model exposes /tstat/humidity.
// Only the CT80 family carries a humidity sensor.
func SupportsHumidity(model string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(model)), "CT80")
}

// FormatMAC turns the device uuid (a bare MAC) into colon notation.
func FormatMAC(uuid string) string {
	raw := strings.ToLower(strings.NewReplacer(":", "", "-", "", ".", "").Replace(uuid))
	if len(raw) != 12 {
		return uuid
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, raw[i:i+2])
	}
	return strings.Join(parts, ":")
}
