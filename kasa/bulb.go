package kasa

import (
	"encoding/json"
	"fmt"
)

const (
	lightingService = "smartlife.iot.smartbulb.lightingservice"
	bulbEmeterType  = "smartlife.iot.common.emeter"
)

// PowerState is the externally observed bulb power state.
type PowerState string

const (
	PowerOn  PowerState = "ON"
	PowerOff PowerState = "OFF"
)

// Bulb is a TP-Link smart bulb (LB/KB/KL series).
//
// Every accessor is a fresh, blocking round trip to the device: reads fetch
// the full light state and pick the fields out, writes send a sparse
// transition request. Nothing is cached between calls except the sysinfo
// identity, so two consecutive accessors may observe different device
// states if someone flips the bulb in between. Writes for capabilities the
// bulb does not have (brightness on a non-dimmable bulb and so on) are
// silent no-ops rather than errors, so callers can drive mixed fleets with
// one code path.
type Bulb struct {
	*Device
	transition int
}

// NewBulb connects to a bulb over the standard wire protocol.
func NewBulb(host string) *Bulb {
	return NewBulbWithQuerier(NewProtocol(host))
}

// NewBulbWithQuerier wires a bulb over a caller-supplied transport.
func NewBulbWithQuerier(q Querier) *Bulb {
	d := NewDevice(q)
	d.emeterType = bulbEmeterType
	return &Bulb{Device: d}
}

// IsColor reports whether the bulb supports color changes.
func (b *Bulb) IsColor() (bool, error) {
	info, err := b.SysInfo()
	if err != nil {
		return false, err
	}
	return bool(info.IsColor), nil
}

// IsDimmable reports whether the bulb supports brightness changes.
func (b *Bulb) IsDimmable() (bool, error) {
	info, err := b.SysInfo()
	if err != nil {
		return false, err
	}
	return bool(info.IsDimmable), nil
}

// IsVariableColorTemp reports whether the bulb supports color temperature
// changes.
func (b *Bulb) IsVariableColorTemp() (bool, error) {
	info, err := b.SysInfo()
	if err != nil {
		return false, err
	}
	return bool(info.IsVariableColorTemp), nil
}

// ValidTemperatureRange returns the white spectrum the hardware covers,
// looked up by model code. Bulbs without variable color temperature and
// models missing from the table report the zero range.
func (b *Bulb) ValidTemperatureRange() (KelvinRange, error) {
	capable, err := b.IsVariableColorTemp()
	if err != nil {
		return KelvinRange{}, err
	}
	if !capable {
		return KelvinRange{}, nil
	}
	info, err := b.SysInfo()
	if err != nil {
		return KelvinRange{}, err
	}
	return kelvinRangeForModel(info.Model), nil
}

// GetLightState fetches the current light state from the device.
func (b *Bulb) GetLightState() (LightState, error) {
	raw, err := b.Query(lightingService, "get_light_state", nil)
	if err != nil {
		return LightState{}, err
	}
	var state LightState
	if err := json.Unmarshal(raw, &state); err != nil {
		return LightState{}, &CommunicationError{Host: b.Host(), Err: fmt.Errorf("malformed light state: %w", err)}
	}
	return state, nil
}

// SetTransition sets a default fade duration in milliseconds applied to
// state writes that do not carry their own transition period.
func (b *Bulb) SetTransition(ms int) {
	b.transition = ms
}

// SetLightState sends a sparse state transition and returns the device's
// acknowledgement state.
func (b *Bulb) SetLightState(update LightStateUpdate) (LightState, error) {
	if update.TransitionPeriod == nil && b.transition > 0 {
		update.TransitionPeriod = Int(b.transition)
	}
	raw, err := b.Query(lightingService, "transition_light_state", update)
	if err != nil {
		return LightState{}, err
	}
	var state LightState
	if err := json.Unmarshal(raw, &state); err != nil {
		return LightState{}, &CommunicationError{Host: b.Host(), Err: fmt.Errorf("malformed light state: %w", err)}
	}
	return state, nil
}

// Power reads the bulb's power state.
func (b *Bulb) Power() (PowerState, error) {
	state, err := b.GetLightState()
	if err != nil {
		return "", err
	}
	if state.IsOn() {
		return PowerOn, nil
	}
	return PowerOff, nil
}

// SetPower switches the bulb on or off. Only the PowerOn/PowerOff tokens
// are accepted; anything else fails without touching the device.
func (b *Bulb) SetPower(state PowerState) error {
	var onOff int
	switch state {
	case PowerOn:
		onOff = 1
	case PowerOff:
		onOff = 0
	default:
		return &ArgumentError{Field: "power state", Value: string(state), Valid: "ON/OFF"}
	}
	_, err := b.SetLightState(LightStateUpdate{OnOff: &onOff})
	return err
}

func (b *Bulb) IsOn() (bool, error) {
	power, err := b.Power()
	if err != nil {
		return false, err
	}
	return power == PowerOn, nil
}

func (b *Bulb) TurnOn() error {
	return b.SetPower(PowerOn)
}

func (b *Bulb) TurnOff() error {
	return b.SetPower(PowerOff)
}

// Brightness reads the current brightness percentage. The second result is
// false when the bulb is not dimmable; while the bulb is off the deferred
// default-on brightness is reported instead of the stale live field.
func (b *Bulb) Brightness() (int, bool, error) {
	dimmable, err := b.IsDimmable()
	if err != nil || !dimmable {
		return 0, false, err
	}
	state, err := b.GetLightState()
	if err != nil {
		return 0, false, err
	}
	return state.Target().Brightness, true, nil
}

// SetBrightness sets the brightness percentage. On a non-dimmable bulb this
// does nothing. The value is passed through unchecked: the device rejects
// percentages outside 0-100 itself, and that reply surfaces as a
// CommunicationError.
func (b *Bulb) SetBrightness(brightness int) error {
	dimmable, err := b.IsDimmable()
	if err != nil || !dimmable {
		return err
	}
	_, err = b.SetLightState(LightStateUpdate{Brightness: &brightness})
	return err
}

// HSV is a color in hue (degrees), saturation (%) and value (%).
type HSV struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Value      int `json:"value"`
}

// HSV reads the current color. The second result is false when the bulb
// has no color support; while off, the deferred default-on color is
// reported.
func (b *Bulb) HSV() (HSV, bool, error) {
	color, err := b.IsColor()
	if err != nil || !color {
		return HSV{}, false, err
	}
	state, err := b.GetLightState()
	if err != nil {
		return HSV{}, false, err
	}
	target := state.Target()
	return HSV{Hue: target.Hue, Saturation: target.Saturation, Value: target.Brightness}, true, nil
}

// SetHSV changes the bulb color. On a bulb without color support this does
// nothing. Out-of-range channels fail with an ArgumentError before any
// request is sent. The transition also zeroes color_temp, which is how the
// device is told to leave temperature mode.
func (b *Bulb) SetHSV(color HSV) error {
	capable, err := b.IsColor()
	if err != nil || !capable {
		return err
	}
	if color.Hue < 0 || color.Hue > 360 {
		return &ArgumentError{Field: "hue", Value: color.Hue, Min: 0, Max: 360}
	}
	if color.Saturation < 0 || color.Saturation > 100 {
		return &ArgumentError{Field: "saturation", Value: color.Saturation, Min: 0, Max: 100}
	}
	if color.Value < 0 || color.Value > 100 {
		return &ArgumentError{Field: "value", Value: color.Value, Min: 0, Max: 100}
	}
	_, err = b.SetLightState(LightStateUpdate{
		Hue:        &color.Hue,
		Saturation: &color.Saturation,
		Brightness: &color.Value,
		ColorTemp:  Int(0),
	})
	return err
}

// ColorTemp reads the current color temperature in Kelvin. The second
// result is false when the bulb cannot vary its temperature; while off,
// the deferred default-on temperature is reported.
func (b *Bulb) ColorTemp() (int, bool, error) {
	capable, err := b.IsVariableColorTemp()
	if err != nil || !capable {
		return 0, false, err
	}
	state, err := b.GetLightState()
	if err != nil {
		return 0, false, err
	}
	return state.Target().ColorTemp, true, nil
}

// SetColorTemp sets the color temperature in Kelvin. On a bulb without
// variable color temperature this does nothing. Values outside the model's
// valid range (boundaries included) fail with an ArgumentError before any
// request is sent.
func (b *Bulb) SetColorTemp(kelvin int) error {
	capable, err := b.IsVariableColorTemp()
	if err != nil || !capable {
		return err
	}
	valid, err := b.ValidTemperatureRange()
	if err != nil {
		return err
	}
	if !valid.Contains(kelvin) {
		return &ArgumentError{Field: "color temperature", Value: kelvin, Min: valid.Min, Max: valid.Max}
	}
	_, err = b.SetLightState(LightStateUpdate{ColorTemp: &kelvin})
	return err
}

// StateInfo is a presentable capability and state snapshot.
type StateInfo struct {
	Brightness *int         `json:"brightness"`
	ColorTemp  *int         `json:"color_temp,omitempty"`
	TempRange  *KelvinRange `json:"valid_temperature_range,omitempty"`
	HSV        *HSV         `json:"hsv,omitempty"`
	IsDimmable bool         `json:"is_dimmable"`
}

// StateInfo assembles a snapshot by calling the individual accessors, so
// each field follows the same off-state and unsupported-capability rules
// they do. The accessors are separate round trips; a state change on the
// device mid-snapshot can produce a torn view, which is accepted.
func (b *Bulb) StateInfo() (StateInfo, error) {
	var info StateInfo

	brightness, ok, err := b.Brightness()
	if err != nil {
		return StateInfo{}, err
	}
	if ok {
		info.Brightness = &brightness
	}
	if info.IsDimmable, err = b.IsDimmable(); err != nil {
		return StateInfo{}, err
	}

	if temp, ok, err := b.ColorTemp(); err != nil {
		return StateInfo{}, err
	} else if ok {
		info.ColorTemp = &temp
		valid, err := b.ValidTemperatureRange()
		if err != nil {
			return StateInfo{}, err
		}
		info.TempRange = &valid
	}

	if color, ok, err := b.HSV(); err != nil {
		return StateInfo{}, err
	} else if ok {
		info.HSV = &color
	}

	return info, nil
}

// LightDetails are the static lamp characteristics from get_light_details.
type LightDetails struct {
	LampBeamAngle          int `json:"lamp_beam_angle"`
	MinVoltage             int `json:"min_voltage"`
	MaxVoltage             int `json:"max_voltage"`
	Wattage                int `json:"wattage"`
	IncandescentEquivalent int `json:"incandescent_equivalent"`
	MaxLumens              int `json:"max_lumens"`
	ColorRenderingIndex    int `json:"color_rendering_index"`
}

func (b *Bulb) LightDetails() (LightDetails, error) {
	raw, err := b.Query(lightingService, "get_light_details", nil)
	if err != nil {
		return LightDetails{}, err
	}
	var details LightDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return LightDetails{}, &CommunicationError{Host: b.Host(), Err: fmt.Errorf("malformed light details: %w", err)}
	}
	return details, nil
}

// HasEmeter reports whether the device meters energy. All Kasa bulbs do.
func (b *Bulb) HasEmeter() bool {
	return true
}
