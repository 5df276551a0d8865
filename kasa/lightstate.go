package kasa

// LightState is the reply to get_light_state, fetched fresh for every read
// and never cached. When the bulb is off, the top-level color fields are
// stale and the dft_on_state block carries the values that will apply at
// next power-on; Target resolves that split in one place.
type LightState struct {
	DftOnState *LightState `json:"dft_on_state,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	OnOff      int         `json:"on_off"`
	Hue        int         `json:"hue"`
	Saturation int         `json:"saturation"`
	ColorTemp  int         `json:"color_temp"`
	Brightness int         `json:"brightness"`
}

func (s *LightState) IsOn() bool {
	return s.OnOff != 0
}

// Target returns the view a caller should read current values from: the
// live fields while on, the deferred default-on fields while off. An off
// state without a dft_on_state block falls back to the top level.
func (s *LightState) Target() *LightState {
	if !s.IsOn() && s.DftOnState != nil {
		return s.DftOnState
	}
	return s
}

// LightStateUpdate is a sparse transition_light_state request. Only the
// fields set are sent, so a brightness change does not disturb color mode
// and vice versa. Setting ColorTemp to 0 together with HSV fields switches
// the bulb out of temperature mode.
type LightStateUpdate struct {
	OnOff            *int    `json:"on_off,omitempty"`
	Hue              *int    `json:"hue,omitempty"`
	Saturation       *int    `json:"saturation,omitempty"`
	Brightness       *int    `json:"brightness,omitempty"`
	ColorTemp        *int    `json:"color_temp,omitempty"`
	TransitionPeriod *int    `json:"transition_period,omitempty"`
	IgnoreDefault    *int    `json:"ignore_default,omitempty"`
	Mode             *string `json:"mode,omitempty"`
}

// Int is a convenience for building sparse updates.
func Int(v int) *int {
	return &v
}
