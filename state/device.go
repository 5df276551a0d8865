package state

import "github.com/superm1/bulb_controller/kasa"

// Light is the controllable surface the controller needs from a bulb
// handle. kasa.Bulb satisfies it; tests substitute mocks.
type Light interface {
	Model() (string, error)
	Power() (kasa.PowerState, error)
	SetPower(kasa.PowerState) error
	TurnOn() error
	TurnOff() error
	SetBrightness(int) error
	SetColorTemp(int) error
	SetHSV(kasa.HSV) error
	SetTransition(ms int)
	StateInfo() (kasa.StateInfo, error)
}
