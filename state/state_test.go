package state

import (
	"fmt"
	"testing"

	"github.com/superm1/bulb_controller/kasa"
)

// Mock light for testing interfaces

type MockLight struct {
	info  kasa.StateInfo
	power kasa.PowerState
}

func (m *MockLight) Model() (string, error)          { return "LB130(US)", nil }
func (m *MockLight) Power() (kasa.PowerState, error) { return m.power, nil }
func (m *MockLight) SetPower(p kasa.PowerState) error {
	if p != kasa.PowerOn && p != kasa.PowerOff {
		return &kasa.ArgumentError{Field: "power state", Value: string(p), Valid: "ON/OFF"}
	}
	m.power = p
	return nil
}
func (m *MockLight) TurnOn() error                      { return m.SetPower(kasa.PowerOn) }
func (m *MockLight) TurnOff() error                     { return m.SetPower(kasa.PowerOff) }
func (m *MockLight) SetBrightness(v int) error          { return nil }
func (m *MockLight) SetColorTemp(v int) error           { return nil }
func (m *MockLight) SetHSV(c kasa.HSV) error            { return nil }
func (m *MockLight) SetTransition(ms int)               {}
func (m *MockLight) StateInfo() (kasa.StateInfo, error) { return m.info, nil }

func TestLightInterface(t *testing.T) {
	// kasa.Bulb must satisfy Light
	var _ Light = (*kasa.Bulb)(nil)

	light := &MockLight{power: kasa.PowerOff}
	var l Light = light

	if err := l.TurnOn(); err != nil {
		t.Fatalf("TurnOn() returned error: %v", err)
	}
	power, err := l.Power()
	if err != nil {
		t.Fatalf("Power() returned error: %v", err)
	}
	if power != kasa.PowerOn {
		t.Errorf("Power() = %v, expected %v", power, kasa.PowerOn)
	}
}

func TestRegistryUpdateAndGet(t *testing.T) {
	registry := NewRegistry()

	registry.Update(BulbStatus{Name: "kitchen", Host: "10.0.0.5", Power: kasa.PowerOn})

	status, ok := registry.Get("kitchen")
	if !ok {
		t.Fatal("Get() should find an updated bulb")
	}
	if status.Power != kasa.PowerOn {
		t.Errorf("Power = %v, expected %v", status.Power, kasa.PowerOn)
	}
	if status.LastSeen == 0 {
		t.Error("Update should stamp LastSeen")
	}
	if !status.Reachable() {
		t.Error("bulb with no error should be reachable")
	}

	if _, ok := registry.Get("bedroom"); ok {
		t.Error("Get() should not find an unknown bulb")
	}
}

func TestRegistryMarkFailedKeepsLastObservation(t *testing.T) {
	registry := NewRegistry()
	registry.Update(BulbStatus{Name: "kitchen", Host: "10.0.0.5", Power: kasa.PowerOn})

	registry.MarkFailed("kitchen", "10.0.0.5", fmt.Errorf("connection refused"))

	status, ok := registry.Get("kitchen")
	if !ok {
		t.Fatal("Get() should still find the failed bulb")
	}
	if status.Reachable() {
		t.Error("failed bulb should not be reachable")
	}
	if status.LastError != "connection refused" {
		t.Errorf("LastError = %q", status.LastError)
	}
	// previous observation survives
	if status.Power != kasa.PowerOn {
		t.Errorf("Power after failure = %v, expected %v retained", status.Power, kasa.PowerOn)
	}

	// a successful poll clears the error
	registry.Update(BulbStatus{Name: "kitchen", Host: "10.0.0.5", Power: kasa.PowerOff})
	status, _ = registry.Get("kitchen")
	if !status.Reachable() {
		t.Error("successful update should clear the error")
	}
}

func TestRegistryAllSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"porch", "bedroom", "kitchen"} {
		registry.Update(BulbStatus{Name: name})
	}

	all := registry.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d statuses, expected 3", len(all))
	}
	expected := []string{"bedroom", "kitchen", "porch"}
	for i, status := range all {
		if status.Name != expected[i] {
			t.Errorf("All()[%d] = %s, expected %s", i, status.Name, expected[i])
		}
	}

	registry.Forget("kitchen")
	if len(registry.All()) != 2 {
		t.Error("Forget should drop the bulb")
	}
}
