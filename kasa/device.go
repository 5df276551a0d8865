package kasa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flag is a capability flag as devices report it. Firmwares disagree on the
// wire type (0/1 on some models, true/false on others), so it decodes both.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "0", "false":
		*f = false
	case "true":
		*f = true
	default:
		// any non-zero number counts as set
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("capability flag: unexpected value %s", data)
		}
		*f = n != 0
	}
	return nil
}

// SysInfo is the device's self-description from system/get_sysinfo. It is
// treated as immutable for a session; only GetSysInfo refreshes it.
type SysInfo struct {
	Alias               string `json:"alias"`
	Model               string `json:"model"`
	SWVersion           string `json:"sw_ver"`
	HWVersion           string `json:"hw_ver"`
	Type                string `json:"mic_type"`
	DeviceID            string `json:"deviceId"`
	IsColor             Flag   `json:"is_color"`
	IsDimmable          Flag   `json:"is_dimmable"`
	IsVariableColorTemp Flag   `json:"is_variable_color_temp"`
	RSSI                int    `json:"rssi"`
}

// Device is the base for all Kasa devices: identity, alias handling, and the
// energy meter passthrough. Model-specific behavior (the bulb accessors)
// lives on the types embedding it.
type Device struct {
	querier    Querier
	sysinfo    *SysInfo
	emeterType string
}

func NewDevice(q Querier) *Device {
	return &Device{
		querier:    q,
		emeterType: "emeter",
	}
}

func (d *Device) Host() string {
	return d.querier.Host()
}

func (d *Device) Query(service string, command string, args any) (json.RawMessage, error) {
	return d.querier.Query(service, command, args)
}

// GetSysInfo fetches the device identity and replaces the cached copy.
func (d *Device) GetSysInfo() (*SysInfo, error) {
	raw, err := d.Query("system", "get_sysinfo", nil)
	if err != nil {
		return nil, err
	}
	var info SysInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &CommunicationError{Host: d.Host(), Err: fmt.Errorf("malformed sysinfo: %w", err)}
	}
	d.sysinfo = &info
	return d.sysinfo, nil
}

// SysInfo returns the cached identity, fetching it on first use. Accessors
// branch on this cached copy so capability answers stay stable for the
// session.
func (d *Device) SysInfo() (*SysInfo, error) {
	if d.sysinfo != nil {
		return d.sysinfo, nil
	}
	return d.GetSysInfo()
}

func (d *Device) Alias() (string, error) {
	info, err := d.SysInfo()
	if err != nil {
		return "", err
	}
	return info.Alias, nil
}

func (d *Device) SetAlias(alias string) error {
	_, err := d.Query("system", "set_dev_alias", map[string]string{"alias": alias})
	if err == nil && d.sysinfo != nil {
		d.sysinfo.Alias = alias
	}
	return err
}

func (d *Device) Model() (string, error) {
	info, err := d.SysInfo()
	if err != nil {
		return "", err
	}
	return info.Model, nil
}

// EmeterRealtime reads the instantaneous power figures. Field names differ
// between hardware generations, so the reply stays a loose mapping.
func (d *Device) EmeterRealtime() (map[string]float64, error) {
	raw, err := d.Query(d.emeterType, "get_realtime", nil)
	if err != nil {
		return nil, err
	}
	readings := make(map[string]float64)
	if err := json.Unmarshal(raw, &readings); err != nil {
		return nil, &CommunicationError{Host: d.Host(), Err: fmt.Errorf("malformed emeter reply: %w", err)}
	}
	delete(readings, "err_code")
	return readings, nil
}

// EmeterDayStat is one day's consumption from the emeter history.
type EmeterDayStat struct {
	Year     int `json:"year"`
	Month    int `json:"month"`
	Day      int `json:"day"`
	EnergyWh int `json:"energy_wh"`
}

func (d *Device) EmeterDayStats(year int, month int) ([]EmeterDayStat, error) {
	raw, err := d.Query(d.emeterType, "get_daystat", map[string]int{"year": year, "month": month})
	if err != nil {
		return nil, err
	}
	var reply struct {
		DayList []EmeterDayStat `json:"day_list"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, &CommunicationError{Host: d.Host(), Err: fmt.Errorf("malformed emeter reply: %w", err)}
	}
	return reply.DayList, nil
}
