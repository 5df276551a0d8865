package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/superm1/bulb_controller/kasa"
)

type HAAdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "hab/bulbs/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name         string   `json:"name"` // : "Kitchen Bulb"
	Identifiers  []string `json:"ids"`  // : ["bulb_kitchen"]
	Model        string   `json:"mdl,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
}

// HAAdvertisement is a Home Assistant MQTT light discovery config. The
// value templates read from the bulb's JSON state topic, and the optional
// command topics are only advertised when the capability model says the
// hardware can honor them, so HA never offers a dead control.
type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	Availability            []HAAdvertisementAvailability `json:"availability"`
	Device                  HADeviceSpec                  `json:"device"`
	UniqueID                string                        `json:"uniq_id"`
	Name                    string                        `json:"name"`
	StateTopic              string                        `json:"state_topic"`
	StateValueTemplate      string                        `json:"state_value_template"`
	PayloadOn               string                        `json:"payload_on"`  // : "ON"
	PayloadOff              string                        `json:"payload_off"` // : "OFF"
	CommandTopic            string                        `json:"command_topic"`
	BrightnessCommandTopic  string                        `json:"brightness_command_topic,omitempty"`
	BrightnessStateTopic    string                        `json:"brightness_state_topic,omitempty"`
	BrightnessValueTemplate string                        `json:"brightness_value_template,omitempty"`
	BrightnessScale         int                           `json:"brightness_scale,omitempty"` // bulbs speak percent
	HSCommandTopic          string                        `json:"hs_command_topic,omitempty"`
	ColorTempCommandTopic   string                        `json:"color_temp_command_topic,omitempty"`
	ColorTempKelvin         bool                          `json:"color_temp_kelvin,omitempty"`
	MinKelvin               int                           `json:"min_kelvin,omitempty"`
	MaxKelvin               int                           `json:"max_kelvin,omitempty"`
	Platform                string                        `json:"platform"` // "light"
	Qos                     int                           `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// BulbCapabilities is the slice of the bulb capability model the discovery
// payload needs.
type BulbCapabilities struct {
	Kelvin   kasa.KelvinRange
	Model    string
	Dimmable bool
	Color    bool
}

func ConstructHAAdvertisement(name string, caps BulbCapabilities) HAAdvertisement {
	ha := HAAdvertisement{
		Name:               name,
		StateTopic:         StateTopic(name),
		StateValueTemplate: "{{ value_json.power }}",
		PayloadOn:          "ON",
		PayloadOff:         "OFF",
		CommandTopic:       CommandTopic(name, "power"),
		Availability: []HAAdvertisementAvailability{
			{
				Topic:               OnlineTopic,
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:      0,
		UniqueID: "bulb_controller-" + name,
		Platform: "light",
		Device: HADeviceSpec{
			Name:         name,
			Identifiers:  []string{"bulb_" + name},
			Model:        caps.Model,
			Manufacturer: "TP-Link",
		},
	}
	if caps.Dimmable {
		ha.BrightnessCommandTopic = CommandTopic(name, "brightness")
		ha.BrightnessStateTopic = StateTopic(name)
		ha.BrightnessValueTemplate = "{{ value_json.info.brightness }}"
		ha.BrightnessScale = 100
	}
	if caps.Color {
		ha.HSCommandTopic = CommandTopic(name, "hsv")
	}
	if caps.Kelvin.Supported() {
		ha.ColorTempCommandTopic = CommandTopic(name, "color_temp")
		ha.ColorTempKelvin = true
		ha.MinKelvin = caps.Kelvin.Min
		ha.MaxKelvin = caps.Kelvin.Max
	}
	return ha
}

func AdvertiseHA(bulbs map[string]BulbCapabilities, client MQTT.Client) {
	for name, caps := range bulbs {
		ha := ConstructHAAdvertisement(name, caps)
		if token := client.Publish("homeassistant/light/"+name+"/config", 0, false, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Panic().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
		}
	}
}
