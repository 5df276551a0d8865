package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/superm1/bulb_controller/kasa"
	"github.com/superm1/bulb_controller/state"
	. "github.com/superm1/bulb_controller/util"
)

// BulbHandle pairs a configured bulb with its live device handle.
type BulbHandle struct {
	Light    state.Light
	Name     string
	Host     string
	lastPoll int64
}

type Command struct {
	Payload []byte
	Topic   string
	Name    string
	Type    int
}

var model Model
var registry = state.NewRegistry()

var fleet = make(map[string]*BulbHandle)
var fleet_mu sync.RWMutex

// channels
var command_channel = make(chan Command, 10)

// newLight builds the device handle for a bulb host. Tests substitute fakes.
var newLight = func(host string) state.Light {
	return kasa.NewBulb(host)
}

// BuildFleet reconciles the device handles with the configured model. Bulbs
// keep their handle (and cached sysinfo) across reloads unless the host
// changed; bulbs removed from the config are forgotten.
func BuildFleet() {
	fleet_mu.Lock()
	defer fleet_mu.Unlock()
	seen := make(map[string]bool)
	for _, spec := range model.Bulbs {
		seen[spec.Name] = true
		if existing, ok := fleet[spec.Name]; !ok || existing.Host != spec.Host {
			fleet[spec.Name] = &BulbHandle{Name: spec.Name, Host: spec.Host, Light: newLight(spec.Host)}
		}
		fleet[spec.Name].Light.SetTransition(model.TransitionMs(spec.Name))
	}
	for name := range fleet {
		if !seen[name] {
			delete(fleet, name)
			registry.Forget(name)
		}
	}
}

func FindHandle(name string) *BulbHandle {
	fleet_mu.RLock()
	defer fleet_mu.RUnlock()
	return fleet[name]
}

func subscribeBulbTopics() {
	for _, topic := range model.SubscribeTopics() {
		RegisterMQTTSubscription(topic, receiver)
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Info().Msgf("Message Received on topic %s", message.Topic())
	var cmd Command
	cmd.Payload = message.Payload()
	cmd.Topic = message.Topic()
	cmd.Name = model.FindBulbByTopic(message.Topic())
	if cmd.Name == "" {
		Logger.Debug().Msgf("topic %s not found in model.  Fix subscription or add to model", message.Topic())
		return
	}
	cmd.Type = FindCommandType(message.Topic())
	if cmd.Type == -1 {
		Logger.Debug().Msgf("topic %s is not a command topic", message.Topic())
		return
	}
	Logger.Debug().Msgf("command message received: queue len %v", len(command_channel))
	command_channel <- cmd
}

func CommandManagerRoutine() {
	for cmd := range command_channel {
		handle := FindHandle(cmd.Name)
		if handle == nil {
			Logger.Warn().Msgf("command for unknown bulb %s", cmd.Name)
			continue
		}
		err := ApplyCommand(handle, cmd)
		switch {
		case err == nil:
			// refresh the retained state promptly so HA sees the change
			select {
			case poll_queue <- handle:
			default:
			}
		case kasa.IsArgumentError(err):
			Logger.Warn().Msgf("rejecting command on %s: %v", cmd.Topic, err)
		case kasa.IsCommunicationError(err):
			Logger.Error().Msgf("bulb %s unreachable: %v", cmd.Name, err)
			registry.MarkFailed(handle.Name, handle.Host, err)
		default:
			Logger.Error().Msgf("command on %s failed: %v", cmd.Topic, err)
		}
	}
}

func ApplyCommand(handle *BulbHandle, cmd Command) error {
	payload := strings.TrimSpace(string(cmd.Payload))
	switch cmd.Type {
	case POWER:
		return handle.Light.SetPower(kasa.PowerState(strings.ToUpper(payload)))
	case BRIGHTNESS:
		v, err := strconv.Atoi(payload)
		if err != nil {
			return &kasa.ArgumentError{Field: "brightness", Value: payload, Valid: "integer percent"}
		}
		return handle.Light.SetBrightness(v)
	case COLOR_TEMP:
		v, err := strconv.Atoi(payload)
		if err != nil {
			return &kasa.ArgumentError{Field: "color temperature", Value: payload, Valid: "integer kelvin"}
		}
		return handle.Light.SetColorTemp(v)
	case HSV:
		color, err := ParseHSVPayload(payload)
		if err != nil {
			return err
		}
		return handle.Light.SetHSV(color)
	}
	return fmt.Errorf("unhandled command type %d", cmd.Type)
}

// ParseHSVPayload accepts {"hue":h,"saturation":s,"value":v} or the
// comma form HA publishes on the hs command topic ("300.0,100.0"); a
// missing value component means full brightness.
func ParseHSVPayload(payload string) (kasa.HSV, error) {
	if strings.HasPrefix(payload, "{") {
		var color kasa.HSV
		if err := json.Unmarshal([]byte(payload), &color); err != nil {
			return kasa.HSV{}, &kasa.ArgumentError{Field: "hsv", Value: payload, Valid: "json or h,s[,v]"}
		}
		return color, nil
	}
	parts := strings.Split(payload, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return kasa.HSV{}, &kasa.ArgumentError{Field: "hsv", Value: payload, Valid: "json or h,s[,v]"}
	}
	color := kasa.HSV{Value: 100}
	fields := []*int{&color.Hue, &color.Saturation, &color.Value}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return kasa.HSV{}, &kasa.ArgumentError{Field: "hsv", Value: payload, Valid: "json or h,s[,v]"}
		}
		*fields[i] = int(math.Round(f))
	}
	return color, nil
}

// bulbCapabilities assembles the discovery input for every bulb the poller
// has reached at least once. Model() is served from the cached sysinfo at
// that point, so this does not touch the network.
func bulbCapabilities() map[string]BulbCapabilities {
	fleet_mu.RLock()
	defer fleet_mu.RUnlock()
	caps := make(map[string]BulbCapabilities)
	for name, handle := range fleet {
		status, ok := registry.Get(name)
		if !ok || !status.Reachable() {
			continue
		}
		entry := BulbCapabilities{
			Dimmable: status.Info.IsDimmable,
			Color:    status.Info.HSV != nil,
		}
		if status.Info.TempRange != nil {
			entry.Kelvin = *status.Info.TempRange
		}
		if m, err := handle.Light.Model(); err == nil {
			entry.Model = m
		}
		caps[name] = entry
	}
	return caps
}

// init
func Init() {
	go CommandManagerRoutine()
}

func main() {
	LogInit("trace")
	SetupConfig()
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := model.BuildModel(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})
	RegisterNewConfigListener(BuildFleet)
	RegisterNewConfigListener(subscribeBulbTopics)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		AdvertiseHA(bulbCapabilities(), client)
	})
	RegisterNewConfigListener(MqttInit)
	OnNewConfig()
	Init()
	monitor := NewMonitorServer()
	monitor.AddHandler("/", HomeHandler)
	monitor.AddHandler("/bulb_status", StatusOverview)
	monitor.AddHandler("/model", ModelApi)
	monitor.AddHandler("/ws", ServeWebSocket)
	monitor.AddHandler("/api/status", APISystemStatus)
	monitor.AddHandler("/api/bulb", APIBulbDetail)
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })
	bulb_poller.MakeBulbPoller()
	bulb_poller.Start()
	Logger.Info().Msg("ready")
	go OnlinePinger()   // start the online pinger
	go HAAdvertiser()   // start the HA advertisement pinger
	select {}           // block forever
}

// online pinger
func OnlinePinger() {
	for {
		if token := Client.Publish(OnlineTopic, 0, false, "online"); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error publishing online message: %v", token.Error())
		}
		time.Sleep(10 * time.Second)
	}
}

// HAAdvertiser - re-advertises discovery messages every 5 minutes so bulbs
// that came online after connect still get announced.
func HAAdvertiser() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if Client != nil && Client.IsConnected() {
			Logger.Debug().Msg("Advertising Home Assistant discovery messages")
			AdvertiseHA(bulbCapabilities(), Client)
		}
	}
}
