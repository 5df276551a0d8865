package util

import (
	"fmt"
	"strings"
)

const ( //command types
	POWER      = iota
	BRIGHTNESS = iota
	COLOR_TEMP = iota
	HSV        = iota
)

const topicPrefix = "hab/bulb/"

type Model struct {
	Bulbs []BulbSpec `mapstructure:"bulbs"`
}

type BulbSpec struct {
	Name          string `mapstructure:"name"`
	Host          string `mapstructure:"host"`
	Poll_seconds  int64  `mapstructure:"poll_seconds"`
	Transition_ms int    `mapstructure:"transition_ms"`
}

func (m *Model) BuildModel() error {
	err := Config.UnmarshalKey("model", m)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling model: %v", err)
		return fmt.Errorf("error")
	}
	return nil
}

func (m Model) FindBulbByName(name string) *BulbSpec {
	for i, entry := range m.Bulbs {
		if entry.Name == name {
			return &m.Bulbs[i]
		}
	}
	return nil
}

// FindBulbByTopic extracts the bulb name from any of that bulb's topics.
func (m Model) FindBulbByTopic(topic string) string {
	rest, found := strings.CutPrefix(topic, topicPrefix)
	if !found {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	for _, entry := range m.Bulbs {
		if entry.Name == name {
			return entry.Name
		}
	}
	return ""
}

// FindCommandType classifies a command topic, -1 for anything else.
func FindCommandType(topic string) int {
	switch {
	case strings.HasSuffix(topic, "/set/power"):
		return POWER
	case strings.HasSuffix(topic, "/set/brightness"):
		return BRIGHTNESS
	case strings.HasSuffix(topic, "/set/color_temp"):
		return COLOR_TEMP
	case strings.HasSuffix(topic, "/set/hsv"):
		return HSV
	}
	return -1
}

func StateTopic(name string) string {
	return topicPrefix + name + "/state"
}

func CommandTopic(name string, field string) string {
	return topicPrefix + name + "/set/" + field
}

func CommandTopicFilter(name string) string {
	return topicPrefix + name + "/set/#"
}

func (m Model) PollPeriod(name string) int64 {
	for _, entry := range m.Bulbs {
		if entry.Name == name && entry.Poll_seconds > 0 {
			return entry.Poll_seconds
		}
	}
	return Config.GetInt64("poll_frequency")
}

func (m Model) TransitionMs(name string) int {
	for _, entry := range m.Bulbs {
		if entry.Name == name && entry.Transition_ms > 0 {
			return entry.Transition_ms
		}
	}
	return Config.GetInt("transition_ms")
}

func (m Model) SubscribeTopics() []string {
	var topics []string
	for _, bulb := range m.Bulbs {
		topics = append(topics, CommandTopicFilter(bulb.Name))
	}
	return topics
}
