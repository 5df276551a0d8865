package kasa

import "strings"

// KelvinRange is the inclusive color-temperature spectrum a bulb model can
// produce. The zero value means "no range": either the model is unknown or
// the bulb cannot vary its temperature. Never treat (0,0) as a real range.
type KelvinRange struct {
	Min int
	Max int
}

func (r KelvinRange) Supported() bool {
	return r != KelvinRange{}
}

func (r KelvinRange) Contains(kelvin int) bool {
	return kelvin >= r.Min && kelvin <= r.Max
}

type kelvinEntry struct {
	prefix string
	rng    KelvinRange
}

// Model codes share prefixes across regional variants (e.g. LB130(EU)), so
// entries match as prefixes and the first hit wins.
var kelvinRanges = []kelvinEntry{
	{"LB130", KelvinRange{2500, 9000}},
	{"LB120", KelvinRange{2700, 6500}},
	{"LB230", KelvinRange{2500, 9000}},
	{"KB130", KelvinRange{2500, 9000}},
	{"KL130", KelvinRange{2500, 9000}},
	{"KL125", KelvinRange{2500, 6500}},
	{"KL120", KelvinRange{2700, 6500}},
}

func kelvinRangeForModel(model string) KelvinRange {
	for _, entry := range kelvinRanges {
		if strings.HasPrefix(model, entry.prefix) {
			return entry.rng
		}
	}
	return KelvinRange{}
}
