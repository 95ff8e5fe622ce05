// Package backend defines the boundary to the kernel hardware monitoring
// subsystem: detected chips, their features, and the numbered subfeature
// channels that carry values. Sysfs implements it on top of
// /sys/class/hwmon; the fake subpackage implements it in memory.
package backend

import (
	"fmt"
	"iter"
)

// Chip is a handle to a detected chip. It indexes the chip table owned by
// the backend and stays valid until Cleanup.
type Chip int

// FeatureType is the semantic kind of a feature.
type FeatureType int

const (
	FeatureIn FeatureType = iota
	FeatureFan
	FeatureTemp
	FeaturePower
	FeatureEnergy
	FeatureCurr
	FeatureHumidity
	FeatureIntrusion
	FeatureUnknown
)

var featureTypeNames = [...]string{
	FeatureIn:        "in",
	FeatureFan:       "fan",
	FeatureTemp:      "temp",
	FeaturePower:     "power",
	FeatureEnergy:    "energy",
	FeatureCurr:      "curr",
	FeatureHumidity:  "humidity",
	FeatureIntrusion: "intrusion",
	FeatureUnknown:   "unknown",
}

func (t FeatureType) String() string {
	if t < 0 || int(t) >= len(featureTypeNames) {
		return fmt.Sprintf("FeatureType(%d)", int(t))
	}
	return featureTypeNames[t]
}

// SubfeatureType identifies one channel of a feature.
type SubfeatureType int

const (
	InInput SubfeatureType = iota
	InMin
	InMax
	InLcrit
	InCrit
	InAlarm

	FanInput
	FanMin
	FanMax
	FanDiv
	FanAlarm

	TempInput
	TempMin
	TempMax
	TempCrit
	TempMaxHyst
	TempCritHyst
	TempLcrit
	TempEmergency
	TempAlarm

	PowerInput
	PowerAverage
	PowerMax
	PowerCap
	EnergyInput
	CurrInput
	CurrMin
	CurrMax
	HumidityInput
	IntrusionAlarm

	SubfeatureUnknown
)

// Feature is one measurable quantity on a chip. Number is the feature's
// position in the chip's feature list.
type Feature struct {
	Name   string
	Number int
	Type   FeatureType
}

// Subfeature is one numbered channel of a feature. Number is unique per
// chip and is what Value reads.
type Subfeature struct {
	Name   string
	Number int
	Type   SubfeatureType
}

// Backend is the hardware sensor subsystem as seen by the enumerator and
// the value resolver. Chips and features are produced as single-pass
// sequences; calling DetectedChips or Features again re-queries the
// backend.
type Backend interface {
	Init() error
	Cleanup()
	DetectedChips() iter.Seq[Chip]
	ChipName(chip Chip) (string, error)
	Features(chip Chip) iter.Seq[Feature]
	Subfeature(chip Chip, feature Feature, typ SubfeatureType) (Subfeature, bool)
	Label(chip Chip, feature Feature) (string, error)
	Value(chip Chip, number int) (float64, error)
}
