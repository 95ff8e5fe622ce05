package hwmon

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luki/hwsensors/internal/backend"
	"github.com/luki/hwsensors/internal/sensor"
)

const (
	// DefaultSource tags the sensors this package publishes.
	DefaultSource = "libsensors"

	// MaxChipNameLen is the longest chip name accepted for an identifier.
	MaxChipNameLen = 200
)

// Sink receives the sensors a Plugin publishes and takes ownership of
// them.
type Sink interface {
	AddSensor(s *sensor.Sensor)
	RemoveAllSensors(source string)
}

// roles lists which subfeatures carry the value and bounds of a feature
// kind. Bound lists are tried in order; the first present one is used.
type roles struct {
	kind  sensor.Kind
	input backend.SubfeatureType
	low   []backend.SubfeatureType
	high  []backend.SubfeatureType
}

var kindRoles = map[backend.FeatureType]roles{
	backend.FeatureIn: {
		kind:  sensor.KindVoltage,
		input: backend.InInput,
		low:   []backend.SubfeatureType{backend.InMin},
		high:  []backend.SubfeatureType{backend.InMax},
	},
	backend.FeatureFan: {
		kind:  sensor.KindFan,
		input: backend.FanInput,
		low:   []backend.SubfeatureType{backend.FanMin},
	},
	backend.FeatureTemp: {
		kind:  sensor.KindTemperature,
		input: backend.TempInput,
		low:   []backend.SubfeatureType{backend.TempMin},
		high:  []backend.SubfeatureType{backend.TempMax, backend.TempCrit},
	},
}

// Plugin publishes one session's sensors.
type Plugin struct {
	session *Session
	source  string
	logger  *zap.SugaredLogger
}

// NewPlugin returns a plugin tagging its sensors with source.
func NewPlugin(session *Session, source string, logger *zap.SugaredLogger) *Plugin {
	if source == "" {
		source = DefaultSource
	}
	return &Plugin{session: session, source: source, logger: logger}
}

// Source is the tag carried by every sensor this plugin publishes.
func (p *Plugin) Source() string { return p.source }

// Activate enumerates every chip and feature of the backend and hands one
// sensor per usable feature to sink. Chips and features that cannot be
// used are logged and skipped. Sensors from an earlier activation are
// withdrawn first. It returns the number of sensors added.
func (p *Plugin) Activate(sink Sink) int {
	reg := p.session.Registry()
	if p.session.State() != Ready || reg == nil {
		p.logger.Warn("sensor backend is not initialized, unable to find sensors")
		return 0
	}

	if reg.Len() > 0 {
		// Activated again without a Deactivate: start from scratch.
		p.logger.Debugw("withdrawing sensors before re-enumeration", "sensors", reg.Len())
		p.Deactivate(sink)
	}

	p.logger.Debug("searching for sensors")
	b := p.session.Backend()
	added := 0
	for chip := range b.DetectedChips() {
		added += p.processChip(b, reg, chip, sink)
	}
	p.logger.Debugw("sensor search done", "sensors", added)
	return added
}

// Deactivate withdraws every sensor tagged with the plugin's source and
// forgets their identifiers. The session stays up.
func (p *Plugin) Deactivate(sink Sink) {
	sink.RemoveAllSensors(p.source)
	if reg := p.session.Registry(); reg != nil {
		reg.Clear()
	}
}

func (p *Plugin) processChip(b backend.Backend, reg *Registry, chip backend.Chip, sink Sink) int {
	name, err := chipName(b, chip)
	if err != nil {
		p.logger.Warnw("error getting name string for chip", "chip", int(chip), "error", err)
		return 0
	}

	added := 0
	for feature := range b.Features(chip) {
		s, err := p.newSensor(b, chip, name, feature)
		if err != nil {
			p.logger.Warnw("skipping sensor feature",
				"chip", name, "feature", feature.Name, "error", err)
			continue
		}
		reg.Insert(s.ID(), chip)
		s.OnUpdate(p)
		sink.AddSensor(s)
		added++
	}
	return added
}

func chipName(b backend.Backend, chip backend.Chip) (string, error) {
	name, err := b.ChipName(chip)
	if err != nil {
		return "", err
	}
	if len(name) > MaxChipNameLen {
		return "", errors.Errorf("chip name is %d bytes, longer than %d", len(name), MaxChipNameLen)
	}
	return name, nil
}

func (p *Plugin) newSensor(b backend.Backend, chip backend.Chip, chipName string, feature backend.Feature) (*sensor.Sensor, error) {
	r, ok := kindRoles[feature.Type]
	if !ok {
		return nil, errors.Errorf("unsupported feature type %s", feature.Type)
	}
	input, ok := b.Subfeature(chip, feature, r.input)
	if !ok {
		return nil, errors.New("could not get input subfeature")
	}
	label, err := b.Label(chip, feature)
	if err != nil {
		return nil, errors.Wrap(err, "could not get label")
	}

	low := p.readBound(b, chip, feature, r.low)
	high := p.readBound(b, chip, feature, r.high)

	value, err := b.Value(chip, input.Number)
	if err != nil {
		return nil, errors.Wrap(err, "could not get value for input subfeature")
	}

	id := MakeID(chipName, input.Number)
	var s *sensor.Sensor
	if r.kind == sensor.KindTemperature {
		s = sensor.NewTemperature(p.source, id, label, low, high)
	} else {
		s = sensor.New(p.source, id, label, r.kind, low, high)
	}
	s.SetValue(value)
	return s, nil
}

// readBound reads the first present subfeature of types. An unreadable
// bound is left unset rather than failing the feature.
func (p *Plugin) readBound(b backend.Backend, chip backend.Chip, feature backend.Feature, types []backend.SubfeatureType) sensor.Bound {
	for _, typ := range types {
		sub, ok := b.Subfeature(chip, feature, typ)
		if !ok {
			continue
		}
		v, err := b.Value(chip, sub.Number)
		if err != nil {
			p.logger.Debugw("ignoring unreadable bound",
				"feature", feature.Name, "subfeature", sub.Name, "error", err)
			return sensor.NoBound
		}
		return sensor.BoundAt(v)
	}
	return sensor.NoBound
}
