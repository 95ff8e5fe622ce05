package sensor

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

// Kind is the physical quantity a sensor measures.
type Kind int

const (
	KindVoltage Kind = iota
	KindFan
	KindTemperature
)

var kindNames = [...]string{
	KindVoltage:     "voltage",
	KindFan:         "fan",
	KindTemperature: "temperature",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Symbol is the display suffix for values of this kind.
func (k Kind) Symbol() string {
	switch k {
	case KindVoltage:
		return "V"
	case KindFan:
		return "RPM"
	case KindTemperature:
		return "°C"
	}
	return ""
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, errors.Errorf("unknown sensor kind %q", s)
}

// Unit is the unit a sensor reports in. Generic sensors leave it
// unspecified; temperature sensors report Celsius.
type Unit int

const (
	UnitUnspecified Unit = iota
	UnitCelsius
)

func (u Unit) String() string {
	if u == UnitCelsius {
		return "C"
	}
	return "U"
}

// Bound is an optional limit. The zero value means "no bound".
type Bound struct {
	Value float64
	Valid bool
}

// NoBound is an unset bound.
var NoBound = Bound{}

// BoundAt returns a set bound.
func BoundAt(v float64) Bound {
	return Bound{Value: v, Valid: true}
}

// Updater refreshes a sensor's value on request. The hardware backend
// implements it; Update on a sensor notifies every subscribed Updater.
type Updater interface {
	UpdateValue(s *Sensor)
}

// Sensor is one monitored quantity: a fixed description plus the latest
// value or read error.
type Sensor struct {
	source string
	id     string
	label  string
	kind   Kind
	unit   Unit
	low    Bound
	high   Bound

	mu       sync.Mutex
	value    float64
	hasValue bool
	err      error
	updaters []Updater
	onError  []func(*Sensor, error)
}

// New creates a generic sensor (voltage, fan) with an unspecified unit.
func New(source, id, label string, kind Kind, low, high Bound) *Sensor {
	return &Sensor{
		source: source,
		id:     id,
		label:  label,
		kind:   kind,
		unit:   UnitUnspecified,
		low:    low,
		high:   high,
	}
}

// NewTemperature creates a temperature sensor reporting in Celsius.
func NewTemperature(source, id, label string, low, high Bound) *Sensor {
	s := New(source, id, label, KindTemperature, low, high)
	s.unit = UnitCelsius
	return s
}

func (s *Sensor) Source() string { return s.source }
func (s *Sensor) ID() string     { return s.id }
func (s *Sensor) Label() string  { return s.label }
func (s *Sensor) Kind() Kind     { return s.kind }
func (s *Sensor) Unit() Unit     { return s.unit }
func (s *Sensor) Low() Bound     { return s.low }
func (s *Sensor) High() Bound    { return s.high }

// Value returns the last value set, and whether one was ever set.
func (s *Sensor) Value() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Err returns the error from the most recent failed read, or nil if the
// most recent read succeeded.
func (s *Sensor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetValue records a fresh value and clears any previous error.
func (s *Sensor) SetValue(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.hasValue, s.err = v, true, nil
}

// EmitError records a failed read. The previous value is kept.
func (s *Sensor) EmitError(err error) {
	s.mu.Lock()
	s.err = err
	handlers := slices.Clone(s.onError)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(s, err)
	}
}

// OnUpdate subscribes u to update requests.
func (s *Sensor) OnUpdate(u Updater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updaters = append(s.updaters, u)
}

// OnError registers fn to run after every EmitError.
func (s *Sensor) OnError(fn func(*Sensor, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

// Update asks every subscribed Updater for a fresh value. It returns once
// they have all answered.
func (s *Sensor) Update() {
	s.mu.Lock()
	updaters := slices.Clone(s.updaters)
	s.mu.Unlock()

	for _, u := range updaters {
		u.UpdateValue(s)
	}
}

// Detach drops all subscriptions. Update is a no-op afterwards.
func (s *Sensor) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updaters = nil
	s.onError = nil
}

// Reading snapshots the sensor.
func (s *Sensor) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Reading{
		ID:       s.id,
		Source:   s.source,
		Chip:     ChipOf(s.id),
		Label:    s.label,
		Kind:     s.kind,
		Unit:     s.unit,
		Value:    s.value,
		HasValue: s.hasValue,
		Low:      s.low.Value,
		HasLow:   s.low.Valid,
		High:     s.high.Value,
		HasHigh:  s.high.Valid,
	}
	if s.err != nil {
		r.Err = s.err.Error()
	}
	return r
}
