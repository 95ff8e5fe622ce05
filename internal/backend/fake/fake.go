// Package fake implements an in-memory backend whose chips, values and
// failures are set up by tests.
package fake

import (
	"iter"
	"sync"

	"github.com/luki/hwsensors/internal/backend"
)

// Subfeature is one programmable channel.
type Subfeature struct {
	Type backend.SubfeatureType
	// Number is assigned by AddChip.
	Number int
	Value  float64
	Err    error
}

// Feature is one programmable feature.
type Feature struct {
	Name        string
	Type        backend.FeatureType
	Label       string
	LabelErr    error
	Subfeatures []*Subfeature
}

// Chip is one programmable chip.
type Chip struct {
	Name     string
	NameErr  error
	Features []*Feature
}

// Backend is a fake backend.Backend.
type Backend struct {
	mu sync.Mutex

	// InitErr is returned by Init when set.
	InitErr error
	Inits    int
	Cleanups int

	chips []*Chip
	ready bool
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{}
}

// Sub builds a subfeature carrying value.
func Sub(typ backend.SubfeatureType, value float64) *Subfeature {
	return &Subfeature{Type: typ, Value: value}
}

// NewFeature builds a feature; label doubles as the name when name is empty.
func NewFeature(typ backend.FeatureType, name, label string, subs ...*Subfeature) *Feature {
	if name == "" {
		name = label
	}
	return &Feature{Name: name, Type: typ, Label: label, Subfeatures: subs}
}

// AddChip appends a chip and numbers its subfeatures in order.
func (b *Backend) AddChip(name string, features ...*Feature) *Chip {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, f := range features {
		for _, s := range f.Subfeatures {
			s.Number = n
			n++
		}
	}
	c := &Chip{Name: name, Features: features}
	b.chips = append(b.chips, c)
	return c
}

// SetValue changes what the next read of s returns and clears its error.
func (b *Backend) SetValue(s *Subfeature, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.Value, s.Err = v, nil
}

// SetError makes reads of s fail with err.
func (b *Backend) SetError(s *Subfeature, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.Err = err
}

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Inits++
	if b.InitErr != nil {
		return b.InitErr
	}
	b.ready = true
	return nil
}

func (b *Backend) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Cleanups++
	b.ready = false
}

func (b *Backend) DetectedChips() iter.Seq[backend.Chip] {
	b.mu.Lock()
	n := len(b.chips)
	if !b.ready {
		n = 0
	}
	b.mu.Unlock()
	return func(yield func(backend.Chip) bool) {
		for i := 0; i < n; i++ {
			if !yield(backend.Chip(i)) {
				return
			}
		}
	}
}

func (b *Backend) ChipName(chip backend.Chip) (string, error) {
	c, err := b.chip(chip)
	if err != nil {
		return "", err
	}
	if c.NameErr != nil {
		return "", c.NameErr
	}
	return c.Name, nil
}

func (b *Backend) Features(chip backend.Chip) iter.Seq[backend.Feature] {
	c, err := b.chip(chip)
	return func(yield func(backend.Feature) bool) {
		if err != nil {
			return
		}
		for i, f := range c.Features {
			if !yield(backend.Feature{Name: f.Name, Number: i, Type: f.Type}) {
				return
			}
		}
	}
}

func (b *Backend) Subfeature(chip backend.Chip, feature backend.Feature, typ backend.SubfeatureType) (backend.Subfeature, bool) {
	f, err := b.feature(chip, feature)
	if err != nil {
		return backend.Subfeature{}, false
	}
	for _, s := range f.Subfeatures {
		if s.Type == typ {
			return backend.Subfeature{Name: f.Name, Number: s.Number, Type: s.Type}, true
		}
	}
	return backend.Subfeature{}, false
}

func (b *Backend) Label(chip backend.Chip, feature backend.Feature) (string, error) {
	f, err := b.feature(chip, feature)
	if err != nil {
		return "", err
	}
	if f.LabelErr != nil {
		return "", f.LabelErr
	}
	return f.Label, nil
}

func (b *Backend) Value(chip backend.Chip, number int) (float64, error) {
	c, err := b.chip(chip)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range c.Features {
		for _, s := range f.Subfeatures {
			if s.Number == number {
				return s.Value, s.Err
			}
		}
	}
	return 0, &backend.Error{Code: backend.ErrNoEntry, Op: "read"}
}

func (b *Backend) chip(chip backend.Chip) (*Chip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || chip < 0 || int(chip) >= len(b.chips) {
		return nil, &backend.Error{Code: backend.ErrNoEntry, Op: "lookup chip"}
	}
	return b.chips[chip], nil
}

func (b *Backend) feature(chip backend.Chip, feature backend.Feature) (*Feature, error) {
	c, err := b.chip(chip)
	if err != nil {
		return nil, err
	}
	if feature.Number < 0 || feature.Number >= len(c.Features) {
		return nil, &backend.Error{Code: backend.ErrNoEntry, Op: "lookup feature"}
	}
	return c.Features[feature.Number], nil
}

var _ backend.Backend = (*Backend)(nil)
