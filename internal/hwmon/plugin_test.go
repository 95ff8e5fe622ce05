package hwmon

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luki/hwsensors/internal/backend"
	"github.com/luki/hwsensors/internal/backend/fake"
	"github.com/luki/hwsensors/internal/sensor"
)

type recordingSink struct {
	sensors []*sensor.Sensor
	removes int
}

func (r *recordingSink) AddSensor(s *sensor.Sensor) {
	r.sensors = append(r.sensors, s)
}

func (r *recordingSink) RemoveAllSensors(source string) {
	r.removes++
	kept := r.sensors[:0]
	for _, s := range r.sensors {
		if s.Source() != source {
			kept = append(kept, s)
		}
	}
	r.sensors = kept
}

func (r *recordingSink) byLabel(t *testing.T, label string) *sensor.Sensor {
	t.Helper()
	for _, s := range r.sensors {
		if s.Label() == label {
			return s
		}
	}
	t.Fatalf("no sensor labelled %q", label)
	return nil
}

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func warnings(logs *observer.ObservedLogs) int {
	return logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

func startPlugin(t *testing.T, b backend.Backend) (*Plugin, *Session, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := newObservedLogger()
	session := NewSession(b, logger)
	if err := session.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(session.Shutdown)
	return NewPlugin(session, DefaultSource, logger), session, logs
}

func TestCPUTemperatureScenario(t *testing.T) {
	b := fake.New()
	input := fake.Sub(backend.TempInput, 42.0)
	b.AddChip("chip-A", fake.NewFeature(backend.FeatureTemp, "temp1", "CPU",
		input,
		fake.Sub(backend.TempMin, 10.0),
		fake.Sub(backend.TempCrit, 85.0),
	))

	p, session, _ := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 1 {
		t.Fatalf("Activate: got %d sensors, want 1", n)
	}

	s := sink.sensors[0]
	wantID := MakeID("chip-A", input.Number)
	got := s.Reading()
	want := sensor.Reading{
		ID:       wantID,
		Source:   DefaultSource,
		Chip:     "chip-A",
		Label:    "CPU",
		Kind:     sensor.KindTemperature,
		Unit:     sensor.UnitCelsius,
		Value:    42,
		HasValue: true,
		Low:      10,
		HasLow:   true,
		High:     85,
		HasHigh:  true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sensor (-want +got):\n%s", diff)
	}

	// A later read succeeds.
	b.SetValue(input, 47.5)
	s.Update()
	if v, _ := s.Value(); v != 47.5 {
		t.Errorf("value after update: got %v, want 47.5", v)
	}
	if s.Err() != nil {
		t.Errorf("unexpected error: %v", s.Err())
	}

	// A failing read reports on the sensor and keeps the value.
	b.SetError(input, &backend.Error{Code: backend.ErrIO, Op: "read"})
	s.Update()
	err := s.Err()
	if err == nil {
		t.Fatal("expected a read error")
	}
	if !strings.Contains(err.Error(), wantID) || !strings.Contains(err.Error(), "I/O error") {
		t.Errorf("error text: got %q, want id and I/O error", err.Error())
	}
	var readErr *ReadError
	if !errors.As(err, &readErr) || readErr.ID != wantID {
		t.Errorf("error type: got %T", err)
	}
	if v, _ := s.Value(); v != 47.5 {
		t.Errorf("value after failed read: got %v, want 47.5", v)
	}
	if _, ok := session.Registry().Lookup(wantID); !ok {
		t.Error("sensor should stay registered after a failed read")
	}

	p.Deactivate(sink)
	if len(sink.sensors) != 0 {
		t.Errorf("sensors after deactivate: got %d, want 0", len(sink.sensors))
	}
	if session.Registry().Len() != 0 {
		t.Errorf("registry after deactivate: got %d entries", session.Registry().Len())
	}

	p.Deactivate(sink)
	if len(sink.sensors) != 0 {
		t.Errorf("sensors after second deactivate: got %d, want 0", len(sink.sensors))
	}
}

func TestInitFailure(t *testing.T) {
	b := fake.New()
	b.InitErr = errors.New("no sensors configured")
	b.AddChip("chip-A", fake.NewFeature(backend.FeatureTemp, "temp1", "CPU",
		fake.Sub(backend.TempInput, 40)))

	logger, logs := newObservedLogger()
	session := NewSession(b, logger)
	if err := session.Initialize(); err == nil {
		t.Fatal("expected Initialize to fail")
	}
	if session.State() != Failed {
		t.Errorf("state: got %v, want failed", session.State())
	}
	if session.Registry() != nil {
		t.Error("failed session should have no registry")
	}

	sink := &recordingSink{}
	if n := NewPlugin(session, "", logger).Activate(sink); n != 0 {
		t.Errorf("Activate: got %d sensors, want 0", n)
	}
	if len(sink.sensors) != 0 {
		t.Errorf("sink: got %d sensors, want 0", len(sink.sensors))
	}
	if got := warnings(logs); got != 1 {
		t.Errorf("warnings: got %d, want 1", got)
	}

	if err := session.Initialize(); err == nil {
		t.Error("second Initialize should return the recorded error")
	}
	if b.Inits != 1 {
		t.Errorf("backend Init calls: got %d, want 1", b.Inits)
	}
	session.Shutdown()
	if b.Cleanups != 0 {
		t.Errorf("backend Cleanup calls: got %d, want 0", b.Cleanups)
	}
}

func TestMissingInputSkipsOnlyThatFeature(t *testing.T) {
	b := fake.New()
	b.AddChip("chip-A",
		fake.NewFeature(backend.FeatureTemp, "temp1", "no input", fake.Sub(backend.TempMax, 80)),
		fake.NewFeature(backend.FeatureTemp, "temp2", "Core 0", fake.Sub(backend.TempInput, 45)),
	)

	p, _, logs := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 1 {
		t.Fatalf("Activate: got %d sensors, want 1", n)
	}
	if sink.sensors[0].Label() != "Core 0" {
		t.Errorf("sensor label: got %q, want Core 0", sink.sensors[0].Label())
	}
	if got := warnings(logs); got != 1 {
		t.Errorf("warnings: got %d, want 1", got)
	}
}

func TestBounds(t *testing.T) {
	b := fake.New()
	badMin := fake.Sub(backend.TempMin, 5)
	badMin.Err = &backend.Error{Code: backend.ErrAccessR}
	b.AddChip("chip-A",
		fake.NewFeature(backend.FeatureFan, "fan1", "CPU fan",
			fake.Sub(backend.FanInput, 1200),
			fake.Sub(backend.FanMin, 300),
			fake.Sub(backend.FanMax, 5000)),
		fake.NewFeature(backend.FeatureTemp, "temp1", "max and crit",
			fake.Sub(backend.TempInput, 50),
			fake.Sub(backend.TempMax, 80),
			fake.Sub(backend.TempCrit, 100)),
		fake.NewFeature(backend.FeatureTemp, "temp2", "unreadable min",
			fake.Sub(backend.TempInput, 50),
			badMin),
		fake.NewFeature(backend.FeatureIn, "in0", "Vcore",
			fake.Sub(backend.InInput, 1.2),
			fake.Sub(backend.InMin, 0.8),
			fake.Sub(backend.InMax, 1.5)),
		fake.NewFeature(backend.FeatureTemp, "temp3", "bare",
			fake.Sub(backend.TempInput, 30)),
	)

	p, _, logs := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 5 {
		t.Fatalf("Activate: got %d sensors, want 5", n)
	}
	if got := warnings(logs); got != 0 {
		t.Errorf("warnings: got %d, want 0", got)
	}

	tests := []struct {
		label string
		low   sensor.Bound
		high  sensor.Bound
		kind  sensor.Kind
		unit  sensor.Unit
	}{
		{"CPU fan", sensor.BoundAt(300), sensor.NoBound, sensor.KindFan, sensor.UnitUnspecified},
		{"max and crit", sensor.NoBound, sensor.BoundAt(80), sensor.KindTemperature, sensor.UnitCelsius},
		{"unreadable min", sensor.NoBound, sensor.NoBound, sensor.KindTemperature, sensor.UnitCelsius},
		{"Vcore", sensor.BoundAt(0.8), sensor.BoundAt(1.5), sensor.KindVoltage, sensor.UnitUnspecified},
		{"bare", sensor.NoBound, sensor.NoBound, sensor.KindTemperature, sensor.UnitCelsius},
	}
	for _, tt := range tests {
		s := sink.byLabel(t, tt.label)
		if s.Low() != tt.low || s.High() != tt.high {
			t.Errorf("%s bounds: got low=%+v high=%+v, want low=%+v high=%+v",
				tt.label, s.Low(), s.High(), tt.low, tt.high)
		}
		if s.Kind() != tt.kind || s.Unit() != tt.unit {
			t.Errorf("%s: got kind=%v unit=%v, want kind=%v unit=%v",
				tt.label, s.Kind(), s.Unit(), tt.kind, tt.unit)
		}
	}
}

func TestRecoverableSkips(t *testing.T) {
	b := fake.New()

	failingInput := fake.Sub(backend.TempInput, 0)
	failingInput.Err = &backend.Error{Code: backend.ErrIO}
	unlabelled := fake.NewFeature(backend.FeatureTemp, "temp3", "", fake.Sub(backend.TempInput, 30))
	unlabelled.LabelErr = errors.New("label unavailable")

	b.AddChip("chip-A",
		fake.NewFeature(backend.FeaturePower, "power1", "PPT", fake.Sub(backend.PowerInput, 15)),
		fake.NewFeature(backend.FeatureTemp, "temp1", "unreadable", failingInput),
		unlabelled,
		fake.NewFeature(backend.FeatureTemp, "temp4", "good", fake.Sub(backend.TempInput, 40)),
	)
	badName := b.AddChip("chip-B", fake.NewFeature(backend.FeatureTemp, "temp1", "lost",
		fake.Sub(backend.TempInput, 40)))
	badName.NameErr = &backend.Error{Code: backend.ErrBusName}
	b.AddChip(strings.Repeat("x", MaxChipNameLen+1), fake.NewFeature(backend.FeatureTemp, "temp1", "too long",
		fake.Sub(backend.TempInput, 40)))
	b.AddChip("chip-D", fake.NewFeature(backend.FeatureFan, "fan1", "last fan",
		fake.Sub(backend.FanInput, 900)))

	p, _, logs := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 2 {
		t.Fatalf("Activate: got %d sensors, want 2", n)
	}

	var labels []string
	for _, s := range sink.sensors {
		labels = append(labels, s.Label())
	}
	if diff := cmp.Diff([]string{"good", "last fan"}, labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if got := warnings(logs); got != 5 {
		t.Errorf("warnings: got %d, want 5", got)
	}
}

func TestIdentifiersUniqueAndResolvable(t *testing.T) {
	b := fake.New()
	for _, chip := range []string{"coretemp-isa-0000", "nvme-pci-0300", "nct6775-isa-0290"} {
		b.AddChip(chip,
			fake.NewFeature(backend.FeatureTemp, "temp1", "t1", fake.Sub(backend.TempInput, 40), fake.Sub(backend.TempCrit, 90)),
			fake.NewFeature(backend.FeatureTemp, "temp2", "t2", fake.Sub(backend.TempMax, 80), fake.Sub(backend.TempInput, 41)),
			fake.NewFeature(backend.FeatureIn, "in0", "v0", fake.Sub(backend.InInput, 1.1)),
			fake.NewFeature(backend.FeatureFan, "fan1", "f1", fake.Sub(backend.FanInput, 800)),
		)
	}

	p, session, _ := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 12 {
		t.Fatalf("Activate: got %d sensors, want 12", n)
	}

	seen := make(map[string]bool)
	for _, s := range sink.sensors {
		if seen[s.ID()] {
			t.Errorf("duplicate id %q", s.ID())
		}
		seen[s.ID()] = true

		chip, ok := session.Registry().Lookup(s.ID())
		if !ok {
			t.Errorf("id %q not registered", s.ID())
			continue
		}
		name, _ := b.ChipName(chip)
		if name != sensor.ChipOf(s.ID()) {
			t.Errorf("id %q resolves to chip %q", s.ID(), name)
		}
		if _, err := ParseIndex(s.ID()); err != nil {
			t.Errorf("ParseIndex(%q): %v", s.ID(), err)
		}
		if _, err := p.Read(s.ID()); err != nil {
			t.Errorf("Read(%q): %v", s.ID(), err)
		}
	}
	if session.Registry().Len() != 12 {
		t.Errorf("registry: got %d entries, want 12", session.Registry().Len())
	}
}

func TestReactivate(t *testing.T) {
	b := fake.New()
	b.AddChip("chip-A", fake.NewFeature(backend.FeatureTemp, "temp1", "CPU", fake.Sub(backend.TempInput, 40)))

	p, _, _ := startPlugin(t, b)
	sink := &recordingSink{}
	p.Activate(sink)
	first := sink.sensors[0].ID()
	p.Deactivate(sink)

	if n := p.Activate(sink); n != 1 {
		t.Fatalf("second Activate: got %d sensors, want 1", n)
	}
	if sink.sensors[0].ID() != first {
		t.Errorf("id after reactivation: got %q, want %q", sink.sensors[0].ID(), first)
	}
	if sink.removes != 1 {
		t.Errorf("removes: got %d, want 1", sink.removes)
	}
}

func TestActivateTwiceReplacesSensors(t *testing.T) {
	b := fake.New()
	b.AddChip("chip-A", fake.NewFeature(backend.FeatureTemp, "temp1", "CPU", fake.Sub(backend.TempInput, 40)))

	p, session, _ := startPlugin(t, b)
	sink := &recordingSink{}
	if n := p.Activate(sink); n != 1 {
		t.Fatalf("first Activate: got %d sensors, want 1", n)
	}
	first := sink.sensors[0]

	if n := p.Activate(sink); n != 1 {
		t.Fatalf("second Activate: got %d sensors, want 1", n)
	}
	if len(sink.sensors) != 1 {
		t.Fatalf("sink: got %d sensors, want 1", len(sink.sensors))
	}
	if sink.sensors[0] == first {
		t.Error("second activation should publish a fresh sensor")
	}
	if sink.removes != 1 {
		t.Errorf("removes: got %d, want 1", sink.removes)
	}
	if session.Registry().Len() != 1 {
		t.Errorf("registry: got %d entries, want 1", session.Registry().Len())
	}
}

func TestReadPanicsOnInternalErrors(t *testing.T) {
	b := fake.New()
	b.AddChip("chip-A", fake.NewFeature(backend.FeatureTemp, "temp1", "CPU", fake.Sub(backend.TempInput, 40)))
	p, session, _ := startPlugin(t, b)
	p.Activate(&recordingSink{})
	session.Registry().Insert("chip-A/x", 0)

	tests := []struct {
		name string
		id   string
	}{
		{"unregistered", "chip-Z/0"},
		{"malformed suffix", "chip-A/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Read(%q) did not panic", tt.id)
				}
			}()
			p.Read(tt.id)
		})
	}
}
