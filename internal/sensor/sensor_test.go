package sensor

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingUpdater struct {
	calls int
	next  float64
}

func (u *countingUpdater) UpdateValue(s *Sensor) {
	u.calls++
	s.SetValue(u.next)
}

func TestSensorValueAndError(t *testing.T) {
	s := NewTemperature("libsensors", "chip-A/0", "CPU", BoundAt(10), BoundAt(85))

	if _, ok := s.Value(); ok {
		t.Error("new sensor should have no value")
	}

	s.SetValue(47.5)
	if v, ok := s.Value(); !ok || v != 47.5 {
		t.Errorf("Value: got %v (ok=%v), want 47.5", v, ok)
	}

	s.EmitError(errors.New("I/O error"))
	if v, _ := s.Value(); v != 47.5 {
		t.Errorf("Value after error: got %v, want 47.5", v)
	}
	if s.Err() == nil || s.Err().Error() != "I/O error" {
		t.Errorf("Err: got %v, want I/O error", s.Err())
	}

	s.SetValue(48)
	if s.Err() != nil {
		t.Errorf("Err after good read: got %v, want nil", s.Err())
	}
}

func TestSensorShapes(t *testing.T) {
	temp := NewTemperature("libsensors", "chip-A/0", "CPU", NoBound, BoundAt(85))
	if temp.Kind() != KindTemperature || temp.Unit() != UnitCelsius {
		t.Errorf("temperature: got kind=%v unit=%v", temp.Kind(), temp.Unit())
	}

	fan := New("libsensors", "chip-A/3", "fan1", KindFan, BoundAt(300), NoBound)
	if fan.Unit() != UnitUnspecified {
		t.Errorf("fan unit: got %v, want unspecified", fan.Unit())
	}
	if fan.High().Valid {
		t.Error("fan should have no high bound")
	}
}

func TestSensorUpdate(t *testing.T) {
	s := New("libsensors", "chip-A/1", "Vcore", KindVoltage, NoBound, NoBound)
	u := &countingUpdater{next: 1.2}
	s.OnUpdate(u)

	var values []float64
	var errs int
	s.OnError(func(*Sensor, error) { errs++ })

	s.Update()
	v, _ := s.Value()
	values = append(values, v)
	u.next = 1.25
	s.Update()
	v, _ = s.Value()
	values = append(values, v)
	s.EmitError(errors.New("boom"))

	if u.calls != 2 {
		t.Errorf("updater calls: got %d, want 2", u.calls)
	}
	if diff := cmp.Diff([]float64{1.2, 1.25}, values); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}
	if errs != 1 {
		t.Errorf("error notifications: got %d, want 1", errs)
	}

	s.Detach()
	s.Update()
	if u.calls != 2 {
		t.Errorf("updater calls after Detach: got %d, want 2", u.calls)
	}
}

func TestSensorReading(t *testing.T) {
	s := NewTemperature("libsensors", "coretemp-isa-0000/4", "Core 0", NoBound, BoundAt(101))
	s.SetValue(46)
	s.EmitError(errors.New("read failed"))

	want := Reading{
		ID:       "coretemp-isa-0000/4",
		Source:   "libsensors",
		Chip:     "coretemp-isa-0000",
		Label:    "Core 0",
		Kind:     KindTemperature,
		Unit:     UnitCelsius,
		Value:    46,
		HasValue: true,
		High:     101,
		HasHigh:  true,
		Err:      "read failed",
	}
	if diff := cmp.Diff(want, s.Reading()); diff != "" {
		t.Errorf("Reading (-want +got):\n%s", diff)
	}
	if got := s.Reading().StableKey(); got != "coretemp-isa-0000/Core 0" {
		t.Errorf("StableKey: got %q", got)
	}
}

func TestSensorConcurrentAccess(t *testing.T) {
	s := NewTemperature("libsensors", "chip-A/0", "CPU", NoBound, NoBound)
	var notified int
	var mu sync.Mutex
	s.OnError(func(*Sensor, error) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					s.SetValue(float64(i))
				} else {
					s.EmitError(errors.New("I/O error"))
				}
				_ = s.Reading()
			}
		}(i)
	}
	wg.Wait()

	if notified != 8*50 {
		t.Errorf("error notifications: got %d, want %d", notified, 8*50)
	}
	if _, ok := s.Value(); !ok {
		t.Error("sensor should hold a value")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindVoltage, KindFan, KindTemperature} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q): got %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("humidity"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestChipOf(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"coretemp-isa-0000/3", "coretemp-isa-0000"},
		{"w83795g-i2c-0-2f/12", "w83795g-i2c-0-2f"},
		{"bare", "bare"},
	}
	for _, tt := range tests {
		if got := ChipOf(tt.id); got != tt.want {
			t.Errorf("ChipOf(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		chip string
		want string
	}{
		{"coretemp-isa-0000", "CPU"},
		{"nvme-pci-0300", "NVMe SSD"},
		{"iwlwifi_1-virtual-0", "WiFi"},
		{"pch_cannonlake-virtual-0", "PCH (Chipset)"},
		{"amdgpu-pci-0600", "GPU (AMD)"},
		{"acpitz-acpi-0", "ACPI Thermal"},
		{"nct6775-isa-0290", "Motherboard"},
		{"drivetemp-scsi-0-0", "HDD/SSD"},
		{"jc42-i2c-0-18", "Memory"},
		{"some-unknown-chip", "Sensor"},
	}
	for _, tt := range tests {
		got := FriendlyName(tt.chip)
		if got != tt.want {
			t.Errorf("FriendlyName(%q) = %q, want %q", tt.chip, got, tt.want)
		}
	}
}
