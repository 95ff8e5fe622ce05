// Package indicator collects the sensors published by hardware plugins
// and polls them for fresh values.
package indicator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/luki/hwsensors/internal/hwmon"
	"github.com/luki/hwsensors/internal/sensor"
)

// Plugin publishes sensors into an Indicator.
type Plugin interface {
	Activate(sink hwmon.Sink) int
	Deactivate(sink hwmon.Sink)
}

// Indicator owns the set of published sensors. It implements hwmon.Sink.
type Indicator struct {
	logger *zap.SugaredLogger

	// serial orders activation, deactivation and update rounds; plugin
	// calls must not overlap.
	serial sync.Mutex

	mu      sync.Mutex
	sensors []*sensor.Sensor
}

// New returns an empty indicator.
func New(logger *zap.SugaredLogger) *Indicator {
	return &Indicator{logger: logger}
}

// AddSensor takes ownership of s. Read errors reported on s are logged.
func (ind *Indicator) AddSensor(s *sensor.Sensor) {
	s.OnError(func(s *sensor.Sensor, err error) {
		ind.logger.Warnw("sensor read failed", "sensor", s.ID(), "label", s.Label(), "error", err)
	})
	ind.mu.Lock()
	ind.sensors = append(ind.sensors, s)
	ind.mu.Unlock()
}

// RemoveAllSensors detaches and drops every sensor tagged with source.
func (ind *Indicator) RemoveAllSensors(source string) {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	kept := ind.sensors[:0]
	for _, s := range ind.sensors {
		if s.Source() == source {
			s.Detach()
			continue
		}
		kept = append(kept, s)
	}
	clear(ind.sensors[len(kept):])
	ind.sensors = kept
}

// Sensors returns the current sensors in publication order.
func (ind *Indicator) Sensors() []*sensor.Sensor {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return append([]*sensor.Sensor(nil), ind.sensors...)
}

// Readings snapshots every sensor, ordered by chip then label.
func (ind *Indicator) Readings() []sensor.Reading {
	sensors := ind.Sensors()
	out := make([]sensor.Reading, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.Reading())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chip != out[j].Chip {
			return out[i].Chip < out[j].Chip
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Activate runs p's enumeration into the indicator.
func (ind *Indicator) Activate(p Plugin) int {
	ind.serial.Lock()
	defer ind.serial.Unlock()
	return p.Activate(ind)
}

// Deactivate withdraws p's sensors.
func (ind *Indicator) Deactivate(p Plugin) {
	ind.serial.Lock()
	defer ind.serial.Unlock()
	p.Deactivate(ind)
}

// Rescan withdraws p's sensors and enumerates again.
func (ind *Indicator) Rescan(p Plugin) int {
	ind.serial.Lock()
	defer ind.serial.Unlock()
	p.Deactivate(ind)
	return p.Activate(ind)
}

// UpdateAll asks every sensor for a fresh value.
func (ind *Indicator) UpdateAll() {
	ind.serial.Lock()
	defer ind.serial.Unlock()
	for _, s := range ind.Sensors() {
		s.Update()
	}
}

// Poll updates every sensor once per interval and hands the readings to
// report, until ctx is done. The first round runs immediately.
func (ind *Indicator) Poll(ctx context.Context, clk clock.Clock, interval time.Duration, report func([]sensor.Reading)) error {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		ind.UpdateAll()
		report(ind.Readings())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
