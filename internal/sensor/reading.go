// Package sensor provides the logical sensor objects hardware backends
// publish: a fixed description (id, label, kind, bounds) plus the latest
// value or read error, and the Updater hook through which a backend
// refreshes them on request.
package sensor

import "strings"

// Reading represents a snapshot of one sensor.
type Reading struct {
	ID       string // e.g. "coretemp-isa-0000/0"
	Source   string // e.g. "libsensors"
	Chip     string // e.g. "coretemp-isa-0000"
	Label    string // e.g. "Core 0"
	Kind     Kind
	Unit     Unit
	Value    float64 // last good value
	HasValue bool
	Low      float64 // low bound (0 if not available)
	High     float64 // high bound (0 if not available)
	HasLow   bool
	HasHigh  bool
	Err      string // last read error, "" after a good read
}

// StableKey identifies the sensor by chip and label, which survives
// restarts where identifiers may not.
func (r Reading) StableKey() string {
	return r.Chip + "/" + r.Label
}

// ChipOf returns the chip-name part of a sensor identifier.
func ChipOf(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[:i]
	}
	return id
}
