package hwmon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/luki/hwsensors/internal/backend"
)

// Registry maps sensor identifiers to the chip they were read from.
// Entries are added during enumeration and only ever removed all at once.
type Registry struct {
	chips map[string]backend.Chip
}

func newRegistry() *Registry {
	return &Registry{chips: make(map[string]backend.Chip)}
}

// Insert registers id. Identifiers are unique per enumeration, so a
// duplicate means the enumerator is broken and Insert panics.
func (r *Registry) Insert(id string, chip backend.Chip) {
	if prev, ok := r.chips[id]; ok {
		panic(fmt.Sprintf("hwmon: sensor id %q already registered for chip %d", id, prev))
	}
	r.chips[id] = chip
}

// Lookup returns the chip id was registered with.
func (r *Registry) Lookup(id string) (backend.Chip, bool) {
	chip, ok := r.chips[id]
	return chip, ok
}

func (r *Registry) Len() int { return len(r.chips) }

// Clear removes every entry.
func (r *Registry) Clear() {
	clear(r.chips)
}

// MakeID builds the identifier of the input subfeature number on chip.
func MakeID(chipName string, number int) string {
	return chipName + "/" + strconv.Itoa(number)
}

// ParseIndex returns the subfeature number encoded in id.
func ParseIndex(id string) (int, error) {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return 0, errors.Errorf("sensor id %q has no subfeature suffix", id)
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0, errors.Wrapf(err, "sensor id %q", id)
	}
	return n, nil
}
