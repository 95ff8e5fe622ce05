package hwmon

import (
	"fmt"

	"github.com/luki/hwsensors/internal/backend"
	"github.com/luki/hwsensors/internal/sensor"
)

// ReadError is a failed live read of one sensor.
type ReadError struct {
	ID  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("error getting sensor value for sensor %s: %s", e.ID, backend.Strerror(e.Err))
}

func (e *ReadError) Unwrap() error { return e.Err }

// UpdateValue reads the sensor's channel and reports the value, or the
// failure, on the sensor. It implements sensor.Updater.
func (p *Plugin) UpdateValue(s *sensor.Sensor) {
	v, err := p.Read(s.ID())
	if err != nil {
		s.EmitError(err)
		return
	}
	s.SetValue(v)
}

// Read performs a live read of the channel behind id. A read failure is
// returned as a *ReadError. An id this plugin never handed out, or one
// without a numeric suffix, is a programming error and panics.
func (p *Plugin) Read(id string) (float64, error) {
	reg := p.session.Registry()
	if reg == nil {
		panic(fmt.Sprintf("hwmon: read of sensor %q on a session that is %s", id, p.session.State()))
	}
	chip, ok := reg.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("hwmon: sensor %q is not registered", id))
	}
	n, err := ParseIndex(id)
	if err != nil {
		panic(fmt.Sprintf("hwmon: malformed sensor id: %v", err))
	}

	v, err := p.session.Backend().Value(chip, n)
	if err != nil {
		return 0, &ReadError{ID: id, Err: err}
	}
	return v, nil
}

var _ sensor.Updater = (*Plugin)(nil)
