// Package hwmon publishes the voltage, fan and temperature channels of a
// hardware sensor backend as logical sensors, and resolves each sensor
// back to its backend channel whenever the sensor asks for a fresh value.
//
// A Session owns the backend connection and the identifier registry.
// A Plugin runs the enumeration (Activate), answers update requests
// (UpdateValue) and withdraws its sensors (Deactivate). All calls are
// synchronous and must not overlap.
package hwmon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/luki/hwsensors/internal/backend"
)

// State is the lifecycle state of a Session.
type State int

const (
	Uninitialized State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is one connection to a backend. The registry exists only while
// the session is Ready.
type Session struct {
	backend  backend.Backend
	logger   *zap.SugaredLogger
	state    State
	err      error
	registry *Registry
}

// NewSession returns an uninitialized session over b.
func NewSession(b backend.Backend, logger *zap.SugaredLogger) *Session {
	return &Session{backend: b, logger: logger}
}

// Initialize brings the backend up. On failure the session stays Failed
// for good: the error is logged once and returned again by later calls.
func (s *Session) Initialize() error {
	if s.state != Uninitialized {
		return s.err
	}
	if err := s.backend.Init(); err != nil {
		s.state, s.err = Failed, err
		s.logger.Errorw("unable to initialize sensor backend", "error", err)
		return err
	}
	s.state = Ready
	s.registry = newRegistry()
	return nil
}

// Shutdown drops the registry and releases the backend. It does nothing
// unless the session is Ready.
func (s *Session) Shutdown() {
	if s.state != Ready {
		return
	}
	s.registry = nil
	s.backend.Cleanup()
	s.state = Uninitialized
}

func (s *Session) State() State { return s.state }

// Backend returns the backend the session was created over.
func (s *Session) Backend() backend.Backend { return s.backend }

// Registry returns the identifier registry, or nil unless Ready.
func (s *Session) Registry() *Registry { return s.registry }
