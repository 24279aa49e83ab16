// sim/sim.go
package sim

import (
	"errors"
	"time"
)

// Lever names the four reactor control levers.
type Lever string

const (
	LeverA Lever = "A"
	LeverB Lever = "B"
	LeverC Lever = "C"
	LeverD Lever = "D"
)

// Phase is the lifecycle of one game. Transitions only move forward:
// setup -> running -> completed|failed, the last two being terminal.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Status is the coarse reactor health indicator.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

const baseReading = 50

// Reading thresholds for lights, warnings and phase transitions.
const (
	highThreshold     = 80
	lowThreshold      = 30
	criticalThreshold = 90
	meltdownThreshold = 95
	pressureHigh      = 70
)

// User-facing warning messages, re-derived in this fixed order on every change.
const (
	WarnTemperatureHigh = "Warnung: Temperatur zu hoch!"
	WarnPressureHigh    = "Warnung: Druck zu hoch!"
	WarnTemperatureLow  = "Warnung: Temperatur zu niedrig!"
	WarnPressureLow     = "Warnung: Druck zu niedrig!"
)

var ErrUnknownLever = errors.New("unknown lever")

type Levers struct {
	A bool `json:"A"`
	B bool `json:"B"`
	C bool `json:"C"`
	D bool `json:"D"`
}

type StatusLights struct {
	Red    bool `json:"red"`
	Yellow bool `json:"yellow"`
	Blue   bool `json:"blue"`
	Green  bool `json:"green"`
}

// State is the authoritative simulation record of one room. Temperature,
// pressure, lights, warnings and status are all recomputed from the lever
// settings on every mutation; nothing derived is ever patched incrementally.
type State struct {
	Temperature   int          `json:"temperature"`
	Pressure      int          `json:"pressure"`
	Levers        Levers       `json:"levers"`
	StatusLights  StatusLights `json:"statusLights"`
	ErrorMessages []string     `json:"errorMessages"`
	ReactorStatus Status       `json:"reactorStatus"`
	Phase         Phase        `json:"phase"`
	StartTime     *time.Time   `json:"startTime,omitempty"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
}

// NewState returns a fresh simulation in the setup phase with both readings
// at their resting value.
func NewState() *State {
	s := &State{Phase: PhaseSetup}
	s.recompute()
	return s
}

// Start moves the simulation from setup into running and records the start
// time. Calling it again is a no-op.
func (s *State) Start(now time.Time) {
	if s.Phase != PhaseSetup {
		return
	}
	s.Phase = PhaseRunning
	t := now
	s.StartTime = &t
}

// ToggleLever flips one lever and re-derives the whole state. Terminal phases
// keep updating readings and lights, but the phase and end time stay frozen.
func (s *State) ToggleLever(lever Lever) error {
	switch lever {
	case LeverA:
		s.Levers.A = !s.Levers.A
	case LeverB:
		s.Levers.B = !s.Levers.B
	case LeverC:
		s.Levers.C = !s.Levers.C
	case LeverD:
		s.Levers.D = !s.Levers.D
	default:
		return ErrUnknownLever
	}

	wasGreen := s.StatusLights.Green
	s.recompute()
	s.checkPhase(wasGreen, time.Now())
	return nil
}

// recompute rebuilds readings and every derived field from the lever settings.
func (s *State) recompute() {
	s.Temperature = baseReading
	if s.Levers.A {
		s.Temperature += 2
	}
	if s.Levers.B {
		s.Temperature -= 1
	}

	s.Pressure = baseReading
	if s.Levers.C {
		s.Pressure += 2
	}
	if s.Levers.D {
		s.Pressure -= 1
	}

	s.StatusLights = DeriveLights(s.Temperature, s.Pressure)
	s.ReactorStatus = DeriveStatus(s.Temperature, s.Pressure)
	s.ErrorMessages = DeriveWarnings(s.Temperature, s.Pressure)
}

// checkPhase applies the forward-only phase transitions. Completion fires only
// when the green light comes back on after having been off; a simulation that
// was stable all along stays running. Failure fires on a meltdown reading.
func (s *State) checkPhase(wasGreen bool, now time.Time) {
	if s.Phase != PhaseRunning {
		return
	}

	if s.Temperature > meltdownThreshold || s.Pressure > meltdownThreshold {
		s.Phase = PhaseFailed
		t := now
		s.EndTime = &t
		return
	}

	stable := s.Temperature >= lowThreshold && s.Temperature <= highThreshold &&
		s.Pressure >= lowThreshold && s.Pressure <= pressureHigh
	if stable && s.StatusLights.Green && !wasGreen {
		s.Phase = PhaseCompleted
		t := now
		s.EndTime = &t
	}
}

// ExecuteFinalAction is the Operator's end-game hook. The current design
// accepts any action without touching the state; concrete win/lose semantics
// are reserved for a later iteration.
func (s *State) ExecuteFinalAction(action string) error {
	return nil
}

// Clone returns a deep copy so callers can hand the state out without
// exposing the authoritative record to mutation.
func (s *State) Clone() *State {
	c := *s
	if s.ErrorMessages != nil {
		c.ErrorMessages = append([]string(nil), s.ErrorMessages...)
	}
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}

// DeriveLights computes the indicator lights from the raw readings.
func DeriveLights(temperature, pressure int) StatusLights {
	return StatusLights{
		Red:    temperature > highThreshold,
		Yellow: pressure > pressureHigh,
		Blue:   temperature < lowThreshold,
		Green: temperature >= lowThreshold && temperature <= highThreshold &&
			pressure >= lowThreshold && pressure <= pressureHigh,
	}
}

// DeriveStatus computes the coarse reactor status from the raw readings.
func DeriveStatus(temperature, pressure int) Status {
	switch {
	case temperature > criticalThreshold || pressure > criticalThreshold:
		return StatusCritical
	case temperature > highThreshold || pressure > highThreshold:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// DeriveWarnings rebuilds the warning list from scratch in fixed check order.
func DeriveWarnings(temperature, pressure int) []string {
	warnings := []string{}
	if temperature > highThreshold {
		warnings = append(warnings, WarnTemperatureHigh)
	}
	if pressure > highThreshold {
		warnings = append(warnings, WarnPressureHigh)
	}
	if temperature < lowThreshold {
		warnings = append(warnings, WarnTemperatureLow)
	}
	if pressure < lowThreshold {
		warnings = append(warnings, WarnPressureLow)
	}
	return warnings
}
