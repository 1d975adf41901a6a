// Package fall - This file contains the fall detection state machine.
package fall

import "time"

// Phase is the lifecycle state of a fall hypothesis.
type Phase string

const (
	PhaseIdle      Phase = "idle"      // Nothing suspicious
	PhaseCandidate Phase = "candidate" // Fall suspected, waiting for the subject to settle
	PhaseConfirmed Phase = "confirmed" // Fall declared, waiting for recovery
)

// Label returns the on-screen text for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseCandidate:
		return "Warning"
	case PhaseConfirmed:
		return "Fall"
	default:
		return ""
	}
}

// Thresholds configures the state machine.
type Thresholds struct {
	// Density is the motion density a candidate must exceed.
	Density float64 `json:"density" yaml:"density"`
	// AngleStdDev is the orientation spread, in degrees, a candidate must exceed.
	AngleStdDev float64 `json:"angle_stddev" yaml:"angle_stddev"`
	// AxisRatio is the sd(A)/sd(B) ratio a candidate must exceed.
	AxisRatio float64 `json:"axis_ratio" yaml:"axis_ratio"`
	// Stillness is the x and y spread below which a candidate is confirmed.
	Stillness float64 `json:"stillness" yaml:"stillness"`
	// Recovery is the x and y spread above which a confirmed fall is cleared.
	Recovery float64 `json:"recovery" yaml:"recovery"`
	// CandidateTimeout abandons a candidate that never settles. Zero disables it.
	CandidateTimeout time.Duration `json:"candidate_timeout" yaml:"candidate_timeout"`
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Density:          80,
		AngleStdDev:      20,
		AxisRatio:        0.9,
		Stillness:        2,
		Recovery:         2,
		CandidateTimeout: 2 * time.Second,
	}
}

// Observation is everything the machine looks at for one frame.
type Observation struct {
	Density float64
	Stats   WindowStats
}

// Transition records one phase change.
type Transition struct {
	From Phase
	To   Phase
	At   time.Time
}

// Machine advances Idle -> Candidate -> Confirmed -> Idle once per frame.
//
// It has no terminal state and holds no counters: stepping twice with the same
// observation and time yields the same phase.
type Machine struct {
	Thresholds Thresholds

	phase   Phase
	started time.Time
}

// NewMachine returns a machine in PhaseIdle.
func NewMachine(t Thresholds) *Machine {
	return &Machine{Thresholds: t, phase: PhaseIdle}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// StartedAt returns when the current candidate was opened. It is the zero time in
// PhaseIdle.
func (m *Machine) StartedAt() time.Time {
	return m.started
}

// Step evaluates the transition rules in order and returns the transitions taken,
// oldest first. A single frame can open a candidate and confirm it.
//
// Arguments:
//   - obs: The window statistics and motion density for this frame.
//   - now: The wall-clock evaluation time.
//
// Returns:
//   - []Transition: The phase changes made this frame, empty when none.
func (m *Machine) Step(obs Observation, now time.Time) []Transition {
	var out []Transition
	move := func(to Phase) {
		out = append(out, Transition{From: m.phase, To: to, At: now})
		m.phase = to
	}

	t := m.Thresholds

	if m.phase == PhaseIdle && m.suspicious(obs) {
		m.started = now
		move(PhaseCandidate)
	}

	if m.phase == PhaseCandidate {
		switch {
		case obs.Stats.X < t.Stillness && obs.Stats.Y < t.Stillness:
			move(PhaseConfirmed)
		case t.CandidateTimeout > 0 && now.Sub(m.started) > t.CandidateTimeout:
			move(PhaseIdle)
			m.started = time.Time{}
		}
	}

	if m.phase == PhaseConfirmed && obs.Stats.X > t.Recovery && obs.Stats.Y > t.Recovery {
		move(PhaseIdle)
		m.started = time.Time{}
	}

	return out
}

// suspicious reports whether all candidate thresholds hold on this frame.
func (m *Machine) suspicious(obs Observation) bool {
	t := m.Thresholds
	return obs.Density > t.Density &&
		obs.Stats.Angle > t.AngleStdDev &&
		axisRatio(obs.Stats.A, obs.Stats.B) > t.AxisRatio
}
