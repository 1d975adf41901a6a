// Package fall - This file contains the Tracker, the single owner of all per-stream
// fall detection state.
package fall

import (
	"sync"
	"time"
)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	WindowSize       int        `json:"window_size" yaml:"window_size"`
	MinEllipsePoints int        `json:"min_ellipse_points" yaml:"min_ellipse_points"`
	Thresholds       Thresholds `json:"thresholds" yaml:"thresholds"`
	// RetainContour re-analyses the previous dominant contour on frames without one
	// while a fall is being checked.
	RetainContour bool `json:"retain_contour" yaml:"retain_contour"`
}

// DefaultTrackerConfig returns the tuned defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		WindowSize:       DefaultWindowSize,
		MinEllipsePoints: DefaultMinEllipsePoints,
		Thresholds:       DefaultThresholds(),
		RetainContour:    true,
	}
}

// Input is what the external collaborators hand the tracker for one frame.
type Input struct {
	// Contour is the dominant contour, empty when no region qualified.
	Contour Contour
	Mask    Mask
	History History
	// Now is the evaluation time. The tracker clock is used when zero.
	Now time.Time
}

// Result is the per-frame decision artifact.
type Result struct {
	Shape       Shape
	Density     float64
	Stats       WindowStats
	Samples     int
	Transitions []Transition
	Phase       Phase
	Label       string
}

// Tracker aggregates the rolling windows, the shape extractor and the state machine.
//
// Process must be called from a single goroutine, one frame at a time. Snapshot and
// CollectMetrics may be called concurrently.
type Tracker struct {
	windows   *Windows
	extractor *ShapeExtractor
	machine   *Machine
	retain    bool
	last      Contour
	latest    Result
	clock     func() time.Time
	mu        sync.RWMutex
}

// NewTracker creates a tracker that fits ellipses with fitter.
//
// Arguments:
//   - config: Window, extractor and threshold settings.
//   - fitter: The ellipse fitter for the dominant contour.
//
// Returns:
//   - *Tracker: A tracker in PhaseIdle with empty windows.
//
// @example
// tracker := NewTracker(DefaultTrackerConfig(), MomentsFitter{})
// res := tracker.Process(Input{Contour: c, Mask: m, History: h})
// fmt.Println(res.Label)
func NewTracker(config TrackerConfig, fitter EllipseFitter) *Tracker {
	extractor := NewShapeExtractor(fitter)
	if config.MinEllipsePoints > 0 {
		extractor.MinPoints = config.MinEllipsePoints
	}
	return &Tracker{
		windows:   NewWindows(config.WindowSize),
		extractor: extractor,
		machine:   NewMachine(config.Thresholds),
		retain:    config.RetainContour,
		latest:    Result{Phase: PhaseIdle},
		clock:     time.Now,
	}
}

// SetClock replaces the clock used when an Input carries no time.
func (t *Tracker) SetClock(clock func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
}

// Process runs one frame through shape extraction, window update, density estimation
// and the state machine.
func (t *Tracker) Process(in Input) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := in.Now
	if now.IsZero() {
		now = t.clock()
	}

	if t.machine.Phase() == PhaseIdle || !t.retain {
		t.last = nil
	}
	if len(in.Contour) > 0 {
		t.last = append(Contour(nil), in.Contour...)
	}

	var shape Shape
	if len(t.last) > 0 {
		shape = t.extractor.Extract(t.last)
		if shape.Fitted {
			t.windows.Push(shape.Ellipse)
		}
	}

	density := MotionDensity(in.Mask, in.History)
	stats := t.windows.Stats()
	transitions := t.machine.Step(Observation{Density: density, Stats: stats}, now)

	phase := t.machine.Phase()
	t.latest = Result{
		Shape:       shape,
		Density:     density,
		Stats:       stats,
		Samples:     t.windows.Len(),
		Transitions: transitions,
		Phase:       phase,
		Label:       phase.Label(),
	}
	return t.latest
}

// Snapshot returns the result of the last processed frame.
func (t *Tracker) Snapshot() Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.machine.Phase()
}

// Windows returns copies of the five series, oldest sample first.
func (t *Tracker) Windows() map[string][]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string][]float64{
		"angle": t.windows.Angle.Values(),
		"a":     t.windows.A.Values(),
		"b":     t.windows.B.Values(),
		"x":     t.windows.X.Values(),
		"y":     t.windows.Y.Values(),
	}
}

// CollectMetrics reports the latest statistics for the runtime profiler.
func (t *Tracker) CollectMetrics() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var phase float64
	switch t.latest.Phase {
	case PhaseCandidate:
		phase = 1
	case PhaseConfirmed:
		phase = 2
	}
	return map[string]float64{
		"fall_density":  t.latest.Density,
		"fall_angle_sd": t.latest.Stats.Angle,
		"fall_a_sd":     t.latest.Stats.A,
		"fall_b_sd":     t.latest.Stats.B,
		"fall_x_sd":     t.latest.Stats.X,
		"fall_y_sd":     t.latest.Stats.Y,
		"fall_phase":    phase,
	}
}
