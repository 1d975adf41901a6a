package fall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fill(capacity int, values ...float64) *Window {
	w := NewWindow(capacity)
	for _, v := range values {
		w.Push(v)
	}
	return w
}

// statsOf reduces literal windows the way the tracker does.
func statsOf(angle, a, b, x, y []float64) WindowStats {
	ws := &Windows{
		Angle: fill(DefaultWindowSize, angle...),
		A:     fill(DefaultWindowSize, a...),
		B:     fill(DefaultWindowSize, b...),
		X:     fill(DefaultWindowSize, x...),
		Y:     fill(DefaultWindowSize, y...),
	}
	return ws.Stats()
}

var (
	tiltingAngle = []float64{10, 10, 10, 10, 10, 90, 90, 90, 90, 90}
	spreadA      = []float64{20, 22, 24, 26, 28, 30, 32, 34, 36, 38}
	spreadB      = []float64{40, 42, 44, 46, 48, 50, 52, 54, 56, 58}
	stillX       = []float64{100, 100, 100, 101, 99, 100, 100, 100, 100, 100}
	stillY       = []float64{200, 200, 201, 200, 200, 199, 200, 200, 200, 200}
	movingX      = []float64{100, 150, 90, 140, 95, 160, 100, 130, 110, 145}
	movingY      = []float64{200, 260, 190, 250, 185, 270, 205, 240, 210, 255}
)

func TestMachineOpensCandidate(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	stats := statsOf(tiltingAngle, spreadA, spreadB, movingX, movingY)
	require.InDelta(t, 1.0, stats.A/stats.B, 1e-9)
	require.Greater(t, stats.Angle, 20.0)

	transitions := m.Step(Observation{Density: 95, Stats: stats}, epoch)

	require.Len(t, transitions, 1)
	assert.Equal(t, Transition{From: PhaseIdle, To: PhaseCandidate, At: epoch}, transitions[0])
	assert.Equal(t, PhaseCandidate, m.Phase())
	assert.Equal(t, epoch, m.StartedAt())
	assert.Equal(t, "Warning", m.Phase().Label())
}

func TestMachineCandidateRequiresAllThresholds(t *testing.T) {
	base := statsOf(tiltingAngle, spreadA, spreadB, movingX, movingY)

	tests := []struct {
		name    string
		density float64
		mutate  func(s *WindowStats)
	}{
		{name: "density at threshold", density: 80, mutate: func(s *WindowStats) {}},
		{name: "angle spread too small", density: 95, mutate: func(s *WindowStats) { s.Angle = 12 }},
		{name: "axis ratio too small", density: 95, mutate: func(s *WindowStats) { s.A = s.B * 0.5 }},
		{name: "no shape change at all", density: 95, mutate: func(s *WindowStats) { s.A, s.B = 0, 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := base
			tt.mutate(&stats)
			m := NewMachine(DefaultThresholds())
			assert.Empty(t, m.Step(Observation{Density: tt.density, Stats: stats}, epoch))
			assert.Equal(t, PhaseIdle, m.Phase())
			assert.True(t, m.StartedAt().IsZero())
		})
	}
}

func TestMachineSingleOutlierAngleIsNotEnough(t *testing.T) {
	stats := statsOf([]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 50}, spreadA, spreadB, movingX, movingY)
	assert.InDelta(t, 12.0, stats.Angle, 1e-9)

	m := NewMachine(DefaultThresholds())
	m.Step(Observation{Density: 95, Stats: stats}, epoch)
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestMachineZeroBSpreadPassesWhenAMoves(t *testing.T) {
	stats := statsOf(tiltingAngle, spreadA, []float64{40, 40, 40}, movingX, movingY)
	m := NewMachine(DefaultThresholds())
	m.Step(Observation{Density: 95, Stats: stats}, epoch)
	assert.Equal(t, PhaseCandidate, m.Phase())
}

func TestMachineConfirmsWhenStill(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	m.Step(Observation{Density: 95, Stats: statsOf(tiltingAngle, spreadA, spreadB, movingX, movingY)}, epoch)
	require.Equal(t, PhaseCandidate, m.Phase())

	// Long after the timeout, stillness still wins because it is evaluated first.
	later := epoch.Add(time.Hour)
	stats := statsOf(nil, nil, nil, stillX, stillY)
	require.Less(t, stats.X, 2.0)
	require.Less(t, stats.Y, 2.0)

	transitions := m.Step(Observation{Stats: stats}, later)
	require.Len(t, transitions, 1)
	assert.Equal(t, PhaseConfirmed, transitions[0].To)
	assert.Equal(t, PhaseConfirmed, m.Phase())
	assert.Equal(t, epoch, m.StartedAt())
	assert.Equal(t, "Fall", m.Phase().Label())
}

func TestMachineOpensAndConfirmsInOneFrame(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	stats := statsOf(tiltingAngle, spreadA, spreadB, stillX, stillY)

	transitions := m.Step(Observation{Density: 95, Stats: stats}, epoch)
	require.Len(t, transitions, 2)
	assert.Equal(t, PhaseCandidate, transitions[0].To)
	assert.Equal(t, PhaseConfirmed, transitions[1].To)
	assert.Equal(t, PhaseConfirmed, m.Phase())
}

func TestMachineCandidateTimeout(t *testing.T) {
	moving := statsOf(tiltingAngle, spreadA, spreadB, movingX, movingY)
	quiet := statsOf(nil, nil, nil, movingX, movingY)

	t.Run("times out after two seconds", func(t *testing.T) {
		m := NewMachine(DefaultThresholds())
		m.Step(Observation{Density: 95, Stats: moving}, epoch)

		assert.Empty(t, m.Step(Observation{Stats: quiet}, epoch.Add(2*time.Second)))
		assert.Equal(t, PhaseCandidate, m.Phase())

		transitions := m.Step(Observation{Stats: quiet}, epoch.Add(2*time.Second+time.Millisecond))
		require.Len(t, transitions, 1)
		assert.Equal(t, Transition{From: PhaseCandidate, To: PhaseIdle, At: epoch.Add(2*time.Second + time.Millisecond)}, transitions[0])
		assert.True(t, m.StartedAt().IsZero())
	})

	t.Run("zero timeout never expires", func(t *testing.T) {
		thresholds := DefaultThresholds()
		thresholds.CandidateTimeout = 0
		m := NewMachine(thresholds)
		m.Step(Observation{Density: 95, Stats: moving}, epoch)
		m.Step(Observation{Stats: quiet}, epoch.Add(time.Hour))
		assert.Equal(t, PhaseCandidate, m.Phase())
	})
}

func TestMachineRecovery(t *testing.T) {
	confirmed := func() *Machine {
		m := NewMachine(DefaultThresholds())
		m.Step(Observation{Density: 95, Stats: statsOf(tiltingAngle, spreadA, spreadB, stillX, stillY)}, epoch)
		require.Equal(t, PhaseConfirmed, m.Phase())
		return m
	}

	tests := []struct {
		name     string
		x, y     []float64
		expected Phase
	}{
		{name: "both axes moving", x: movingX, y: movingY, expected: PhaseIdle},
		{name: "only x moving", x: movingX, y: stillY, expected: PhaseConfirmed},
		{name: "only y moving", x: stillX, y: movingY, expected: PhaseConfirmed},
		{name: "still", x: stillX, y: stillY, expected: PhaseConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := confirmed()
			m.Step(Observation{Stats: statsOf(nil, nil, nil, tt.x, tt.y)}, epoch.Add(time.Second))
			assert.Equal(t, tt.expected, m.Phase())
			assert.Equal(t, tt.expected.Label(), m.Phase().Label())
		})
	}
}

func TestMachineNeverSkipsToConfirmed(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	stats := statsOf(nil, nil, nil, stillX, stillY)
	for i := 0; i < 20; i++ {
		m.Step(Observation{Density: 500, Stats: stats}, epoch.Add(time.Duration(i)*time.Second))
		assert.Equal(t, PhaseIdle, m.Phase())
	}
}

func TestMachineIsIdempotent(t *testing.T) {
	snapshots := []WindowStats{
		statsOf(tiltingAngle, spreadA, spreadB, movingX, movingY),
		statsOf(tiltingAngle, spreadA, spreadB, stillX, stillY),
		statsOf(nil, nil, nil, stillX, movingY),
	}

	for _, stats := range snapshots {
		m := NewMachine(DefaultThresholds())
		obs := Observation{Density: 95, Stats: stats}
		m.Step(obs, epoch)
		first, started := m.Phase(), m.StartedAt()
		m.Step(obs, epoch)
		assert.Equal(t, first, m.Phase())
		assert.Equal(t, started, m.StartedAt())
	}
}
