package fall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdDev(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty series", values: nil, expected: 0},
		{name: "single sample", values: []float64{42}, expected: 0},
		{name: "constant series", values: []float64{3, 3, 3, 3}, expected: 0},
		{name: "population divisor", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, expected: 2},
		{name: "one outlier", values: []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 50}, expected: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, StdDev(tt.values), 1e-9)
		})
	}
}

func TestAxisRatio(t *testing.T) {
	assert.Equal(t, 0.0, axisRatio(0, 0))
	assert.True(t, axisRatio(1, 0) > 1e300)
	assert.InDelta(t, 0.5, axisRatio(1, 2), 1e-12)
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(10)
	for i := 1; i <= 10; i++ {
		w.Push(float64(i))
	}
	require.Equal(t, 10, w.Len())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, w.Values())

	w.Push(11)
	assert.Equal(t, 10, w.Len())
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, w.Values())

	for i := 12; i <= 100; i++ {
		w.Push(float64(i))
		assert.LessOrEqual(t, w.Len(), w.Cap())
	}
	assert.Equal(t, []float64{91, 92, 93, 94, 95, 96, 97, 98, 99, 100}, w.Values())
}

func TestWindowDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultWindowSize, NewWindow(0).Cap())
	assert.Equal(t, DefaultWindowSize, NewWindow(-3).Cap())
	assert.Equal(t, 0.0, NewWindow(5).StdDev())
}

func TestWindowsMoveTogether(t *testing.T) {
	ws := NewWindows(3)
	for i := 0; i < 5; i++ {
		ws.Push(Ellipse{
			Center: Point{X: float64(i), Y: float64(2 * i)},
			Width:  float64(10 + i),
			Height: float64(20 + i),
			Angle:  float64(30 * i),
		})
	}

	assert.Equal(t, 3, ws.Len())
	assert.Equal(t, []float64{60, 90, 120}, ws.Angle.Values())
	assert.Equal(t, []float64{6, 6.5, 7}, ws.A.Values())
	assert.Equal(t, []float64{11, 11.5, 12}, ws.B.Values())
	assert.Equal(t, []float64{2, 3, 4}, ws.X.Values())
	assert.Equal(t, []float64{4, 6, 8}, ws.Y.Values())

	stats := ws.Stats()
	assert.InDelta(t, StdDev([]float64{60, 90, 120}), stats.Angle, 1e-9)
	assert.InDelta(t, stats.A, stats.B, 1e-9)
}
