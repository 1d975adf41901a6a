package fall

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMotionDensity(t *testing.T) {
	tests := []struct {
		name     string
		mask     Mask
		history  History
		expected float64
	}{
		{
			name:     "no foreground",
			mask:     Mask{Width: 2, Height: 2, Pix: []uint8{0, 0, 0, 0}},
			history:  History{Width: 2, Height: 2, Pix: []float32{1.5, 2, 0, 9}},
			expected: 0,
		},
		{
			name:     "empty rasters",
			expected: 0,
		},
		{
			name:     "history matches foreground",
			mask:     Mask{Width: 2, Height: 2, Pix: []uint8{255, 255, 0, 0}},
			history:  History{Width: 2, Height: 2, Pix: []float32{2.5, 2.5, 0, 0}},
			expected: 5.0 / 510.0 * 100,
		},
		{
			name:     "accumulated history",
			mask:     Mask{Width: 2, Height: 1, Pix: []uint8{255, 0}},
			history:  History{Width: 2, Height: 1, Pix: []float32{200, 55}},
			expected: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MotionDensity(tt.mask, tt.history)
			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
			assert.InDelta(t, tt.expected, got, 1e-6)
		})
	}
}

func TestMaskSumDoesNotOverflow(t *testing.T) {
	pix := make([]uint8, 1<<16)
	for i := range pix {
		pix[i] = 255
	}
	assert.Equal(t, float64(255*len(pix)), Mask{Pix: pix}.Sum())
}
