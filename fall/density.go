// Package fall - This file contains the raster types and the motion density estimator.
package fall

// Mask is a binary foreground raster, one byte per pixel (0 or 255).
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// Sum returns the total foreground energy of the mask.
func (m Mask) Sum() float64 {
	var total uint64
	for _, v := range m.Pix {
		total += uint64(v)
	}
	return float64(total)
}

// History is a motion-history raster. Each cell holds the most recent timestamp, in
// seconds, at which motion was observed there, or 0 once it has decayed.
type History struct {
	Width  int
	Height int
	Pix    []float32
}

// Sum returns the accumulated motion-history energy.
func (h History) Sum() float64 {
	var total float64
	for _, v := range h.Pix {
		total += float64(v)
	}
	return total
}

// MotionDensity returns the ratio of motion-history energy to foreground energy,
// scaled by 100.
//
// A mask with no foreground returns 0 instead of dividing by zero, whatever the
// history holds.
//
// Arguments:
//   - mask: The foreground mask of the current frame.
//   - history: The motion-history buffer after this frame's update.
//
// Returns:
//   - float64: The motion density coefficient.
func MotionDensity(mask Mask, history History) float64 {
	foreground := mask.Sum()
	if foreground == 0 {
		return 0
	}
	return history.Sum() / foreground * 100
}
