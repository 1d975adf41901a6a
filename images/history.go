// Package images - This file contains the motion-history updater.
package images

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/fall"
)

// DefaultHistoryDuration is how long, in seconds, a foreground stamp survives.
const DefaultHistoryDuration = 0.5

// MotionHistory keeps a CV_32FC1 buffer where each pixel holds the timestamp of the last
// frame it was foreground in. Stamps older than Duration decay to zero.
type MotionHistory struct {
	Duration float64

	mhi gocv.Mat
	mu  sync.RWMutex
}

var _ controller.MotionHistoryUpdater = (*MotionHistory)(nil)

// NewMotionHistory creates an empty history. A non-positive duration uses the default.
func NewMotionHistory(duration float64) *MotionHistory {
	if duration <= 0 {
		duration = DefaultHistoryDuration
	}
	return &MotionHistory{Duration: duration, mhi: gocv.NewMat()}
}

// Update stamps timestamp into every foreground pixel and clears stamps older than
// timestamp - Duration. The buffer is reallocated when the mask size changes.
//
// Arguments:
//   - mask: The foreground mask of the current frame.
//   - timestamp: Seconds on a monotonic clock.
//
// Returns:
//   - fall.History: A copy of the buffer after the update.
//   - error: An error if the mask cannot be converted.
func (h *MotionHistory) Update(mask fall.Mask, timestamp float64) (fall.History, error) {
	m, err := MaskToMat(mask)
	if err != nil {
		return fall.History{}, err
	}
	defer m.Close()
	if m.Empty() {
		return fall.History{}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mhi.Empty() || h.mhi.Rows() != m.Rows() || h.mhi.Cols() != m.Cols() {
		h.mhi.Close()
		h.mhi = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), m.Rows(), m.Cols(), gocv.MatTypeCV32FC1)
	}

	stamp := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(timestamp, 0, 0, 0), m.Rows(), m.Cols(), gocv.MatTypeCV32FC1)
	defer stamp.Close()
	stamp.CopyToWithMask(&h.mhi, m)

	gocv.Threshold(h.mhi, &h.mhi, float32(timestamp-h.Duration), 0, gocv.ThresholdToZero)

	history, err := MatToHistory(h.mhi)
	if err != nil {
		return fall.History{}, errors.Wrap(err, "copy motion history")
	}
	return history, nil
}

// View returns the history scaled to 8 bits for display. The caller must close it.
func (h *MotionHistory) View() gocv.Mat {
	h.mu.RLock()
	defer h.mu.RUnlock()

	view := gocv.NewMat()
	if h.mhi.Empty() {
		return view
	}
	gocv.Normalize(h.mhi, &view, 0, 255, gocv.NormMinMax)
	view.ConvertTo(&view, gocv.MatTypeCV8UC1)
	return view
}

// Close releases the history buffer.
func (h *MotionHistory) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mhi.Close()
}
