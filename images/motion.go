// Package images - This file contains the foreground segmenter backed by OpenCV (via gocv).
//
// The ForegroundSegmenter is the first stage of the fall pipeline:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────┐
// │ Background Subtraction     │
// │       (MOG2)               │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Shadow removal (optional)  │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Foreground mask (0 / 255)  │
// └────────────────────────────┘
//
// Usage:
//
//	seg := images.NewForegroundSegmenter(images.DefaultSegmenterConfig())
//	defer seg.Close()
//
//	for {
//	    frame := getNextFrame()
//	    mask, err := seg.Segment(frame)
//	}
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/fall"
)

// shadowValue is the intensity MOG2 assigns to shadow pixels.
const shadowValue = 127

// SegmenterConfig configures the MOG2 background model.
type SegmenterConfig struct {
	// History is the number of frames that shape the background model.
	History int
	// VarThreshold is the squared Mahalanobis distance deciding foreground membership.
	VarThreshold float64
	// DetectShadows marks shadows separately; they are removed from the mask.
	DetectShadows bool
}

// DefaultSegmenterConfig returns a short-memory model without shadow detection.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		History:      20,
		VarThreshold: 16,
	}
}

// ForegroundSegmenter produces a binary foreground mask per frame using a persistent MOG2
// background model. It keeps the latest mask for display.
type ForegroundSegmenter struct {
	config     SegmenterConfig
	subtractor gocv.BackgroundSubtractorMOG2
	delta      gocv.Mat
	mu         sync.RWMutex
}

var _ controller.ForegroundSegmenter = (*ForegroundSegmenter)(nil)

// NewForegroundSegmenter creates a segmenter with a fresh background model.
//
// Arguments:
//   - config: Background model parameters.
//
// Returns:
//   - *ForegroundSegmenter: The segmenter. Call Close() to release native resources.
//
// @example
// seg := NewForegroundSegmenter(DefaultSegmenterConfig())
// defer seg.Close()
func NewForegroundSegmenter(config SegmenterConfig) *ForegroundSegmenter {
	if config.History <= 0 {
		config.History = DefaultSegmenterConfig().History
	}
	if config.VarThreshold <= 0 {
		config.VarThreshold = DefaultSegmenterConfig().VarThreshold
	}
	return &ForegroundSegmenter{
		config:     config,
		subtractor: gocv.NewBackgroundSubtractorMOG2WithParams(config.History, config.VarThreshold, config.DetectShadows),
		delta:      gocv.NewMat(),
	}
}

// Segment applies the background model to the frame and returns the foreground mask.
func (s *ForegroundSegmenter) Segment(frame controller.Frame) (fall.Mask, error) {
	if frame.Image.Empty() {
		return fall.Mask{}, errors.Errorf("frame %d is empty", frame.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.subtractor.Apply(frame.Image, &s.delta); err != nil {
		return fall.Mask{}, errors.Wrap(err, "apply background subtractor")
	}
	if s.config.DetectShadows {
		gocv.Threshold(s.delta, &s.delta, shadowValue, 255, gocv.ThresholdBinary)
	}
	return MatToMask(s.delta)
}

// View returns a copy of the latest foreground mask. The caller must close it.
func (s *ForegroundSegmenter) View() gocv.Mat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delta.Clone()
}

// Close releases all OpenCV native resources used by the segmenter.
func (s *ForegroundSegmenter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta.Close()
	s.subtractor.Close()
}
