// Package controller - This file contains the controller for routing frames through the fall
// detection pipeline.
package controller

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/fall"
	"github.com/nvr-ai/go-falldetect/internal/log"
	"github.com/nvr-ai/go-falldetect/profiler"
)

// ErrEmptySource is returned by Run when a looping source yields no frame after a rewind.
var ErrEmptySource = errors.New("frame source is empty")

// Frame is a single frame of video.
type Frame struct {
	ID        int
	Image     gocv.Mat
	Timestamp time.Time
	// Release frees the frame's pixel buffer. Nil when the source keeps ownership.
	Release func()
}

// Close releases the frame buffer if the source handed over ownership.
func (f Frame) Close() {
	if f.Release != nil {
		f.Release()
	}
}

// FrameSource yields frames in acquisition order and io.EOF when exhausted.
type FrameSource interface {
	Read() (Frame, error)
	Rewind() error
	Close() error
}

// ForegroundSegmenter produces the foreground mask of a frame.
type ForegroundSegmenter interface {
	Segment(frame Frame) (fall.Mask, error)
}

// ContourFinder selects the dominant moving region of a mask.
type ContourFinder interface {
	Largest(mask fall.Mask) (fall.Contour, bool)
}

// MotionHistoryUpdater stamps the mask into the motion-history buffer at timestamp seconds
// and returns the buffer after decay.
type MotionHistoryUpdater interface {
	Update(mask fall.Mask, timestamp float64) (fall.History, error)
}

// Renderer presents a frame and its result. Returning true stops the run.
type Renderer interface {
	Render(frame Frame, result fall.Result) (stop bool)
}

// EventSink persists phase transitions.
type EventSink interface {
	Record(frame Frame, result fall.Result) error
}

// Controller drives frames from a source through the fall tracker.
//
// Renderer, Events and Profiler are optional.
type Controller struct {
	Source    FrameSource
	Segmenter ForegroundSegmenter
	Contours  ContourFinder
	History   MotionHistoryUpdater
	Tracker   *fall.Tracker
	Renderer  Renderer
	Events    EventSink
	Profiler  *profiler.RuntimeProfiler
	// Loop rewinds the source at end of stream instead of stopping.
	Loop bool
	// Prefetch is the number of frames read ahead by a capture goroutine. Zero reads inline.
	Prefetch int

	epoch  time.Time
	frames int
}

// Process runs one frame through segmentation, contour selection, motion history and the
// tracker.
//
// Arguments:
//   - frame: The frame to analyse.
//
// Returns:
//   - fall.Result: The tracker decision for the frame.
//   - error: An error if a collaborator fails. The tracker is untouched in that case.
func (c *Controller) Process(frame Frame) (fall.Result, error) {
	if c.Profiler != nil {
		defer c.Profiler.StartOperation("frame_processing")()
	}

	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	if c.epoch.IsZero() {
		c.epoch = frame.Timestamp
	}

	mask, err := c.Segmenter.Segment(frame)
	if err != nil {
		return fall.Result{}, errors.Wrapf(err, "segment frame %d", frame.ID)
	}

	contour, _ := c.Contours.Largest(mask)

	history, err := c.History.Update(mask, frame.Timestamp.Sub(c.epoch).Seconds())
	if err != nil {
		return fall.Result{}, errors.Wrapf(err, "update motion history for frame %d", frame.ID)
	}

	result := c.Tracker.Process(fall.Input{
		Contour: contour,
		Mask:    mask,
		History: history,
		Now:     frame.Timestamp,
	})
	c.frames++

	log.Debug("frame analysed",
		"frame", frame.ID,
		"coeff", result.Density,
		"theta", result.Stats.Angle,
		"a", result.Stats.A,
		"b", result.Stats.B,
		"phase", result.Phase,
	)
	for _, tr := range result.Transitions {
		logTransition(frame, result, tr)
	}

	if c.Events != nil && len(result.Transitions) > 0 {
		if err := c.Events.Record(frame, result); err != nil {
			log.Warn("failed to record fall event", "frame", frame.ID, "error", err)
		}
	}

	return result, nil
}

func logTransition(frame Frame, result fall.Result, tr fall.Transition) {
	l := log.With("frame", frame.ID, "from", tr.From, "to", tr.To)
	switch {
	case tr.To == fall.PhaseCandidate:
		l.Info("fall candidate", "coeff", result.Density, "theta", result.Stats.Angle)
	case tr.To == fall.PhaseConfirmed:
		l.Warn("fall confirmed", "x", result.Stats.X, "y", result.Stats.Y)
	case tr.From == fall.PhaseConfirmed:
		l.Info("fall recovered")
	default:
		l.Info("fall candidate dismissed")
	}
}

// Frames returns the number of frames that reached the tracker.
func (c *Controller) Frames() int {
	return c.frames
}

// Run processes frames in acquisition order until the source is exhausted, the renderer
// asks to stop, or ctx is cancelled. Cancellation is observed between frames.
//
// Arguments:
//   - ctx: Cancels the run between frames.
//
// Returns:
//   - error: ctx.Err() on cancellation, nil on exhaustion or stop, otherwise the source error.
//
// @example
// ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
// defer stop()
// err := c.Run(ctx)
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	next := c.read
	if c.Prefetch > 0 {
		var drain func()
		next, drain = c.prefetch(ctx)
		defer func() {
			cancel()
			drain()
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := next()
		if errors.Is(err, io.EOF) {
			log.Info("frame source exhausted", "frames", c.frames)
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		stop := c.step(frame)
		frame.Close()
		if stop {
			log.Info("stop requested by renderer", "frames", c.frames)
			return nil
		}
	}
}

func (c *Controller) step(frame Frame) bool {
	result, err := c.Process(frame)
	if err != nil {
		log.Warn("skipping frame", "frame", frame.ID, "error", err)
		return false
	}
	if c.Renderer == nil {
		return false
	}
	return c.Renderer.Render(frame, result)
}

// read returns the next frame, rewinding the source at end of stream when looping.
func (c *Controller) read() (Frame, error) {
	frame, err := c.Source.Read()
	if !errors.Is(err, io.EOF) || !c.Loop {
		return frame, err
	}

	if err := c.Source.Rewind(); err != nil {
		return Frame{}, errors.Wrap(err, "rewind frame source")
	}
	log.Debug("frame source rewound")

	frame, err = c.Source.Read()
	if errors.Is(err, io.EOF) {
		return Frame{}, ErrEmptySource
	}
	return frame, err
}

type fetched struct {
	frame Frame
	err   error
}

// prefetch starts a single capture goroutine feeding a bounded channel. The returned drain
// must be called after ctx is cancelled; it releases unconsumed frames and waits for the
// goroutine to exit.
func (c *Controller) prefetch(ctx context.Context) (func() (Frame, error), func()) {
	ch := make(chan fetched, c.Prefetch)

	go func() {
		defer close(ch)
		for {
			frame, err := c.read()
			select {
			case ch <- fetched{frame: frame, err: err}:
			case <-ctx.Done():
				frame.Close()
				return
			}
			if err != nil {
				return
			}
		}
	}()

	next := func() (Frame, error) {
		f, ok := <-ch
		if !ok {
			if err := ctx.Err(); err != nil {
				return Frame{}, err
			}
			return Frame{}, io.EOF
		}
		return f.frame, f.err
	}

	drain := func() {
		for f := range ch {
			f.frame.Close()
		}
	}

	return next, drain
}
