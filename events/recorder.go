// Package events - This file contains the recorder that turns tracker transitions into
// stored events.
package events

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/fall"
	"github.com/nvr-ai/go-falldetect/internal/log"
)

// Recorder opens an event when a candidate appears, confirms it with a snapshot and ends it
// on recovery or dismissal.
type Recorder struct {
	Store     *Store
	Snapshots *SnapshotWriter
	Timeout   time.Duration

	current string
}

var _ controller.EventSink = (*Recorder)(nil)

// NewRecorder creates a recorder. snapshots may be nil.
func NewRecorder(store *Store, snapshots *SnapshotWriter) *Recorder {
	return &Recorder{Store: store, Snapshots: snapshots, Timeout: 5 * time.Second}
}

// Current returns the id of the open event, empty when none.
func (r *Recorder) Current() string {
	return r.current
}

// Record applies every transition of the result in order.
func (r *Recorder) Record(frame controller.Frame, result fall.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	for _, tr := range result.Transitions {
		if err := r.apply(ctx, frame, tr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) apply(ctx context.Context, frame controller.Frame, tr fall.Transition) error {
	switch {
	case tr.To == fall.PhaseCandidate:
		if r.current != "" {
			// The previous event never reached an end, usually because End failed.
			if err := r.Store.End(ctx, r.current, tr.At, OutcomeDismissed); err != nil {
				log.Warn("failed to end stale fall event", "event", r.current, "error", err)
			} else {
				log.Debug("stale fall event dismissed", "event", r.current)
			}
			r.current = ""
		}
		id, err := r.Store.Open(ctx, tr.At)
		if err != nil {
			return err
		}
		r.current = id
		log.Debug("fall event opened", "event", id)

	case tr.To == fall.PhaseConfirmed:
		if r.current == "" {
			return nil
		}
		snapshot := r.snapshot(frame)
		if err := r.Store.Confirm(ctx, r.current, tr.At, snapshot); err != nil {
			return err
		}
		log.Info("fall event confirmed", "event", r.current, "snapshot", snapshot)

	case tr.To == fall.PhaseIdle:
		if r.current == "" {
			return nil
		}
		outcome := OutcomeDismissed
		if tr.From == fall.PhaseConfirmed {
			outcome = OutcomeRecovered
		}
		if err := r.Store.End(ctx, r.current, tr.At, outcome); err != nil {
			return err
		}
		log.Debug("fall event ended", "event", r.current, "outcome", outcome)
		r.current = ""

	default:
		return errors.Errorf("unexpected transition %s -> %s", tr.From, tr.To)
	}
	return nil
}

func (r *Recorder) snapshot(frame controller.Frame) string {
	if r.Snapshots == nil || frame.Image.Empty() {
		return ""
	}
	path, err := r.Snapshots.Write(frame.Image, r.current)
	if err != nil {
		log.Warn("failed to write fall snapshot", "event", r.current, "error", err)
		return ""
	}
	return path
}
