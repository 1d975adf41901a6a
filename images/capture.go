// Package images - This file contains the video capture frame source.
package images

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
)

// ErrNotRewindable is returned when a live device is asked to rewind.
var ErrNotRewindable = errors.New("live capture cannot be rewound")

// VideoSource reads frames from a video file or a capture device.
type VideoSource struct {
	capture *gocv.VideoCapture
	live    bool
	next    int
}

var _ controller.FrameSource = (*VideoSource)(nil)

// OpenVideoFile opens a recorded video.
//
// Arguments:
//   - path: Path of a file OpenCV can decode.
//
// Returns:
//   - *VideoSource: The source, rewindable.
//   - error: An error if the file cannot be opened.
func OpenVideoFile(path string) (*VideoSource, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video %q", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("video %q could not be opened", path)
	}
	return &VideoSource{capture: capture}, nil
}

// OpenDevice opens a live capture device by index.
func OpenDevice(id int) (*VideoSource, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture device %d", id)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("capture device %d could not be opened", id)
	}
	return &VideoSource{capture: capture, live: true}, nil
}

// Read grabs the next frame. The returned frame owns its Mat; io.EOF marks the end of a file.
func (v *VideoSource) Read() (controller.Frame, error) {
	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if v.live {
			return controller.Frame{}, errors.New("capture device returned no frame")
		}
		return controller.Frame{}, io.EOF
	}

	frame := controller.Frame{
		ID:        v.next,
		Image:     mat,
		Timestamp: time.Now(),
		Release:   func() { mat.Close() },
	}
	v.next++
	return frame, nil
}

// Rewind seeks a file back to its first frame.
func (v *VideoSource) Rewind() error {
	if v.live {
		return ErrNotRewindable
	}
	v.capture.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// Close releases the capture.
func (v *VideoSource) Close() error {
	return v.capture.Close()
}
