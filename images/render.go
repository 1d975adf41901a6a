// Package images - This file contains the overlay drawing and the display windows.
package images

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/fall"
)

const escapeKey = 27

var (
	boxColor   = color.RGBA{0, 255, 0, 0}
	shapeColor = color.RGBA{0, 0, 255, 0}
	labelColor = color.RGBA{255, 255, 255, 0}
)

// Annotate draws the bounding box, the fitted ellipse and the phase label onto img.
//
// Arguments:
//   - img: The BGR frame to draw on.
//   - result: The tracker result for the frame.
//
// @example
// frame := gocv.IMRead("frame-1.jpg", gocv.IMReadColor)
// Annotate(&frame, tracker.Snapshot())
func Annotate(img *gocv.Mat, result fall.Result) {
	if !result.Shape.Bounds.Empty() {
		gocv.Rectangle(img, result.Shape.Bounds, boxColor, 2)
	}
	if result.Shape.Fitted {
		e := result.Shape.Ellipse
		center := image.Pt(int(e.Center.X), int(e.Center.Y))
		axes := image.Pt(int(e.SemiA()), int(e.SemiB()))
		gocv.Ellipse(img, center, axes, e.Angle, 0, 360, shapeColor, 2)
	}
	if result.Label != "" {
		gocv.PutText(img, result.Label, image.Pt(10, img.Rows()-15),
			gocv.FontHersheySimplex|gocv.FontItalic, 1, labelColor, 2)
	}
}

// Viewer exposes an intermediate raster for display.
type Viewer interface {
	View() gocv.Mat
}

// Display shows the annotated frame, the foreground mask and the motion history in three
// windows. ESC stops the run.
type Display struct {
	// Delay is how long each frame waits for a key press.
	Delay time.Duration
	// Mask and History are optional extra panes.
	Mask    Viewer
	History Viewer

	windows map[string]*gocv.Window
}

var _ controller.Renderer = (*Display)(nil)

// NewDisplay creates a display that waits delay per frame.
func NewDisplay(delay time.Duration, mask, history Viewer) *Display {
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	return &Display{
		Delay:   delay,
		Mask:    mask,
		History: history,
		windows: make(map[string]*gocv.Window),
	}
}

// Render draws and shows the frame. It reports true when ESC was pressed.
func (d *Display) Render(frame controller.Frame, result fall.Result) bool {
	if frame.Image.Empty() {
		return false
	}

	annotated := frame.Image.Clone()
	defer annotated.Close()
	Annotate(&annotated, result)
	d.show("Original", annotated)

	if d.Mask != nil {
		mask := d.Mask.View()
		d.show("Mask", mask)
		mask.Close()
	}
	if d.History != nil {
		history := d.History.View()
		d.show("History", history)
		history.Close()
	}

	return d.window("Original").WaitKey(int(d.Delay/time.Millisecond)) == escapeKey
}

func (d *Display) show(name string, img gocv.Mat) {
	if img.Empty() {
		return
	}
	d.window(name).IMShow(img)
}

func (d *Display) window(name string) *gocv.Window {
	w, ok := d.windows[name]
	if !ok {
		w = gocv.NewWindow(name)
		d.windows[name] = w
	}
	return w
}

// Close destroys every window.
func (d *Display) Close() {
	for name, w := range d.windows {
		w.Close()
		delete(d.windows, name)
	}
}
