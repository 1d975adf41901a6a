package images

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/fall"
)

// MockFrameGenerator creates deterministic BGR test frames.
//
// @example
// gen := NewMockFrameGenerator(320, 240)
// frame := gen.GenerateStaticFrame()
// defer frame.Close()
type MockFrameGenerator struct {
	width  int
	height int
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{width: width, height: height}
}

// GenerateStaticFrame creates a mid-gray background frame.
func (g *MockFrameGenerator) GenerateStaticFrame() gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(128, 128, 128, 0))
	return frame
}

// GenerateMotionFrame creates a frame with a bright filled rectangle at rect.
func (g *MockFrameGenerator) GenerateMotionFrame(rect image.Rectangle) gocv.Mat {
	frame := g.GenerateStaticFrame()
	gocv.Rectangle(&frame, rect, color.RGBA{255, 255, 255, 0}, -1)
	return frame
}

// filledMask returns a mask with the given rectangles set to 255.
func filledMask(width, height int, rects ...image.Rectangle) fall.Mask {
	mask := fall.Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for _, r := range rects {
		r = r.Intersect(image.Rect(0, 0, width, height))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mask.Pix[y*width+x] = 255
			}
		}
	}
	return mask
}
