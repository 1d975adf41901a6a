package fall

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFitter returns queued ellipses in order and counts calls.
type scriptedFitter struct {
	ellipses []Ellipse
	calls    int
}

func (f *scriptedFitter) FitEllipse(c Contour) Ellipse {
	e := Ellipse{}
	if f.calls < len(f.ellipses) {
		e = f.ellipses[f.calls]
	}
	f.calls++
	return e
}

func rectContour(x, y, w, h int) Contour {
	return Contour{
		image.Pt(x, y), image.Pt(x+w/2, y), image.Pt(x+w, y),
		image.Pt(x+w, y+h), image.Pt(x+w/2, y+h), image.Pt(x, y+h),
	}
}

func TestShapeExtractorNeedsSixPoints(t *testing.T) {
	fitter := &scriptedFitter{}
	se := NewShapeExtractor(fitter)

	short := Contour{image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 10), image.Pt(5, 12), image.Pt(0, 10)}
	shape := se.Extract(short)
	assert.False(t, shape.Fitted)
	assert.Equal(t, image.Rect(0, 0, 11, 13), shape.Bounds)
	assert.Equal(t, 0, fitter.calls)

	shape = se.Extract(rectContour(0, 0, 10, 20))
	assert.True(t, shape.Fitted)
	assert.Equal(t, 1, fitter.calls)
}

func TestShapeExtractorEmptyContour(t *testing.T) {
	se := NewShapeExtractor(MomentsFitter{})
	shape := se.Extract(nil)
	assert.False(t, shape.Fitted)
	assert.True(t, shape.Bounds.Empty())
}

func TestShapeExtractorNeverBelowFloor(t *testing.T) {
	fitter := &scriptedFitter{}
	se := &ShapeExtractor{Fitter: fitter, MinPoints: 2}
	shape := se.Extract(Contour{image.Pt(0, 0), image.Pt(1, 1), image.Pt(2, 0)})
	assert.False(t, shape.Fitted)
	assert.Equal(t, 0, fitter.calls)
}

func TestMomentsFitter(t *testing.T) {
	tests := []struct {
		name    string
		contour Contour
		center  Point
		width   float64
		height  float64
		angle   float64
	}{
		{
			name:    "upright rectangle",
			contour: Contour{image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 40), image.Pt(0, 40)},
			center:  Point{X: 5, Y: 20},
			width:   11.547,
			height:  46.188,
			angle:   0,
		},
		{
			name:    "rectangle lying down",
			contour: Contour{image.Pt(0, 0), image.Pt(0, 10), image.Pt(40, 10), image.Pt(40, 0)},
			center:  Point{X: 20, Y: 5},
			width:   11.547,
			height:  46.188,
			angle:   90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MomentsFitter{}.FitEllipse(tt.contour)
			assert.InDelta(t, tt.center.X, e.Center.X, 1e-6)
			assert.InDelta(t, tt.center.Y, e.Center.Y, 1e-6)
			assert.InDelta(t, tt.width, e.Width, 1e-3)
			assert.InDelta(t, tt.height, e.Height, 1e-3)
			assert.InDelta(t, tt.angle, e.Angle, 1e-6)
			assert.GreaterOrEqual(t, e.Angle, 0.0)
			assert.Less(t, e.Angle, 180.0)
		})
	}
}

func TestMomentsFitterDegenerateContour(t *testing.T) {
	line := Contour{image.Pt(0, 0), image.Pt(1, 0), image.Pt(2, 0), image.Pt(3, 0), image.Pt(4, 0), image.Pt(5, 0)}
	e := MomentsFitter{}.FitEllipse(line)
	require.InDelta(t, 2.5, e.Center.X, 1e-9)
	assert.InDelta(t, 0.0, e.Center.Y, 1e-9)
	assert.InDelta(t, 0.0, e.Width, 1e-9)
	assert.Greater(t, e.Height, 0.0)

	assert.Equal(t, Ellipse{}, MomentsFitter{}.FitEllipse(nil))
}

func TestBoundingRect(t *testing.T) {
	c := Contour{image.Pt(5, 7), image.Pt(2, 9), image.Pt(8, 3)}
	assert.Equal(t, image.Rect(2, 3, 9, 10), BoundingRect(c))
}
