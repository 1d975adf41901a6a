package fall

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampledEllipse returns n boundary points of an ellipse with semi-axes a and b, the a axis
// rotated by rot degrees, rounded to the pixel grid.
func sampledEllipse(cx, cy, a, b, rot float64, n int) Contour {
	sin, cos := math.Sincos(rot * math.Pi / 180)
	c := make(Contour, 0, n)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		u, v := a*math.Cos(t), b*math.Sin(t)
		c = append(c, image.Pt(int(math.Round(cx+u*cos-v*sin)), int(math.Round(cy+u*sin+v*cos))))
	}
	return c
}

func TestDirectFitter(t *testing.T) {
	tests := []struct {
		name    string
		contour Contour
		center  Point
		width   float64
		height  float64
		angle   float64
	}{
		{
			name:    "lying on its side",
			contour: sampledEllipse(200, 150, 60, 25, 0, 72),
			center:  Point{X: 200, Y: 150},
			width:   50,
			height:  120,
			angle:   90,
		},
		{
			name:    "tilted",
			contour: sampledEllipse(320, 240, 60, 25, 30, 90),
			center:  Point{X: 320, Y: 240},
			width:   50,
			height:  120,
			angle:   120,
		},
		{
			name:    "upright",
			contour: sampledEllipse(100, 100, 20, 45, 5, 72),
			center:  Point{X: 100, Y: 100},
			width:   40,
			height:  90,
			angle:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DirectFitter{}.FitEllipse(tt.contour)
			assert.InDelta(t, tt.center.X, e.Center.X, 0.5)
			assert.InDelta(t, tt.center.Y, e.Center.Y, 0.5)
			assert.InDelta(t, tt.width, e.Width, 1)
			assert.InDelta(t, tt.height, e.Height, 1)
			assert.InDelta(t, tt.angle, e.Angle, 2)
			assert.GreaterOrEqual(t, e.Angle, 0.0)
			assert.Less(t, e.Angle, 180.0)
		})
	}
}

func TestDirectFitterKeepsSubPixelCenter(t *testing.T) {
	// Point set symmetric about (100.5, 80.5) in both axes.
	var c Contour
	for i := 0; i < 12; i++ {
		theta := float64(i) * math.Pi / 24
		dx := int(math.Round(40 * math.Cos(theta)))
		dy := int(math.Round(20 * math.Sin(theta)))
		c = append(c,
			image.Pt(101+dx, 81+dy), image.Pt(100-dx, 81+dy),
			image.Pt(101+dx, 80-dy), image.Pt(100-dx, 80-dy),
		)
	}

	e := DirectFitter{}.FitEllipse(c)
	assert.InDelta(t, 100.5, e.Center.X, 1e-6)
	assert.InDelta(t, 80.5, e.Center.Y, 1e-6)
	assert.InDelta(t, 90, e.Angle, 1e-6)
	assert.InDelta(t, 41, e.Width, 1.5)
	assert.InDelta(t, 81, e.Height, 1.5)
	assert.NotEqual(t, math.Trunc(e.Width), e.Width)
}

func TestDirectFitterDegenerateContour(t *testing.T) {
	line := Contour{image.Pt(0, 0), image.Pt(1, 0), image.Pt(2, 0), image.Pt(3, 0), image.Pt(4, 0), image.Pt(5, 0)}
	e := DirectFitter{}.FitEllipse(line)
	require.Equal(t, MomentsFitter{}.FitEllipse(line), e)
	assert.False(t, math.IsNaN(e.Width))

	assert.Equal(t, Ellipse{}, DirectFitter{}.FitEllipse(nil))
}
