package images

import (
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/fall"
)

// EllipseFitter fits ellipses with OpenCV's least-squares FitEllipse.
//
// gocv hands the result back as a RotatedRect with integer center and size, so center and
// axes are truncated to whole pixels. Sub-pixel changes between frames are lost, which
// flattens small axis spreads to zero. fall.DirectFitter runs the same fit in float.
type EllipseFitter struct{}

var _ fall.EllipseFitter = EllipseFitter{}

// FitEllipse returns the rotated rectangle of the fitted ellipse as delivered by OpenCV.
func (EllipseFitter) FitEllipse(c fall.Contour) fall.Ellipse {
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()

	rr := gocv.FitEllipse(pv)
	return fall.Ellipse{
		Center: fall.Point{X: float64(rr.Center.X), Y: float64(rr.Center.Y)},
		Width:  float64(rr.Width),
		Height: float64(rr.Height),
		Angle:  rr.Angle,
	}
}
