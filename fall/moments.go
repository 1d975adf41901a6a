// Package fall - This file contains a cgo-free ellipse fitter based on region moments.
package fall

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MomentsFitter fits the ellipse whose second moments match the region enclosed by a
// contour.
//
// Width is the minor axis, Height the major axis and Angle the direction of the
// minor axis in [0, 180) degrees, so an upright blob reads close to 0 and a blob
// lying on its side close to 90. Degenerate contours with no enclosed area fall
// back to the moments of the boundary points.
type MomentsFitter struct{}

// FitEllipse implements EllipseFitter.
func (MomentsFitter) FitEllipse(c Contour) Ellipse {
	if len(c) == 0 {
		return Ellipse{}
	}

	cx, cy, mu20, mu11, mu02, ok := polygonMoments(c)
	if !ok {
		cx, cy, mu20, mu11, mu02 = pointMoments(c)
	}

	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{mu20, mu11, mu11, mu02}), true) {
		return Ellipse{Center: Point{X: cx, Y: cy}}
	}
	values := eig.Values(nil) // ascending
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// A solid ellipse with semi-axis s has variance s²/4 along that axis.
	minor := 4 * math.Sqrt(math.Max(values[0], 0))
	major := 4 * math.Sqrt(math.Max(values[1], 0))

	angle := math.Atan2(vectors.At(1, 0), vectors.At(0, 0)) * 180 / math.Pi
	angle = math.Mod(angle+360, 180)

	return Ellipse{
		Center: Point{X: cx, Y: cy},
		Width:  minor,
		Height: major,
		Angle:  angle,
	}
}

// polygonMoments integrates the raw moments of the polygon c with Green's theorem
// and returns its centroid and central second moments normalised by area.
func polygonMoments(c Contour) (cx, cy, mu20, mu11, mu02 float64, ok bool) {
	var m00, m10, m01, m20, m11, m02 float64
	n := len(c)
	for i := 0; i < n; i++ {
		x0, y0 := float64(c[i].X), float64(c[i].Y)
		x1, y1 := float64(c[(i+1)%n].X), float64(c[(i+1)%n].Y)
		cross := x0*y1 - x1*y0

		m00 += cross
		m10 += (x0 + x1) * cross
		m01 += (y0 + y1) * cross
		m20 += (x0*x0 + x0*x1 + x1*x1) * cross
		m02 += (y0*y0 + y0*y1 + y1*y1) * cross
		m11 += (x0*y1 + 2*x0*y0 + 2*x1*y1 + x1*y0) * cross
	}
	m00 /= 2
	if math.Abs(m00) < 1e-9 {
		return 0, 0, 0, 0, 0, false
	}
	m10 /= 6
	m01 /= 6
	m20 /= 12
	m02 /= 12
	m11 /= 24

	cx, cy = m10/m00, m01/m00
	mu20 = m20/m00 - cx*cx
	mu02 = m02/m00 - cy*cy
	mu11 = m11/m00 - cx*cy
	return cx, cy, mu20, mu11, mu02, true
}

// pointMoments treats the contour as a point cloud.
func pointMoments(c Contour) (cx, cy, mu20, mu11, mu02 float64) {
	n := float64(len(c))
	for _, p := range c {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= n
	cy /= n
	for _, p := range c {
		dx, dy := float64(p.X)-cx, float64(p.Y)-cy
		mu20 += dx * dx
		mu11 += dx * dy
		mu02 += dy * dy
	}
	return cx, cy, mu20 / n, mu11 / n, mu02 / n
}
