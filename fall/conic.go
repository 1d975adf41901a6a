// Package fall - This file contains a cgo-free direct least-squares ellipse fitter with
// sub-pixel output.
package fall

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DirectFitter fits the ellipse minimising the algebraic distance of the contour points to a
// general conic under the ellipse constraint 4AC - B² = 1, in the numerically stable
// partitioned form of the direct least-squares method.
//
// Center, Width and Height are returned at full float precision. Width is the minor axis,
// Height the major axis and Angle the direction of the minor axis in [0, 180) degrees,
// matching MomentsFitter. Inputs that admit no ellipse (too few or collinear points) fall
// back to MomentsFitter.
type DirectFitter struct{}

// FitEllipse implements EllipseFitter.
func (DirectFitter) FitEllipse(c Contour) Ellipse {
	if e, ok := fitConic(c); ok {
		return e
	}
	return MomentsFitter{}.FitEllipse(c)
}

// fitConic solves for the conic coefficients on points centred on their mean and scaled to
// unit extent, then maps the ellipse back to image coordinates.
func fitConic(c Contour) (Ellipse, bool) {
	n := len(c)
	if n < 5 {
		return Ellipse{}, false
	}

	var mx, my float64
	for _, p := range c {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	var scale float64
	for _, p := range c {
		scale = math.Max(scale, math.Abs(float64(p.X)-mx))
		scale = math.Max(scale, math.Abs(float64(p.Y)-my))
	}
	if scale == 0 {
		return Ellipse{}, false
	}

	quad := mat.NewDense(n, 3, nil)
	lin := mat.NewDense(n, 3, nil)
	for i, p := range c {
		x := (float64(p.X) - mx) / scale
		y := (float64(p.Y) - my) / scale
		quad.SetRow(i, []float64{x * x, x * y, y * y})
		lin.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(quad.T(), quad)
	s2.Mul(quad.T(), lin)
	s3.Mul(lin.T(), lin)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, false
	}

	// The linear coefficients follow from the quadratic ones: a2 = t·a1.
	var t mat.Dense
	t.Mul(&s3inv, s2.T())
	t.Scale(-1, &t)

	var m mat.Dense
	m.Mul(&s2, &t)
	m.Add(&s1, &m)

	// Premultiply by the inverse of the 3x3 constraint matrix.
	reduced := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		reduced.Set(0, j, m.At(2, j)/2)
		reduced.Set(1, j, -m.At(1, j))
		reduced.Set(2, j, m.At(0, j)/2)
	}

	var eig mat.Eigen
	if !eig.Factorize(reduced, mat.EigenRight) {
		return Ellipse{}, false
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	var a1 *mat.VecDense
	for j, v := range values {
		if imag(v) != 0 {
			continue
		}
		a, b, cc := real(vectors.At(0, j)), real(vectors.At(1, j)), real(vectors.At(2, j))
		if 4*a*cc-b*b > 0 {
			a1 = mat.NewVecDense(3, []float64{a, b, cc})
			break
		}
	}
	if a1 == nil {
		return Ellipse{}, false
	}

	var a2 mat.VecDense
	a2.MulVec(&t, a1)

	e, ok := conicToEllipse(a1.AtVec(0), a1.AtVec(1), a1.AtVec(2), a2.AtVec(0), a2.AtVec(1), a2.AtVec(2))
	if !ok {
		return Ellipse{}, false
	}

	e.Center = Point{X: e.Center.X*scale + mx, Y: e.Center.Y*scale + my}
	e.Width *= scale
	e.Height *= scale
	return e, true
}

// conicToEllipse converts A x² + B xy + C y² + D x + E y + F = 0 into center, axes and
// minor-axis direction.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, bool) {
	den := b*b - 4*a*c
	if den >= 0 {
		return Ellipse{}, false
	}

	x0 := (2*c*d - b*e) / den
	y0 := (2*a*e - b*d) / den
	f0 := a*x0*x0 + b*x0*y0 + c*y0*y0 + d*x0 + e*y0 + f

	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{a, b / 2, b / 2, c}), true) {
		return Ellipse{}, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Squared semi-axis along each eigenvector.
	r0, r1 := -f0/values[0], -f0/values[1]
	if !(r0 > 0) || !(r1 > 0) {
		return Ellipse{}, false
	}

	minor, major, col := r0, r1, 0
	if r1 < r0 {
		minor, major, col = r1, r0, 1
	}

	angle := math.Atan2(vectors.At(1, col), vectors.At(0, col)) * 180 / math.Pi
	angle = math.Mod(angle+360, 180)

	return Ellipse{
		Center: Point{X: x0, Y: y0},
		Width:  2 * math.Sqrt(minor),
		Height: 2 * math.Sqrt(major),
		Angle:  angle,
	}, true
}
