// Package fall - This file contains the shape extractor that turns the dominant contour
// into ellipse samples for the rolling windows.
package fall

import "image"

// DefaultMinEllipsePoints is the smallest contour an ellipse can be fitted to.
const DefaultMinEllipsePoints = 6

// Contour is the ordered boundary of one connected foreground region.
type Contour []image.Point

// Point is a sub-pixel position.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Ellipse is a best-fit ellipse in the convention of the fitter that produced it.
//
// Width and Height are full axis lengths and Angle is in degrees. No
// canonicalisation is applied to Angle.
type Ellipse struct {
	Center Point   `json:"center" yaml:"center"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Angle  float64 `json:"angle" yaml:"angle"`
}

// SemiA returns half of the ellipse width.
func (e Ellipse) SemiA() float64 { return e.Width / 2 }

// SemiB returns half of the ellipse height.
func (e Ellipse) SemiB() float64 { return e.Height / 2 }

// EllipseFitter fits an ellipse to a contour with at least DefaultMinEllipsePoints points.
type EllipseFitter interface {
	FitEllipse(c Contour) Ellipse
}

// Shape is the per-frame projection of the dominant contour.
type Shape struct {
	// Bounds is the axis-aligned bounding rectangle, used for annotation only.
	Bounds image.Rectangle
	// Ellipse is valid only when Fitted is true.
	Ellipse Ellipse
	Fitted  bool
}

// ShapeExtractor derives bounds and ellipse parameters from a contour.
type ShapeExtractor struct {
	Fitter    EllipseFitter
	MinPoints int
}

// NewShapeExtractor returns an extractor using fitter and the default point floor.
func NewShapeExtractor(fitter EllipseFitter) *ShapeExtractor {
	return &ShapeExtractor{Fitter: fitter, MinPoints: DefaultMinEllipsePoints}
}

// Extract projects c onto a Shape.
//
// The bounding rectangle is always computed. The ellipse is only fitted when the
// contour has enough points; otherwise Fitted is false and the caller must not
// update any statistics for this frame.
//
// Arguments:
//   - c: The dominant contour for the frame, possibly empty.
//
// Returns:
//   - Shape: Bounds and, when available, the fitted ellipse.
func (se *ShapeExtractor) Extract(c Contour) Shape {
	shape := Shape{Bounds: BoundingRect(c)}

	minPoints := se.MinPoints
	if minPoints < DefaultMinEllipsePoints {
		minPoints = DefaultMinEllipsePoints
	}
	if len(c) < minPoints || se.Fitter == nil {
		return shape
	}

	shape.Ellipse = se.Fitter.FitEllipse(c)
	shape.Fitted = true
	return shape
}

// BoundingRect returns the smallest rectangle containing every point of c.
// Like OpenCV the rectangle includes its last row and column.
func BoundingRect(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}
