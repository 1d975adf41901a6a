// Package images - This file contains the contour finder that selects the dominant moving
// region of a foreground mask.
package images

import (
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/fall"
	"github.com/nvr-ai/go-falldetect/internal/log"
)

// DefaultMinContourArea is the area a region must strictly exceed to be tracked.
const DefaultMinContourArea = 500.0

// ContourFinder walks every contour of the mask, nested ones included, and keeps the largest.
type ContourFinder struct {
	MinArea float64
}

var _ controller.ContourFinder = ContourFinder{}

// Largest returns the points of the largest contour whose area is strictly greater than
// MinArea.
//
// Arguments:
//   - mask: The binary foreground mask.
//
// Returns:
//   - fall.Contour: The contour points, nil when nothing qualifies.
//   - bool: Whether a contour qualified.
func (f ContourFinder) Largest(mask fall.Mask) (fall.Contour, bool) {
	mat, err := MaskToMat(mask)
	if err != nil {
		log.Warn("invalid foreground mask", "error", err)
		return nil, false
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, false
	}
	return f.LargestInMat(mat)
}

// LargestInMat is Largest for a CV_8UC1 Mat.
func (f ContourFinder) LargestInMat(mat gocv.Mat) (fall.Contour, bool) {
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(mat, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	largest := f.MinArea
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > largest {
			largest = area
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return fall.Contour(contours.At(best).ToPoints()), true
}
