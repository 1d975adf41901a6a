// Package images - This file contains conversions between gocv matrices and the
// plain rasters the fall tracker consumes.
package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/fall"
)

// MatToMask copies a single channel 8-bit Mat into a fall.Mask.
//
// Arguments:
//   - mat: A CV_8UC1 matrix, typically a foreground mask.
//
// Returns:
//   - fall.Mask: A copy of the pixels, independent of mat.
//   - error: An error if the Mat has the wrong type.
func MatToMask(mat gocv.Mat) (fall.Mask, error) {
	if mat.Empty() {
		return fall.Mask{}, nil
	}
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fall.Mask{}, errors.Errorf("mask must be CV_8UC1, got %v", mat.Type())
	}
	data, err := mat.DataPtrUint8()
	if err != nil {
		return fall.Mask{}, errors.Wrap(err, "read mask pixels")
	}
	return fall.Mask{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Pix:    append([]uint8(nil), data...),
	}, nil
}

// MaskToMat builds a CV_8UC1 Mat from a fall.Mask. The caller must close it.
func MaskToMat(mask fall.Mask) (gocv.Mat, error) {
	if len(mask.Pix) != mask.Width*mask.Height {
		return gocv.NewMat(), errors.Errorf("mask is %dx%d but has %d pixels", mask.Width, mask.Height, len(mask.Pix))
	}
	if len(mask.Pix) == 0 {
		return gocv.NewMat(), nil
	}
	mat, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, mask.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "build mask mat")
	}
	return mat, nil
}

// MatToHistory copies a CV_32FC1 Mat into a fall.History.
func MatToHistory(mat gocv.Mat) (fall.History, error) {
	if mat.Empty() {
		return fall.History{}, nil
	}
	if mat.Type() != gocv.MatTypeCV32FC1 {
		return fall.History{}, errors.Errorf("history must be CV_32FC1, got %v", mat.Type())
	}
	data, err := mat.DataPtrFloat32()
	if err != nil {
		return fall.History{}, errors.Wrap(err, "read history pixels")
	}
	return fall.History{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Pix:    append([]float32(nil), data...),
	}, nil
}
