// Package events - This file contains the snapshot writer for confirmed falls.
package events

import (
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultSnapshotWidth is the thumbnail width in pixels.
const DefaultSnapshotWidth = 320

// SnapshotWriter stores JPEG thumbnails of frames.
type SnapshotWriter struct {
	Dir     string
	Width   uint
	Quality int

	// create opens the destination file. Nil uses os.Create.
	create func(path string) (io.WriteCloser, error)
}

// NewSnapshotWriter creates a writer for dir. A zero width uses DefaultSnapshotWidth.
func NewSnapshotWriter(dir string, width uint) *SnapshotWriter {
	if width == 0 {
		width = DefaultSnapshotWidth
	}
	return &SnapshotWriter{Dir: dir, Width: width, Quality: jpeg.DefaultQuality}
}

// Write saves mat as <name>.jpg and returns the file path.
func (w *SnapshotWriter) Write(mat gocv.Mat, name string) (string, error) {
	if mat.Empty() {
		return "", errors.New("cannot snapshot an empty frame")
	}
	img, err := mat.ToImage()
	if err != nil {
		return "", errors.Wrap(err, "convert frame to image")
	}
	return w.WriteImage(img, name)
}

// WriteImage resizes img to the writer width, keeping the aspect ratio, and saves it as
// <name>.jpg. Images narrower than the width are stored as is.
//
// Arguments:
//   - img: The frame to store.
//   - name: The file name without extension.
//
// Returns:
//   - string: The path written.
//   - error: An error if the directory or file cannot be written.
func (w *SnapshotWriter) WriteImage(img image.Image, name string) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create snapshot directory %q", w.Dir)
	}

	if uint(img.Bounds().Dx()) > w.Width {
		img = resize.Resize(w.Width, 0, img, resize.Lanczos3)
	}

	path := filepath.Join(w.Dir, name+".jpg")
	f, err := w.open(path)
	if err != nil {
		return "", errors.Wrapf(err, "create snapshot %q", path)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: w.Quality}); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "encode snapshot %q", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close snapshot %q", path)
	}
	return path, nil
}

func (w *SnapshotWriter) open(path string) (io.WriteCloser, error) {
	if w.create != nil {
		return w.create(path)
	}
	return os.Create(path)
}
