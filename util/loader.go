// Package util - This file contains the frame-directory loader and the frame source that
// replays a directory of numbered stills as a video.
package util

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-falldetect/controller"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
}

// FrameNumber parses the N out of a "frame-N.ext" file name.
func FrameNumber(name string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame-"))
	if err != nil {
		return 0, errors.Wrapf(err, "file %q is not named frame-N", name)
	}
	return n, nil
}

// LoadDirectoryImageFiles reads all image files from a directory, ordered by frame number.
//
// Arguments:
// - dir: Directory path containing frame-N image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %q", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(file.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			frame, err := FrameNumber(file.Name())
			if err != nil {
				return nil, err
			}
			imgPath := filepath.Join(dir, file.Name())
			data, err := os.ReadFile(imgPath)
			if err != nil {
				return nil, errors.Wrapf(err, "read frame %q", imgPath)
			}
			images = append(images, ImageFile{
				Path:  imgPath,
				Data:  data,
				Frame: frame,
			})
		}
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}

// DirectorySource replays loaded stills as a rewindable frame source.
type DirectorySource struct {
	files    []ImageFile
	pos      int
	interval time.Duration
	start    time.Time
}

var _ controller.FrameSource = (*DirectorySource)(nil)

// OpenDirectory loads every frame of dir into memory.
//
// Arguments:
// - dir: Directory of frame-N stills.
// - fps: Nominal rate used to timestamp frames. Non-positive means 30.
//
// Returns:
// - *DirectorySource: The source positioned on the first frame.
// - error: Error if the directory cannot be loaded or holds no frames.
//
// @example
// src, err := util.OpenDirectory("testdata/fall", 30)
// frame, err := src.Read()
func OpenDirectory(dir string, fps float64) (*DirectorySource, error) {
	files, err := LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frames in %q", dir)
	}
	if fps <= 0 {
		fps = 30
	}
	return &DirectorySource{
		files:    files,
		interval: time.Duration(float64(time.Second) / fps),
		start:    time.Now(),
	}, nil
}

// Len returns the number of frames.
func (d *DirectorySource) Len() int {
	return len(d.files)
}

// Read decodes the next still. Timestamps advance by the nominal frame interval.
func (d *DirectorySource) Read() (controller.Frame, error) {
	if d.pos >= len(d.files) {
		return controller.Frame{}, io.EOF
	}
	file := d.files[d.pos]

	mat, err := gocv.IMDecode(file.Data, gocv.IMReadColor)
	if err != nil {
		return controller.Frame{}, errors.Wrapf(err, "decode frame %q", file.Path)
	}
	if mat.Empty() {
		mat.Close()
		return controller.Frame{}, errors.Errorf("frame %q decoded to an empty image", file.Path)
	}

	frame := controller.Frame{
		ID:        file.Frame,
		Image:     mat,
		Timestamp: d.start.Add(time.Duration(d.pos) * d.interval),
		Release:   func() { mat.Close() },
	}
	d.pos++
	return frame, nil
}

// Rewind restarts at the first frame. Timestamps keep increasing across rewinds.
func (d *DirectorySource) Rewind() error {
	d.start = d.start.Add(time.Duration(len(d.files)) * d.interval)
	d.pos = 0
	return nil
}

// Close drops the loaded frames.
func (d *DirectorySource) Close() error {
	d.files = nil
	d.pos = 0
	return nil
}
