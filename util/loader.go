// Package util loads picture files for batch detection.
package util

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/models/model/preprocess"
)

// framePrefix names frames extracted from a video, e.g. frame-0042.jpg.
const framePrefix = "frame-"

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the encoding inferred from the file extension.
	Format preprocess.ImageFormat
	// Frame is the frame number parsed from the file name, or -1.
	Frame int
}

// FormatFromPath infers the image encoding from a file extension.
//
// Returns:
// - The format, and false when the extension is not a supported image type.
func FormatFromPath(path string) (preprocess.ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return preprocess.ImageFormatJPEG, true
	case ".png":
		return preprocess.ImageFormatPNG, true
	case ".webp":
		return preprocess.ImageFormatWebP, true
	}
	return "", false
}

// frameNumber parses "frame-12.jpg" or "12.jpg" into 12, and anything else into -1.
func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	frame, err := strconv.Atoi(strings.TrimPrefix(base, framePrefix))
	if err != nil || frame < 0 {
		return -1
	}
	return frame
}

// LoadImageFile reads a single image file.
//
// Arguments:
// - path: The image path. Its extension must be jpg, jpeg, png or webp.
//
// Returns:
// - ImageFile: The file contents.
// - error: Error if the extension is unsupported or the file cannot be read.
func LoadImageFile(path string) (ImageFile, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return ImageFile{}, errors.Errorf("unsupported image extension: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}

	return ImageFile{
		Path:   path,
		Data:   data,
		Format: format,
		Frame:  frameNumber(filepath.Base(path)),
	}, nil
}

// Decode decodes the file contents.
func (f ImageFile) Decode() (image.Image, error) {
	img, err := preprocess.Decode(&preprocess.Image{Format: f.Format, Data: f.Data})
	if err != nil {
		return nil, errors.Wrap(err, f.Path)
	}
	return img, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files named by frame number come first in frame order, followed by the
// remaining files in name order. Subdirectories and other files are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	images := []ImageFile{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(file.Name()); !ok {
			continue
		}

		img, err := LoadImageFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0 || b.Frame >= 0:
			return a.Frame >= 0
		default:
			return a.Path < b.Path
		}
	})

	return images, nil
}
