// Package decoder turns uploaded bytes and video files into analyzer frames.
package decoder

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-rivermind/internal/analyzer"
	apperrors "go-rivermind/internal/errors"
)

// ImageFormats lists the still formats DecodeImage understands
var ImageFormats = []string{"jpeg", "png", "gif", "bmp", "webp", "tiff"}

// VideoExtensions lists accepted video upload extensions
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// DecodeImage decodes an encoded still image into a frame and reports its format
func DecodeImage(data []byte) (*analyzer.Frame, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.NewInvalidFrameError("Empty image data", nil)
	}
	return DecodeImageReader(bytes.NewReader(data))
}

// DecodeImageReader decodes a still image from r
func DecodeImageReader(r io.Reader) (*analyzer.Frame, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", apperrors.NewInvalidFrameError("Failed to decode image", err)
	}
	frame, err := analyzer.NewFrame(img)
	if err != nil {
		return nil, format, apperrors.NewInvalidFrameError("Decoded image is empty", err)
	}
	return frame, format, nil
}

// IsVideoFile reports whether name carries an accepted video extension
func IsVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}
