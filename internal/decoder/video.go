package decoder

import (
	"context"
	"errors"
	"io"

	"gocv.io/x/gocv"

	"go-rivermind/internal/analyzer"
	apperrors "go-rivermind/internal/errors"
)

// FrameSource yields frames in order. Next returns io.EOF once exhausted.
type FrameSource interface {
	Next() (*analyzer.Frame, error)
	Close() error
}

// Opener opens a FrameSource for a file path
type Opener func(path string) (FrameSource, error)

// VideoReader reads frames from a video file through OpenCV
type VideoReader struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenVideo opens a video file. A file OpenCV cannot open is an invalid frame error.
func OpenVideo(path string) (FrameSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, apperrors.NewInvalidFrameError("Could not open video file", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, apperrors.NewInvalidFrameError("Could not open video file", nil)
	}
	return &VideoReader{capture: capture, mat: gocv.NewMat()}, nil
}

// Next decodes the next frame
func (v *VideoReader) Next() (*analyzer.Frame, error) {
	if !v.capture.Read(&v.mat) || v.mat.Empty() {
		return nil, io.EOF
	}
	img, err := v.mat.ToImage()
	if err != nil {
		return nil, apperrors.NewInvalidFrameError("Failed to convert video frame", err)
	}
	frame, err := analyzer.NewFrame(img)
	if err != nil {
		return nil, apperrors.NewInvalidFrameError("Empty video frame", err)
	}
	return frame, nil
}

// FrameCount returns the container's frame count estimate, or -1 if unknown
func (v *VideoReader) FrameCount() int {
	n := int(v.capture.Get(gocv.VideoCaptureFrameCount))
	if n <= 0 {
		return -1
	}
	return n
}

// Close releases the capture and its buffer
func (v *VideoReader) Close() error {
	v.mat.Close()
	return v.capture.Close()
}

// SampleOptions controls which frames Sample hands out
type SampleOptions struct {
	// Stride keeps every Stride-th frame, starting with the first
	Stride int
	// MaxFrames stops after this many kept frames; 0 means no limit
	MaxFrames int
}

// Sample walks src and calls fn for every kept frame with its source index.
// It returns the number of frames passed to fn. A source whose first read
// fails is an invalid frame error, one that yields nothing is an empty stream.
func Sample(ctx context.Context, src FrameSource, opts SampleOptions, fn func(index int, frame *analyzer.Frame) error) (int, error) {
	stride := opts.Stride
	if stride < 1 {
		stride = 1
	}

	kept := 0
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return kept, apperrors.NewTimeoutError("Video analysis cancelled", err)
		}
		if opts.MaxFrames > 0 && kept >= opts.MaxFrames {
			return kept, nil
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if index == 0 {
				return 0, apperrors.NewInvalidFrameError("Could not read first video frame", err)
			}
			return kept, err
		}
		if index%stride != 0 {
			continue
		}
		if err := fn(index, frame); err != nil {
			return kept, err
		}
		kept++
	}

	if kept == 0 {
		return 0, apperrors.NewEmptyStreamError("Video contains no frames", nil)
	}
	return kept, nil
}
