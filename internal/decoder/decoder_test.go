package decoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"golang.org/x/image/bmp"

	"go-rivermind/internal/analyzer"
	apperrors "go-rivermind/internal/errors"
)

func encodedImage(t *testing.T, encode func(io.Writer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    apperrors.ErrorType
	}{
		{"png", encodedImage(t, png.Encode), "png", ""},
		{"bmp", encodedImage(t, bmp.Encode), "bmp", ""},
		{"empty", nil, "", apperrors.ErrorTypeInvalidFrame},
		{"garbage", []byte("definitely not an image"), "", apperrors.ErrorTypeInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, format, err := DecodeImage(tt.data)
			if tt.wantErr != "" {
				if !apperrors.IsType(err, tt.wantErr) {
					t.Fatalf("Expected %s error, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("Expected format %s, got %s", tt.wantFormat, format)
			}
			if frame.Width() != 6 || frame.Height() != 4 {
				t.Errorf("Expected 6x4 frame, got %s", frame.Size())
			}
		})
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := map[string]bool{
		"river.mp4":   true,
		"CLIP.MOV":    true,
		"a.b.mkv":     true,
		"capture.avi": true,
		"frame.png":   false,
		"noext":       false,
	}
	for name, want := range tests {
		if got := IsVideoFile(name); got != want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", name, got, want)
		}
	}
}

type fakeSource struct {
	frames  int
	failAt  int
	next    int
	closed  bool
	failErr error
}

func (f *fakeSource) Next() (*analyzer.Frame, error) {
	if f.failErr != nil && f.next == f.failAt {
		return nil, f.failErr
	}
	if f.next >= f.frames {
		return nil, io.EOF
	}
	f.next++
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{uint8(f.next), 0, 0, 255})
	return analyzer.NewFrame(img)
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestSample(t *testing.T) {
	tests := []struct {
		name        string
		frames      int
		opts        SampleOptions
		wantIndexes []int
	}{
		{"every frame", 4, SampleOptions{Stride: 1}, []int{0, 1, 2, 3}},
		{"stride", 7, SampleOptions{Stride: 3}, []int{0, 3, 6}},
		{"max frames", 10, SampleOptions{Stride: 2, MaxFrames: 2}, []int{0, 2}},
		{"zero stride", 2, SampleOptions{}, []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			n, err := Sample(context.Background(), &fakeSource{frames: tt.frames}, tt.opts, func(i int, _ *analyzer.Frame) error {
				got = append(got, i)
				return nil
			})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if n != len(tt.wantIndexes) || len(got) != len(tt.wantIndexes) {
				t.Fatalf("Expected %v, got %v (n=%d)", tt.wantIndexes, got, n)
			}
			for i := range got {
				if got[i] != tt.wantIndexes[i] {
					t.Errorf("Expected %v, got %v", tt.wantIndexes, got)
					break
				}
			}
		})
	}
}

func TestSample_Errors(t *testing.T) {
	noop := func(int, *analyzer.Frame) error { return nil }

	if _, err := Sample(context.Background(), &fakeSource{}, SampleOptions{Stride: 1}, noop); !apperrors.IsType(err, apperrors.ErrorTypeEmptyStream) {
		t.Errorf("Expected empty stream error, got %v", err)
	}

	broken := &fakeSource{frames: 3, failAt: 0, failErr: errors.New("corrupt")}
	if _, err := Sample(context.Background(), broken, SampleOptions{Stride: 1}, noop); !apperrors.IsType(err, apperrors.ErrorTypeInvalidFrame) {
		t.Errorf("Expected invalid frame error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Sample(ctx, &fakeSource{frames: 3}, SampleOptions{Stride: 1}, noop); !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Errorf("Expected timeout error, got %v", err)
	}

	stop := errors.New("stop")
	n, err := Sample(context.Background(), &fakeSource{frames: 5}, SampleOptions{Stride: 1}, func(i int, _ *analyzer.Frame) error {
		if i == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 2 {
		t.Errorf("Expected callback error after 2 frames, got n=%d err=%v", n, err)
	}
}

func TestOpenVideo_Missing(t *testing.T) {
	if _, err := OpenVideo("/nonexistent/river.mp4"); !apperrors.IsType(err, apperrors.ErrorTypeInvalidFrame) {
		t.Errorf("Expected invalid frame error, got %v", err)
	}
}
