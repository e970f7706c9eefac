// Package overlay checks the camera label burned into the top of a frame.
package overlay

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
	"github.com/disintegration/gift"
	"github.com/otiai10/gosseract/v2"

	"go-rivermind/internal/analyzer"
	apperrors "go-rivermind/internal/errors"
)

const (
	// MaxCharacterErrorRate is the highest CER still counted as a match
	MaxCharacterErrorRate = 0.25
	// DefaultBandRatio is the share of the frame height OCR looks at
	DefaultBandRatio = 0.15
)

// Result of comparing recognised overlay text with the expected label
type Result struct {
	Expected           string  `json:"expected"`
	Recognized         string  `json:"recognized"`
	CharacterErrorRate float64 `json:"character_error_rate"`
	WordErrorRate      float64 `json:"word_error_rate"`
	Matched            bool    `json:"matched"`
}

// TextRecognizer extracts text from an encoded image
type TextRecognizer interface {
	Recognize(encoded []byte) (string, error)
	Close() error
}

// TesseractRecognizer runs tesseract through gosseract. Calls are serialised
// because a client holds one image at a time.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractRecognizer creates a recogniser for the given language
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, apperrors.NewUnavailableError("Failed to set OCR language", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, apperrors.NewUnavailableError("Failed to set page segmentation mode", err)
	}
	return &TesseractRecognizer{client: client}, nil
}

// Recognize returns the text tesseract finds in encoded
func (t *TesseractRecognizer) Recognize(encoded []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(encoded); err != nil {
		return "", apperrors.NewProcessingError("Failed to set OCR image", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", apperrors.NewProcessingError("Failed to extract text", err)
	}
	return text, nil
}

// Close releases the tesseract client
func (t *TesseractRecognizer) Close() error {
	return t.client.Close()
}

// Verifier compares the overlay band of frames with expected labels
type Verifier struct {
	recognizer TextRecognizer
	bandRatio  float64
}

// NewVerifier creates a verifier reading the top DefaultBandRatio of each frame
func NewVerifier(recognizer TextRecognizer) *Verifier {
	return &Verifier{recognizer: recognizer, bandRatio: DefaultBandRatio}
}

// Verify OCRs the top band of frame and compares it with expected
func (v *Verifier) Verify(frame *analyzer.Frame, expected string) (Result, error) {
	if frame == nil {
		return Result{}, apperrors.NewInvalidFrameError("Frame is required", nil)
	}
	if normalize(expected) == "" {
		return Result{}, apperrors.NewValidationError("Expected label is required", nil)
	}

	encoded, err := encodeBand(frame.Image(), v.bandRatio)
	if err != nil {
		return Result{}, apperrors.NewProcessingError("Failed to encode overlay band", err)
	}
	text, err := v.recognizer.Recognize(encoded)
	if err != nil {
		return Result{}, err
	}
	return Compare(expected, text), nil
}

// Close releases the recogniser
func (v *Verifier) Close() error {
	return v.recognizer.Close()
}

// Compare scores recognised text against the expected label after
// lower-casing and collapsing whitespace
func Compare(expected, recognized string) Result {
	exp := normalize(expected)
	got := normalize(recognized)

	r := Result{Expected: exp, Recognized: got}
	r.CharacterErrorRate = characterErrorRate(exp, got)
	r.WordErrorRate = wordErrorRate(exp, got)
	r.Matched = exp != "" && r.CharacterErrorRate <= MaxCharacterErrorRate
	return r
}

func characterErrorRate(expected, recognized string) float64 {
	n := len([]rune(expected))
	if n == 0 {
		if recognized == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.Distance(expected, recognized)) / float64(n)
}

func wordErrorRate(expected, recognized string) float64 {
	ref := strings.Fields(expected)
	if len(ref) == 0 {
		if recognized == "" {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, strings.Fields(recognized))
	return rate
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func encodeBand(img *image.RGBA, ratio float64) ([]byte, error) {
	b := img.Bounds()
	h := int(float64(b.Dy()) * ratio)
	if h < 1 {
		h = 1
	}
	g := gift.New(gift.Crop(image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+h)))
	band := image.NewRGBA(g.Bounds(b))
	g.Draw(band, img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, band); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
