//go:build cgo && tesseract

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer recognizes text lines with a single long-lived
// gosseract client. The client is not safe for concurrent use, so calls are
// serialized.
type TesseractRecognizer struct {
	mu       sync.Mutex
	client   *gosseract.Client
	language string
}

// NewTesseractRecognizer loads the Tesseract model for lang and runs a
// warm-up recognition so missing traineddata is reported here instead of on
// the first request.
func NewTesseractRecognizer(lang string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	language := TesseractLanguage(lang)
	if err := client.SetLanguage(language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language %s: %w", language, err)
	}

	warmup, err := blankPNG()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.SetImageFromBytes(warmup); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set warm-up image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("load tesseract model %s: %w", language, err)
	}

	return &TesseractRecognizer{client: client, language: language}, nil
}

// TesseractFactory returns a Factory that builds a TesseractRecognizer.
func TesseractFactory(lang string) Factory {
	return func() (TextRecognizer, error) {
		return NewTesseractRecognizer(lang)
	}
}

func (t *TesseractRecognizer) Language() string { return t.language }

// Recognize returns the recognized text lines of img, top to bottom.
// Bounding boxes and confidences are dropped.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.client == nil {
		return nil, errors.New("recognizer closed")
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text lines: %w", err)
	}

	fragments := make([]string, 0, len(boxes))
	for _, box := range boxes {
		if text := strings.TrimSpace(box.Word); text != "" {
			fragments = append(fragments, text)
		}
	}
	return fragments, nil
}

// Close releases the Tesseract client.
func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func blankPNG() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = color.White.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode warm-up image: %w", err)
	}
	return buf.Bytes(), nil
}
