package ocr

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrEngineUnavailable is returned for every request once the engine
	// failed to initialize. The process must be restarted to retry.
	ErrEngineUnavailable = errors.New("ocr engine not ready")

	// ErrRecognitionFailed wraps failures of a single recognition call.
	ErrRecognitionFailed = errors.New("text recognition failed")

	// ErrTesseractNotBuilt is the init error of binaries built without the
	// tesseract tag.
	ErrTesseractNotBuilt = errors.New("built without tesseract support (rebuild with -tags tesseract)")
)

// TextRecognizer turns pixel data into recognized text fragments, ordered
// as the underlying model produced them.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]string, error)
}

// Factory builds a TextRecognizer. It is expected to be expensive (model
// load) and is called at most once per Engine.
type Factory func() (TextRecognizer, error)

// Status reports the initialization state of an Engine.
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)
