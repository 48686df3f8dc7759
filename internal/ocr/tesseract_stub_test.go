//go:build !cgo || !tesseract

package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestTesseractFactoryWithoutBindings(t *testing.T) {
	engine := NewEngine(TesseractFactory("en"), quietLogger())

	err := engine.Init()
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if !errors.Is(err, ErrTesseractNotBuilt) {
		t.Fatalf("expected the missing-bindings cause to be kept, got %v", err)
	}
	if engine.Status() != StatusUnavailable {
		t.Fatalf("status = %s, want unavailable", engine.Status())
	}
	if _, err := engine.Recognize(context.Background(), testImage()); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable from Recognize, got %v", err)
	}
}
