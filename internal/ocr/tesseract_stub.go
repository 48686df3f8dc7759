//go:build !cgo || !tesseract

package ocr

import "fmt"

// TesseractFactory returns a Factory that always fails: this binary has no
// Tesseract bindings. The engine reports itself unavailable.
func TesseractFactory(lang string) Factory {
	return func() (TextRecognizer, error) {
		return nil, fmt.Errorf("%w: language %s", ErrTesseractNotBuilt, TesseractLanguage(lang))
	}
}
