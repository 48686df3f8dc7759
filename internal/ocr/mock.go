package ocr

import (
	"context"
	"image"
	"sync/atomic"
	"time"
)

// MockRecognizer is a TextRecognizer for testing.
type MockRecognizer struct {
	Fragments []string
	Err       error
	Latency   time.Duration

	calls atomic.Int64
}

// Recognize returns the configured fragments or error.
func (m *MockRecognizer) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	m.calls.Add(1)
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.Fragments...), nil
}

// Calls returns the number of Recognize calls made.
func (m *MockRecognizer) Calls() int64 {
	return m.calls.Load()
}

// StaticFactory returns a Factory that always yields r.
func StaticFactory(r TextRecognizer) Factory {
	return func() (TextRecognizer, error) { return r, nil }
}

// FailingFactory returns a Factory that always fails with err.
func FailingFactory(err error) Factory {
	return func() (TextRecognizer, error) { return nil, err }
}

var _ TextRecognizer = (*MockRecognizer)(nil)
