package ocr

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	statePending int32 = iota
	stateReady
	stateUnavailable
)

// Engine is the process-wide handle to the recognition capability. The
// underlying recognizer is built once, either eagerly through Init or on the
// first Recognize call, and shared by all requests afterwards.
type Engine struct {
	factory Factory
	logger  *slog.Logger

	once       sync.Once
	state      atomic.Int32
	recognizer TextRecognizer
	initErr    error
}

// NewEngine creates an engine handle. Nothing is loaded until Init or
// Recognize is called.
func NewEngine(factory Factory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{factory: factory, logger: logger}
}

// Init loads the recognizer if that has not happened yet and returns the
// outcome of the one and only initialization attempt.
func (e *Engine) Init() error {
	e.once.Do(e.initialize)
	return e.initErr
}

func (e *Engine) initialize() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.recognizer = nil
			e.initErr = fmt.Errorf("%w: initialization panicked: %v", ErrEngineUnavailable, r)
		}
		if e.initErr != nil {
			e.state.Store(stateUnavailable)
			e.logger.Error("ocr engine initialization failed", "error", e.initErr)
			return
		}
		e.state.Store(stateReady)
		e.logger.Info("ocr engine ready", "elapsed", time.Since(start))
	}()

	if e.factory == nil {
		e.initErr = fmt.Errorf("%w: no recognizer configured", ErrEngineUnavailable)
		return
	}
	recognizer, err := e.factory()
	if err != nil {
		e.initErr = fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
		return
	}
	if recognizer == nil {
		e.initErr = fmt.Errorf("%w: factory returned no recognizer", ErrEngineUnavailable)
		return
	}
	e.recognizer = recognizer
}

// Status reports whether the engine is loaded, failed, or not yet tried.
func (e *Engine) Status() Status {
	switch e.state.Load() {
	case stateReady:
		return StatusReady
	case stateUnavailable:
		return StatusUnavailable
	default:
		return StatusPending
	}
}

// Ready initializes the engine if needed and reports whether it can serve
// recognition requests.
func (e *Engine) Ready() bool {
	return e.Init() == nil
}

// Recognize runs the shared recognizer on img. It returns
// ErrEngineUnavailable without touching the recognizer when initialization
// failed, and wraps per-call failures in ErrRecognitionFailed. The call
// returns when ctx is done even if the recognizer is still busy.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	if err := e.Init(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrRecognitionFailed)
	}

	type outcome struct {
		fragments []string
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("recognizer panicked: %v", r)}
			}
		}()
		fragments, err := e.recognizer.Recognize(ctx, img)
		done <- outcome{fragments: fragments, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRecognitionFailed, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRecognitionFailed, out.err)
		}
		return out.fragments, nil
	}
}

// Close releases the recognizer if it was loaded and holds resources.
func (e *Engine) Close() error {
	if e.state.Load() != stateReady {
		return nil
	}
	if c, ok := e.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ TextRecognizer = (*Engine)(nil)
