package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runelight-sys/LyroDocs/internal/models"
	"github.com/runelight-sys/LyroDocs/internal/ocr"
)

// ProgressCallback is called as an analysis moves through its stages.
type ProgressCallback func(step, message string, current, total int)

// User-facing messages for failures before the analysis is displayed.
const (
	EngineUnavailableMessage = "OCR engine is not ready. Restart the service and try again."
	RecognitionFailedMessage = "Text recognition failed for this image. Please try another photo."
)

// RecognitionEngine is the shared recognition handle the pipeline reads from.
type RecognitionEngine interface {
	ocr.TextRecognizer
	Init() error
	Status() ocr.Status
}

// Completer produces analysis text for a prompt.
type Completer interface {
	Complete(ctx context.Context, system, user, model string) (string, error)
	Model() string
}

// Pipeline runs recognition, prompt composition and completion for one
// uploaded image.
type Pipeline struct {
	engine     RecognitionEngine
	completer  Completer
	logger     *slog.Logger
	ocrTimeout time.Duration
}

func NewPipeline(engine RecognitionEngine, completer Completer, logger *slog.Logger, ocrTimeout time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine:     engine,
		completer:  completer,
		logger:     logger,
		ocrTimeout: ocrTimeout,
	}
}

// EngineReady reports whether recognition can run, initializing the engine
// on first use.
func (p *Pipeline) EngineReady() bool {
	return p.engine.Init() == nil
}

// EngineStatus reports the engine state without triggering initialization.
func (p *Pipeline) EngineStatus() ocr.Status {
	return p.engine.Status()
}

// Analyze runs the whole pipeline.
func (p *Pipeline) Analyze(ctx context.Context, upload *models.UploadedImage) (*models.AnalysisResult, error) {
	return p.AnalyzeWithProgress(ctx, upload, nil)
}

// AnalyzeWithProgress runs the whole pipeline and reports stage changes.
//
// A non-nil error means the pipeline stopped before anything could be
// displayed (engine unavailable, recognition failure). A completion failure
// is not returned as an error: the result keeps the recognized text and
// carries the failure in ErrorMessage/Err, and is not exportable.
func (p *Pipeline) AnalyzeWithProgress(ctx context.Context, upload *models.UploadedImage, progress ProgressCallback) (*models.AnalysisResult, error) {
	if progress == nil {
		progress = func(string, string, int, int) {}
	}
	if upload == nil || upload.Image == nil {
		return nil, errors.New("no image loaded")
	}

	result := &models.AnalysisResult{
		Stage:          models.StageImageLoaded,
		Width:          upload.Width(),
		Height:         upload.Height(),
		OriginalWidth:  upload.OriginalWidth,
		OriginalHeight: upload.OriginalHeight,
	}
	logger := p.logger.With("image", upload.Name)
	progress(string(models.StageImageLoaded), "Image loaded", 10, 100)

	if err := p.engine.Init(); err != nil {
		result.Stage = models.StageEngineUnavailable
		result.ErrorMessage = EngineUnavailableMessage
		result.Err = err
		logger.Warn("skipping analysis, ocr engine unavailable", "error", err)
		return result, err
	}

	result.Stage = models.StageRecognizing
	progress(string(models.StageRecognizing), "Lyro is scanning...", 20, 100)
	fragments, err := p.recognize(ctx, upload)
	if err != nil {
		result.ErrorMessage = RecognitionFailedMessage
		result.Err = err
		logger.Error("text recognition failed", "error", err)
		return result, err
	}
	result.RecognizedText = JoinFragments(fragments)
	logger.Debug("text recognized", "fragments", len(fragments), "chars", len(result.RecognizedText))

	result.Stage = models.StageComposing
	progress(string(models.StageComposing), "Composing prompt", 50, 100)
	prompt := ComposePrompt(result.RecognizedText)

	result.Stage = models.StageCompleting
	progress(string(models.StageCompleting), "Requesting analysis", 60, 100)
	start := time.Now()
	analysis, err := p.completer.Complete(ctx, prompt.System, prompt.User, p.completer.Model())
	result.Stage = models.StageDisplayed
	if err != nil {
		result.ErrorMessage = CompletionUserMessage
		result.ErrorKind = string(CompletionKind(err))
		result.Err = err
		logger.Error("completion failed", "kind", result.ErrorKind, "error", err)
		progress(string(models.StageDisplayed), "Analysis failed", 100, 100)
		return result, nil
	}
	result.Analysis = analysis
	logger.Info("analysis complete", "model", p.completer.Model(), "elapsed", time.Since(start))
	progress(string(models.StageDisplayed), "Analysis complete", 100, 100)
	return result, nil
}

func (p *Pipeline) recognize(ctx context.Context, upload *models.UploadedImage) ([]string, error) {
	if p.ocrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ocrTimeout)
		defer cancel()
	}
	fragments, err := p.engine.Recognize(ctx, upload.Image)
	if err != nil {
		if errors.Is(err, ocr.ErrRecognitionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ocr.ErrRecognitionFailed, err)
	}
	return fragments, nil
}
