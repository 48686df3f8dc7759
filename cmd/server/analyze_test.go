package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/runelight-sys/LyroDocs/internal/ocr"
	"github.com/runelight-sys/LyroDocs/internal/services"
)

type stubCompleter struct {
	text string
	err  error
}

func (c stubCompleter) Complete(ctx context.Context, system, user, model string) (string, error) {
	return c.text, c.err
}

func (c stubCompleter) Model() string { return "llama-3.3-70b-versatile" }

func testRuntime(factory ocr.Factory, completer services.Completer) func() (*runtime, error) {
	return func() (*runtime, error) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine := ocr.NewEngine(factory, logger)
		return &runtime{
			logger:   logger,
			engine:   engine,
			pipeline: services.NewPipeline(engine, completer, logger, 0),
		}, nil
	}
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func runAnalyze(t *testing.T, build func() (*runtime, error), args ...string) (string, error) {
	t.Helper()
	cmd := newAnalyzeCmd(build)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommandWritesExport(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir)
	outPath := filepath.Join(dir, "lyro_analysis.txt")
	build := testRuntime(
		ocr.StaticFactory(&ocr.MockRecognizer{Fragments: []string{"JOHN DOE", "ID12345"}}),
		stubCompleter{text: "Name: John Doe"},
	)

	stdout, err := runAnalyze(t, build, img, "--out", outPath)
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	if !strings.Contains(stdout, "Raw text:\nJOHN DOE ID12345") {
		t.Errorf("missing raw text in output %q", stdout)
	}
	if !strings.Contains(stdout, "Analysis:\nName: John Doe") {
		t.Errorf("missing analysis in output %q", stdout)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(got) != "Name: John Doe" {
		t.Fatalf("export = %q, want exactly the analysis", got)
	}
}

func TestAnalyzeCommandCompletionFailure(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir)
	outPath := filepath.Join(dir, "lyro_analysis.txt")
	build := testRuntime(
		ocr.StaticFactory(&ocr.MockRecognizer{Fragments: []string{"JOHN"}}),
		stubCompleter{err: &services.CompletionError{Kind: services.KindAuth, StatusCode: 401, Err: errors.New("invalid api key")}},
	)

	stdout, err := runAnalyze(t, build, img, "--out", outPath)
	if err == nil || err.Error() != services.CompletionUserMessage {
		t.Fatalf("expected completion user message, got %v", err)
	}
	if !strings.Contains(stdout, "Raw text:\nJOHN") {
		t.Errorf("recognized text must still be printed, got %q", stdout)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Fatalf("no export file may be written on failure (stat err = %v)", statErr)
	}
}

func TestAnalyzeCommandEngineUnavailable(t *testing.T) {
	img := writeImage(t, t.TempDir())
	build := testRuntime(ocr.FailingFactory(errors.New("no traineddata")), stubCompleter{text: "unused"})

	_, err := runAnalyze(t, build, img)
	if err == nil || err.Error() != services.EngineUnavailableMessage {
		t.Fatalf("expected engine unavailable message, got %v", err)
	}
}

func TestAnalyzeCommandRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	build := testRuntime(ocr.StaticFactory(&ocr.MockRecognizer{}), stubCompleter{})

	if _, err := runAnalyze(t, build, path); !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
