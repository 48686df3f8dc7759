package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/runelight-sys/LyroDocs/internal/config"
	"github.com/runelight-sys/LyroDocs/internal/ocr"
	"github.com/runelight-sys/LyroDocs/internal/services"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "lyro",
	Short: "Lyro Docs document analysis service",
	Long: `Lyro Docs reads a photographed or scanned document, recognizes its text
and asks a hosted language model to extract names, dates, ID numbers and key
instructions.

Running without a subcommand starts the web server.`,
	SilenceUsage: true,
	RunE:         serveCmd.RunE,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("ocr-language", "en", "recognition language")
	flags.String("completion-model", config.DefaultCompletionModel, "chat completion model")
	flags.String("completion-base-url", config.DefaultCompletionBaseURL, "OpenAI-compatible API base URL")
	bindFlags(flags, map[string]string{
		"log-level":           config.KeyLogLevel,
		"ocr-language":        config.KeyOCRLanguage,
		"completion-model":    config.KeyCompletionModel,
		"completion-base-url": config.KeyCompletionBaseURL,
	})

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

// bindFlags binds each kebab-case flag to its viper key.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// runtime holds everything built from configuration that the commands share.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   *ocr.Engine
	pipeline *services.Pipeline
}

func newRuntime(v *viper.Viper) (*runtime, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	engine := ocr.NewEngine(ocr.TesseractFactory(cfg.OCRLanguage), logger.With("component", "ocr"))
	completer := services.NewCompletionClient(cfg.APIKey, cfg.CompletionBaseURL, cfg.CompletionModel, cfg.CompletionTimeout)
	if cfg.APIKey == "" {
		logger.Warn("no API key configured; analysis requests will fail until GROQ_API_KEY is set")
	}
	pipeline := services.NewPipeline(engine, completer, logger.With("component", "pipeline"), cfg.OCRTimeout)

	return &runtime{cfg: cfg, logger: logger, engine: engine, pipeline: pipeline}, nil
}
