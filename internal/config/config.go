package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores runtime configuration loaded from environment variables,
// an optional .env file and command-line flags.
type Config struct {
	Addr string

	APIKey            string
	CompletionBaseURL string
	CompletionModel   string
	CompletionTimeout time.Duration

	OCRLanguage  string
	OCREagerInit bool
	OCRTimeout   time.Duration

	MaxUploadBytes int64
	LogoPath       string
	LogLevel       slog.Level
}

const (
	DefaultCompletionBaseURL = "https://api.groq.com/openai/v1"
	DefaultCompletionModel   = "llama-3.3-70b-versatile"
)

// Keys used in the viper registry. Flags bound by the CLI use the same names.
const (
	KeyAddr              = "addr"
	KeyPort              = "port"
	KeyAPIKey            = "api_key"
	KeyCompletionBaseURL = "completion_base_url"
	KeyCompletionModel   = "completion_model"
	KeyCompletionTimeout = "completion_timeout"
	KeyOCRLanguage       = "ocr_language"
	KeyOCREagerInit      = "ocr_eager_init"
	KeyOCRTimeout        = "ocr_timeout"
	KeyMaxUploadBytes    = "max_upload_bytes"
	KeyLogoPath          = "logo_path"
	KeyLogLevel          = "log_level"
)

// New returns a viper instance with defaults and environment bindings.
// A .env file in the working directory is loaded first if it exists.
func New() *viper.Viper {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(KeyAddr, "")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyCompletionBaseURL, DefaultCompletionBaseURL)
	v.SetDefault(KeyCompletionModel, DefaultCompletionModel)
	v.SetDefault(KeyCompletionTimeout, 60*time.Second)
	v.SetDefault(KeyOCRLanguage, "en")
	v.SetDefault(KeyOCREagerInit, true)
	v.SetDefault(KeyOCRTimeout, 2*time.Minute)
	v.SetDefault(KeyMaxUploadBytes, int64(10<<20))
	v.SetDefault(KeyLogoPath, "")
	v.SetDefault(KeyLogLevel, "info")

	v.AutomaticEnv()
	_ = v.BindEnv(KeyAPIKey, "GROQ_API_KEY", "LYRO_API_KEY")
	return v
}

// Load reads configuration from v. The API key is not validated here: a
// missing or invalid key only surfaces when the completion call is made.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:              v.GetString(KeyAddr),
		APIKey:            strings.TrimSpace(v.GetString(KeyAPIKey)),
		CompletionBaseURL: v.GetString(KeyCompletionBaseURL),
		CompletionModel:   v.GetString(KeyCompletionModel),
		CompletionTimeout: v.GetDuration(KeyCompletionTimeout),
		OCRLanguage:       v.GetString(KeyOCRLanguage),
		OCREagerInit:      v.GetBool(KeyOCREagerInit),
		OCRTimeout:        v.GetDuration(KeyOCRTimeout),
		MaxUploadBytes:    v.GetInt64(KeyMaxUploadBytes),
		LogoPath:          v.GetString(KeyLogoPath),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":" + v.GetString(KeyPort)
	}

	level, err := parseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.CompletionModel == "" {
		return Config{}, fmt.Errorf("%s must not be empty", KeyCompletionModel)
	}
	if cfg.CompletionTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", KeyCompletionTimeout, cfg.CompletionTimeout)
	}
	if cfg.OCRTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", KeyOCRTimeout, cfg.OCRTimeout)
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", KeyMaxUploadBytes, cfg.MaxUploadBytes)
	}
	return cfg, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", KeyLogLevel, raw, err)
	}
	return level, nil
}
