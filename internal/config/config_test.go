package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("LYRO_API_KEY", "")
	t.Setenv("ADDR", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Addr)
	}
	if cfg.CompletionModel != DefaultCompletionModel {
		t.Errorf("expected default model, got %s", cfg.CompletionModel)
	}
	if cfg.CompletionBaseURL != DefaultCompletionBaseURL {
		t.Errorf("expected default base url, got %s", cfg.CompletionBaseURL)
	}
	if cfg.OCRLanguage != "en" {
		t.Errorf("expected en, got %s", cfg.OCRLanguage)
	}
	if !cfg.OCREagerInit {
		t.Error("expected eager OCR init by default")
	}
	if cfg.CompletionTimeout != 60*time.Second {
		t.Errorf("unexpected completion timeout %s", cfg.CompletionTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected log level %v", cfg.LogLevel)
	}
	if cfg.APIKey != "" {
		t.Errorf("expected empty api key, got %q", cfg.APIKey)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("groq key", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", " gsk-123 ")
		cfg, err := Load(New())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.APIKey != "gsk-123" {
			t.Errorf("expected trimmed key, got %q", cfg.APIKey)
		}
	})

	t.Run("fallback key", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("LYRO_API_KEY", "lyro-456")
		cfg, err := Load(New())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.APIKey != "lyro-456" {
			t.Errorf("expected lyro-456, got %q", cfg.APIKey)
		}
	})

	t.Run("port and overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("COMPLETION_MODEL", "other-model")
		t.Setenv("OCR_EAGER_INIT", "false")
		t.Setenv("LOG_LEVEL", "debug")
		cfg, err := Load(New())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Addr != ":9090" {
			t.Errorf("expected :9090, got %s", cfg.Addr)
		}
		if cfg.CompletionModel != "other-model" {
			t.Errorf("expected other-model, got %s", cfg.CompletionModel)
		}
		if cfg.OCREagerInit {
			t.Error("expected lazy OCR init")
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Errorf("expected debug level, got %v", cfg.LogLevel)
		}
	})
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"empty model", KeyCompletionModel, ""},
		{"zero completion timeout", KeyCompletionTimeout, time.Duration(0)},
		{"negative ocr timeout", KeyOCRTimeout, -time.Second},
		{"zero upload limit", KeyMaxUploadBytes, int64(0)},
		{"bad log level", KeyLogLevel, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Fatalf("expected error for %s", tt.key)
			}
		})
	}
}
