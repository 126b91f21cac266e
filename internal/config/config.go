package config

import (
	"fmt"
	"time"

	"elopement-response/internal/retry"
)

type DraftProvider string

const (
	DraftProviderGemini   DraftProvider = "gemini"
	DraftProviderVertex   DraftProvider = "vertex"
	DraftProviderDisabled DraftProvider = "disabled"
)

type TTSProvider string

const (
	TTSProviderGemini     TTSProvider = "gemini"
	TTSProviderElevenLabs TTSProvider = "elevenlabs"
	TTSProviderDisabled   TTSProvider = "disabled"
)

type Config struct {
	HTTPPort    int
	LogLevel    string
	Development bool

	Draft    DraftConfig
	Speech   SpeechConfig
	Telegram TelegramConfig
	Retry    retry.Policy

	DatabaseURL     string
	MigrationsPath  string
	ReportFontPaths []string
	SessionTTL      time.Duration
	RequestTimeout  time.Duration
}

type DraftConfig struct {
	Provider      DraftProvider
	GeminiAPIKey  string
	Model         string
	VertexProject string
	VertexRegion  string
}

type SpeechConfig struct {
	Provider         TTSProvider
	Model            string
	Voice            string
	ElevenLabsAPIKey string
	STTURL           string
	ClipHold         time.Duration
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Validate checks provider names and the credentials each provider needs.
func (c Config) Validate() error {
	switch c.Draft.Provider {
	case DraftProviderGemini:
		if c.Draft.GeminiAPIKey == "" {
			return fmt.Errorf("draft provider %q needs gemini-api-key", c.Draft.Provider)
		}
	case DraftProviderVertex:
		if c.Draft.VertexProject == "" || c.Draft.VertexRegion == "" {
			return fmt.Errorf("draft provider %q needs vertex-project and vertex-region", c.Draft.Provider)
		}
	case DraftProviderDisabled:
	default:
		return fmt.Errorf("unknown draft provider %q", c.Draft.Provider)
	}

	switch c.Speech.Provider {
	case TTSProviderGemini:
		if c.Draft.GeminiAPIKey == "" {
			return fmt.Errorf("tts provider %q needs gemini-api-key", c.Speech.Provider)
		}
	case TTSProviderElevenLabs:
		if c.Speech.ElevenLabsAPIKey == "" {
			return fmt.Errorf("tts provider %q needs elevenlabs-api-key", c.Speech.Provider)
		}
	case TTSProviderDisabled:
	default:
		return fmt.Errorf("unknown tts provider %q", c.Speech.Provider)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry-max-attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry-multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	return nil
}
