package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"elopement-response/internal/retry"
)

func validConfig() Config {
	return Config{
		Draft:  DraftConfig{Provider: DraftProviderDisabled},
		Speech: SpeechConfig{Provider: TTSProviderDisabled},
		Retry:  retry.Default(),
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	c := validConfig()
	c.Draft.Provider = DraftProviderGemini
	assert.Error(t, c.Validate())
	c.Draft.GeminiAPIKey = "key"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.Draft.Provider = DraftProviderVertex
	c.Draft.VertexProject = "hospital"
	assert.Error(t, c.Validate())
	c.Draft.VertexRegion = "asia-east1"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.Speech.Provider = TTSProviderElevenLabs
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Speech.Provider = "festival"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Retry.MaxAttempts = 0
	assert.Error(t, c.Validate())
}
