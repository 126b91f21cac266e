package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"elopement-response/internal/platform/gemini"
)

const elevenLabsAPIURL = "https://api.elevenlabs.io/v1/text-to-speech"

// readAloudPrefix asks the model for a clear, professional reading.
const readAloudPrefix = "請用清楚、專業的口氣朗讀："

// DefaultVoice is the prebuilt Gemini voice used when none is configured.
const DefaultVoice = "Kore"

var ErrSpeechDisabled = errors.New("speech synthesis is disabled")

// Audio is one synthesized utterance. Duration is zero when the encoding does not expose it.
type Audio struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice string) (Audio, error)
}

// GeminiSynthesizer renders speech with a Gemini TTS model.
type GeminiSynthesizer struct {
	client *gemini.Client
	model  string
}

func NewGeminiSynthesizer(client *gemini.Client, model string) *GeminiSynthesizer {
	return &GeminiSynthesizer{client: client, model: model}
}

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string, voice string) (Audio, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	req := gemini.Request{
		Contents: []gemini.Content{{Parts: []gemini.Part{{Text: readAloudPrefix + text}}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &gemini.SpeechConfig{
				VoiceConfig: gemini.VoiceConfig{PrebuiltVoiceConfig: gemini.PrebuiltVoiceConfig{VoiceName: voice}},
			},
		},
	}

	resp, err := s.client.GenerateContent(ctx, s.model, req)
	if err != nil {
		return Audio{}, err
	}
	part, ok := resp.FirstPart()
	if !ok || part.InlineData == nil || part.InlineData.Data == "" {
		return Audio{}, errors.New("TTS response contained no audio")
	}
	pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to decode TTS audio: %w", err)
	}

	format := parsePCMFormat(part.InlineData.MIMEType)
	return Audio{
		Data:     wrapPCM(pcm, format),
		MIMEType: "audio/wav",
		Duration: format.duration(len(pcm)),
	}, nil
}

const (
	elevenLabsModel = "eleven_multilingual_v2"
	elevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
)

type elevenLabsSynthesizer struct {
	apiURL string
	backend
}

func NewElevenLabsSynthesizer(apiKey string) Synthesizer {
	b := newBackend("elevenlabs", 60*time.Second)
	b.header.Set("xi-api-key", apiKey)
	return &elevenLabsSynthesizer{apiURL: elevenLabsAPIURL, backend: b}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 audio; its duration is left to the fallback hold.
func (c *elevenLabsSynthesizer) Synthesize(ctx context.Context, text string, voiceID string) (Audio, error) {
	if voiceID == "" {
		voiceID = elevenLabsVoice
	}
	payload, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       elevenLabsModel,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return Audio{}, err
	}

	resp, err := c.post(ctx, c.apiURL+"/"+url.PathEscape(voiceID), "application/json", bytes.NewReader(payload))
	if err != nil {
		return Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to read elevenlabs audio: %w", err)
	}
	return Audio{Data: data, MIMEType: "audio/mpeg"}, nil
}

// Disabled is the synthesizer used when no speech backend is configured.
type Disabled struct{}

func (Disabled) Synthesize(context.Context, string, string) (Audio, error) {
	return Audio{}, ErrSpeechDisabled
}
