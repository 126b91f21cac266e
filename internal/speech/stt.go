package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte, fileName string) (string, error)
}

type whisperClient struct {
	url string
	backend
}

// NewWhisperClient talks to a Whisper transcription service accepting multipart uploads.
func NewWhisperClient(url string) Transcriber {
	return &whisperClient{url: url, backend: newBackend("whisper", 60*time.Second)}
}

type transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *whisperClient) Transcribe(ctx context.Context, audioData []byte, fileName string) (string, error) {
	if fileName == "" {
		fileName = "audio.wav"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	resp, err := c.post(ctx, c.url, form.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return out.Text, nil
}
