package speech

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elopement-response/internal/platform/gemini"
)

func TestGeminiSynthesizerWrapsPCM(t *testing.T) {
	pcm := make([]byte, 48000) // one second of 24kHz 16-bit mono
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gemini.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.GenerationConfig) {
			assert.Equal(t, []string{"AUDIO"}, req.GenerationConfig.ResponseModalities)
			assert.Equal(t, "Kore", req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
		}
		assert.Equal(t, readAloudPrefix+"緊急廣播", req.Contents[0].Parts[0].Text)

		_ = json.NewEncoder(w).Encode(gemini.Response{Candidates: []gemini.Candidate{{
			Content: gemini.Content{Parts: []gemini.Part{{InlineData: &gemini.InlineData{
				MIMEType: "audio/L16;codec=pcm;rate=24000",
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}}}},
		}}})
	}))
	defer srv.Close()

	client := gemini.NewClient("key", 5*time.Second)
	client.BaseURL = srv.URL
	s := NewGeminiSynthesizer(client, "tts-model")

	audio, err := s.Synthesize(context.Background(), "緊急廣播", "")
	require.NoError(t, err)

	assert.Equal(t, "audio/wav", audio.MIMEType)
	assert.Equal(t, time.Second, audio.Duration)
	require.Len(t, audio.Data, 44+len(pcm))
	assert.Equal(t, "RIFF", string(audio.Data[0:4]))
	assert.Equal(t, "WAVE", string(audio.Data[8:12]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(audio.Data[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(audio.Data[40:44]))
}

func TestGeminiSynthesizerNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gemini.Response{})
	}))
	defer srv.Close()

	client := gemini.NewClient("key", 5*time.Second)
	client.BaseURL = srv.URL

	_, err := NewGeminiSynthesizer(client, "tts-model").Synthesize(context.Background(), "x", "")
	assert.Error(t, err)
}

func TestParsePCMFormat(t *testing.T) {
	f := parsePCMFormat("audio/L16;codec=pcm;rate=16000")
	assert.Equal(t, pcmFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16}, f)
	assert.Equal(t, 500*time.Millisecond, f.duration(16000))

	assert.Equal(t, 24000, parsePCMFormat("").SampleRate)
}

func TestWhisperClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			assert.Equal(t, "dictation.webm", header.Filename)
		}
		_ = json.NewEncoder(w).Encode(transcription{Text: "藍色院服", Language: "zh"})
	}))
	defer srv.Close()

	text, err := NewWhisperClient(srv.URL).Transcribe(context.Background(), []byte("audio"), "dictation.webm")
	require.NoError(t, err)
	assert.Equal(t, "藍色院服", text)
}

func TestWhisperClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewWhisperClient(srv.URL).Transcribe(context.Background(), []byte("audio"), "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "whisper", statusErr.Backend)
	assert.Equal(t, "503 Service Unavailable", statusErr.Status)
	assert.Equal(t, "model not loaded", statusErr.Body)
}

func TestElevenLabsSynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+elevenLabsVoice, r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req elevenLabsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "緊急廣播", req.Text)
		assert.Equal(t, elevenLabsModel, req.ModelID)
		w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("xi-key").(*elevenLabsSynthesizer)
	s.apiURL = srv.URL

	audio, err := s.Synthesize(context.Background(), "緊急廣播", "")
	require.NoError(t, err)
	assert.Equal(t, Audio{Data: []byte("ID3mp3"), MIMEType: "audio/mpeg"}, audio)
}

func TestElevenLabsSynthesizerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("xi-key").(*elevenLabsSynthesizer)
	s.apiURL = srv.URL

	_, err := s.Synthesize(context.Background(), "x", "voice")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "elevenlabs", statusErr.Backend)
	assert.Contains(t, err.Error(), "quota_exceeded")
}
