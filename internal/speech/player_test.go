package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticSynth struct {
	err error
}

func (s staticSynth) Synthesize(_ context.Context, text string, _ string) (Audio, error) {
	if s.err != nil {
		return Audio{}, s.err
	}
	return Audio{Data: []byte(text), MIMEType: "audio/wav"}, nil
}

// blockingSink plays until cancelled and records what happened to each clip.
type blockingSink struct {
	mu        sync.Mutex
	started   chan uint64
	playing   map[uint64]bool
	cancelled []uint64
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan uint64, 8), playing: map[uint64]bool{}}
}

func (s *blockingSink) Play(ctx context.Context, clip Clip) error {
	s.mu.Lock()
	s.playing[clip.ID] = true
	s.mu.Unlock()
	s.started <- clip.ID

	<-ctx.Done()

	s.mu.Lock()
	delete(s.playing, clip.ID)
	s.cancelled = append(s.cancelled, clip.ID)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *blockingSink) audible() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id := range s.playing {
		ids = append(ids, id)
	}
	return ids
}

func waitStarted(t *testing.T, s *blockingSink) uint64 {
	t.Helper()
	select {
	case id := <-s.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not start")
		return 0
	}
}

func TestSpeakStopsPreviousPlayback(t *testing.T) {
	sink := newBlockingSink()
	p := NewPlayer(staticSynth{}, sink, "", zap.NewNop())

	first := p.Speak("緊急廣播")
	require.Equal(t, first.ID, waitStarted(t, sink))

	second := p.Speak("一病房三三三")
	require.Equal(t, second.ID, waitStarted(t, sink))

	<-first.Done()
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.Equal(t, []uint64{second.ID}, sink.audible())

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	p.Stop()
	<-second.Done()
	_, ok = p.Active()
	assert.False(t, ok)
	assert.Empty(t, sink.audible())
	assert.Equal(t, []uint64{first.ID, second.ID}, sink.cancelled)
}

func TestSpeakFailureIsLoggedNotSurfaced(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := newBlockingSink()
	p := NewPlayer(staticSynth{err: errors.New("quota exceeded")}, sink, "", zap.New(core))

	pb := p.Speak("緊急廣播")
	<-pb.Done()

	var perr *PlaybackError
	require.ErrorAs(t, pb.Err(), &perr)
	assert.Equal(t, "緊急廣播", perr.Text)
	assert.Equal(t, 1, logs.FilterMessage("speech playback failed").Len())
	assert.Empty(t, sink.cancelled, "sink is never reached")
}

func TestClipBufferHoldsOneClip(t *testing.T) {
	buf := NewClipBuffer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- buf.Play(ctx, Clip{ID: 1, Text: "a"})
	}()
	require.Eventually(t, func() bool {
		_, ok := buf.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	clip, _ := buf.Current()
	assert.Equal(t, uint64(1), clip.ID)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	_, ok := buf.Current()
	assert.False(t, ok)
}

func TestClipBufferExpiresAfterDuration(t *testing.T) {
	buf := NewClipBuffer(time.Hour)

	err := buf.Play(context.Background(), Clip{ID: 7, Audio: Audio{Duration: 10 * time.Millisecond}})

	require.NoError(t, err)
	_, ok := buf.Current()
	assert.False(t, ok)
}

func TestPlayerWithClipBuffer(t *testing.T) {
	buf := NewClipBuffer(time.Hour)
	p := NewPlayer(staticSynth{}, buf, "", zap.NewNop())

	p.Speak("first")
	require.Eventually(t, func() bool {
		c, ok := buf.Current()
		return ok && c.Text == "first"
	}, time.Second, 5*time.Millisecond)

	second := p.Speak("second")
	require.Eventually(t, func() bool {
		c, ok := buf.Current()
		return ok && c.ID == second.ID
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	_, ok := buf.Current()
	assert.False(t, ok)
}
