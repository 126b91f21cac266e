package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PlaybackError is a failed utterance. It is logged and never surfaced to the operator.
type PlaybackError struct {
	Text string
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %q failed: %v", e.Text, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Clip is an utterance handed to a Sink.
type Clip struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"started_at"`
	Audio     Audio     `json:"-"`
}

// Sink renders a clip. Play blocks until the clip has finished or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, clip Clip) error
}

// Playback is the handle of one Speak call.
type Playback struct {
	ID        uint64
	Text      string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the playback has finished, failed or been stopped.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Err reports how the playback ended. It is only meaningful after Done is closed.
func (p *Playback) Err() error {
	return p.err
}

// Player keeps at most one playback in flight: Speak stops the active one before starting.
type Player struct {
	synth  Synthesizer
	sink   Sink
	voice  string
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	active *Playback
	seq    uint64
}

func NewPlayer(synth Synthesizer, sink Sink, voice string, logger *zap.Logger) *Player {
	return &Player{
		synth:  synth,
		sink:   sink,
		voice:  voice,
		logger: logger,
		now:    time.Now,
	}
}

// Speak starts rendering text in the background and returns immediately.
func (p *Player) Speak(text string) *Playback {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	p.seq++
	pb := &Playback{
		ID:        p.seq,
		Text:      text,
		StartedAt: p.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.active = pb
	go p.run(ctx, pb)
	return pb
}

// Stop cancels the active playback and waits for it to end.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Active returns the most recent playback if it is still running.
func (p *Player) Active() (*Playback, bool) {
	p.mu.Lock()
	pb := p.active
	p.mu.Unlock()
	if pb == nil {
		return nil, false
	}
	select {
	case <-pb.done:
		return nil, false
	default:
		return pb, true
	}
}

func (p *Player) stopLocked() {
	if p.active == nil {
		return
	}
	p.active.cancel()
	<-p.active.done
	p.active = nil
}

func (p *Player) run(ctx context.Context, pb *Playback) {
	defer close(pb.done)
	defer pb.cancel()

	err := p.play(ctx, pb)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		pb.err = ctx.Err()
		return
	}
	pb.err = &PlaybackError{Text: pb.Text, Err: err}
	p.logger.Warn("speech playback failed", zap.Uint64("playback", pb.ID), zap.Error(pb.err))
}

func (p *Player) play(ctx context.Context, pb *Playback) error {
	audio, err := p.synth.Synthesize(ctx, pb.Text, p.voice)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err = p.sink.Play(ctx, Clip{ID: pb.ID, Text: pb.Text, StartedAt: pb.StartedAt, Audio: audio})
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}
