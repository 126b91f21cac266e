package speech

import (
	"context"
	"sync"
	"time"
)

// ClipBuffer is a Sink holding the single clip the front end should be playing.
// A clip stays current for its duration, or for the fallback hold when that is unknown.
type ClipBuffer struct {
	hold time.Duration

	mu      sync.Mutex
	current *Clip
}

func NewClipBuffer(fallbackHold time.Duration) *ClipBuffer {
	return &ClipBuffer{hold: fallbackHold}
}

func (b *ClipBuffer) Play(ctx context.Context, clip Clip) error {
	b.mu.Lock()
	b.current = &clip
	b.mu.Unlock()

	defer b.clear(clip.ID)

	hold := clip.Audio.Duration
	if hold <= 0 {
		hold = b.hold
	}
	timer := time.NewTimer(hold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Current returns the clip being played, if any.
func (b *ClipBuffer) Current() (Clip, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Clip{}, false
	}
	return *b.current, true
}

func (b *ClipBuffer) clear(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil && b.current.ID == id {
		b.current = nil
	}
}
