package drafting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elopement-response/internal/retry"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	results []error
	text    string
	calls   int
	prompts []string
	styles  []string
}

func (g *scriptedGenerator) Complete(_ context.Context, prompt, style string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.styles = append(g.styles, style)
	if len(g.results) > 0 {
		err := g.results[0]
		g.results = g.results[1:]
		if err != nil {
			return "", err
		}
	}
	return g.text, nil
}

type recordingTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Time{}
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func instantPolicy() (retry.Policy, *recordingTimer) {
	timer := &recordingTimer{c: make(chan time.Time, 1)}
	p := retry.Default()
	p.NewTimer = func() backoff.Timer { return timer }
	return p, timer
}

var errUnavailable = errors.New("503 Service Unavailable")

func TestRequestDraftSucceedsOnLastAttempt(t *testing.T) {
	gen := &scriptedGenerator{
		results: []error{errUnavailable, errUnavailable, errUnavailable, errUnavailable, nil},
		text:    "【緊急協尋：不假離院】",
	}
	policy, timer := instantPolicy()
	c := NewClient(gen, policy, zap.NewNop())

	text, err := c.RequestDraft(context.Background(), "prompt", StyleInstruction)

	require.NoError(t, err)
	assert.Equal(t, "【緊急協尋：不假離院】", text)
	assert.Equal(t, 5, gen.calls)
	var waited time.Duration
	for _, w := range timer.waits {
		waited += w
	}
	assert.GreaterOrEqual(t, waited, 15*time.Second)
	assert.Equal(t, []string{StyleInstruction}, gen.styles[:1])
}

func TestRequestDraftExhaustsRetries(t *testing.T) {
	gen := &scriptedGenerator{
		results: []error{errUnavailable, errUnavailable, errUnavailable, errUnavailable, errUnavailable, nil},
		text:    "too late",
	}
	policy, _ := instantPolicy()
	c := NewClient(gen, policy, zap.NewNop())

	_, err := c.RequestDraft(context.Background(), "prompt", StyleInstruction)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 5, upstream.Attempts)
	assert.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, 5, gen.calls, "no sixth attempt")
}

func TestRequestDraftRetriesEmptyCompletion(t *testing.T) {
	gen := &scriptedGenerator{text: "  "}
	policy, _ := instantPolicy()
	c := NewClient(gen, policy, zap.NewNop())

	_, err := c.RequestDraft(context.Background(), "prompt", "")

	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.Equal(t, 5, gen.calls)
}
