package drafting

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"elopement-response/internal/retry"
)

// Generator is a remote text-generation capability.
type Generator interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// Client sends draft requests to a Generator under a retry policy.
type Client struct {
	gen    Generator
	policy retry.Policy
	logger *zap.Logger
}

func NewClient(gen Generator, policy retry.Policy, logger *zap.Logger) *Client {
	return &Client{gen: gen, policy: policy, logger: logger}
}

// RequestDraft returns the generated text or an *UpstreamError once every attempt failed.
// An empty completion counts as a failed attempt.
func (c *Client) RequestDraft(ctx context.Context, prompt, style string) (string, error) {
	var text string
	attempts, err := c.policy.Do(ctx, func(ctx context.Context) error {
		out, err := c.gen.Complete(ctx, prompt, style)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return ErrEmptyCompletion
		}
		text = out
		return nil
	}, func(a retry.Attempt) {
		c.logger.Warn("draft request failed, retrying",
			zap.Int("attempt", a.Number), zap.Duration("wait", a.Wait), zap.Error(a.Err))
	})
	if err != nil {
		return "", &UpstreamError{Attempts: attempts, Err: err}
	}
	return text, nil
}
