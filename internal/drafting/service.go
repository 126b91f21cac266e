package drafting

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Service produces notification drafts. With a nil client, remote generation is disabled
// and drafts are rendered locally from the fixed template.
type Service struct {
	client *Client
	logger *zap.Logger
}

func NewService(client *Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

func (s *Service) RemoteEnabled() bool {
	return s.client != nil
}

// Generate drafts a notification for info. It fails only with ErrPreconditionNotMet;
// upstream failures come back as a Failed outcome carrying the placeholder text.
func (s *Service) Generate(ctx context.Context, info PatientDraftInfo) (Outcome, error) {
	if strings.TrimSpace(info.Name) == "" {
		return Outcome{}, ErrPreconditionNotMet
	}
	if s.client == nil {
		return Outcome{Status: StatusSuccess, Text: RenderLocalDraft(info)}, nil
	}

	text, err := s.client.RequestDraft(ctx, FormatDraftPrompt(info), StyleInstruction)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			s.logger.Error("draft generation exhausted retries",
				zap.Int("attempts", upstream.Attempts), zap.Error(upstream.Err))
		} else {
			s.logger.Error("draft generation failed", zap.Error(err))
		}
		return Outcome{Status: StatusFailed, Text: FailedDraftText}, nil
	}
	return Outcome{Status: StatusSuccess, Text: text}, nil
}
