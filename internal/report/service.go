package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"elopement-response/internal/response"
	"elopement-response/internal/retry"
)

var ErrChannelDisabled = errors.New("staff channel is not configured")

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Service delivers broadcasts and incident reports to the staff chat.
type Service struct {
	tgClient  TelegramClient
	chatID    int64
	policy    retry.Policy
	fontPaths []string
	logger    *zap.Logger
}

// NewService returns a service that answers ErrChannelDisabled when tg is nil or chatID is zero.
func NewService(tg TelegramClient, chatID int64, policy retry.Policy, fontPaths []string, logger *zap.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:  tg,
		chatID:    chatID,
		policy:    policy,
		fontPaths: fontPaths,
		logger:    logger,
	}
}

func (s *Service) Enabled() bool {
	return s.tgClient != nil && s.chatID != 0
}

// Broadcast sends text to the staff chat, retrying under the service policy.
func (s *Service) Broadcast(ctx context.Context, text string) error {
	if !s.Enabled() {
		return ErrChannelDisabled
	}
	return s.send(ctx, "broadcast", func(ctx context.Context) error {
		return s.tgClient.SendMessage(ctx, s.chatID, text)
	})
}

// SendIncidentReport sends the PDF timeline of a finished cycle. Without a usable font the
// text summary is sent instead.
func (s *Service) SendIncidentReport(ctx context.Context, inc response.Incident) error {
	if !s.Enabled() {
		s.logger.Debug("staff channel disabled, incident report skipped", zap.String("incident", inc.ID.String()))
		return nil
	}

	pdf, err := RenderPDF(inc, s.fontPaths)
	if err != nil {
		s.logger.Warn("pdf rendering failed, sending text summary", zap.Error(err))
		return s.send(ctx, "incident summary", func(ctx context.Context) error {
			return s.tgClient.SendMessage(ctx, s.chatID, Summary(inc))
		})
	}

	fileName := fmt.Sprintf("incident_%s.pdf", inc.ID.String())
	if err := s.send(ctx, "incident report", func(ctx context.Context) error {
		return s.tgClient.SendDocument(ctx, s.chatID, pdf, fileName)
	}); err != nil {
		return err
	}
	s.logger.Info("incident report sent", zap.String("incident", inc.ID.String()), zap.Int("bytes", len(pdf)))
	return nil
}

func (s *Service) send(ctx context.Context, what string, op func(ctx context.Context) error) error {
	attempts, err := s.policy.Do(ctx, op, func(a retry.Attempt) {
		s.logger.Warn("staff channel request failed, retrying",
			zap.String("request", what), zap.Int("attempt", a.Number), zap.Duration("wait", a.Wait), zap.Error(a.Err))
	})
	if err != nil {
		return fmt.Errorf("failed to deliver %s after %d attempts: %w", what, attempts, err)
	}
	return nil
}
