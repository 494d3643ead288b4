package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

// Service is a composite notification service that can send notifications
// through multiple channels
type Service struct {
	discord *DiscordService
}

// NewService creates a new notification service
func NewService(log zerolog.Logger, webhookURL string) domain.NotificationService {
	var discord *DiscordService
	if webhookURL != "" {
		discord = NewDiscordService(log, webhookURL)
	}

	return &Service{
		discord: discord,
	}
}

// SendFailure sends failure notifications through all configured channels
func (s *Service) SendFailure(ctx context.Context, report domain.FailureReport) error {
	if s.discord != nil {
		if err := s.discord.SendFailure(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

// SendStats sends statistics through all configured channels
func (s *Service) SendStats(ctx context.Context, stats domain.Statistics) error {
	if s.discord != nil {
		if err := s.discord.SendStats(ctx, stats); err != nil {
			return err
		}
	}
	return nil
}
