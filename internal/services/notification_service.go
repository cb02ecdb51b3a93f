package services

import (
	"context"

	"go.uber.org/zap"
)

type NotificationServiceInterface interface {
	SendActiveLoansWarning(ctx context.Context, userID uint64, email string) error
}

// mockNotificationService logs the mail instead of sending it. The library
// mailer is not reachable from this service; the log line is what operators act on.
type mockNotificationService struct {
	recipient string
	logger    *zap.Logger
}

func NewMockNotificationService(recipient string, logger *zap.Logger) NotificationServiceInterface {
	return &mockNotificationService{recipient: recipient, logger: logger.Named("notifications")}
}

func (s *mockNotificationService) SendActiveLoansWarning(ctx context.Context, userID uint64, email string) error {
	s.logger.Warn("patron has active loans and could not be anonymized",
		zap.String("to", s.recipient),
		zap.Uint64("user_id", userID),
		zap.String("patron_email", email),
	)
	return nil
}
