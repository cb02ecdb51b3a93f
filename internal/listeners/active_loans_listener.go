package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cds-ils/internal/events"
	"cds-ils/internal/services"
	"cds-ils/pkg/eventbus"
)

// ActiveLoansListener warns the library desk about patrons that left the
// directory while still holding loans.
type ActiveLoansListener struct {
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewActiveLoansListener(notificationService services.NotificationServiceInterface, logger *zap.Logger) *ActiveLoansListener {
	return &ActiveLoansListener{
		notificationService: notificationService,
		logger:              logger.Named("active_loans_listener"),
	}
}

func (l *ActiveLoansListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.PatronActiveLoansEventName, l.handle)
	l.logger.Info("subscribed", zap.String("event", events.PatronActiveLoansEventName))
}

func (l *ActiveLoansListener) handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.PatronActiveLoansEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if err := l.notificationService.SendActiveLoansWarning(ctx, e.UserID, e.Email); err != nil {
		return fmt.Errorf("send active loans warning for user %d: %w", e.UserID, err)
	}
	return nil
}
