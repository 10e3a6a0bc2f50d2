package booking

import (
	"context"
	"fmt"

	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationHandler listens for booking lifecycle events and sends the
// client-facing confirmations that are not tied to a synchronous request
// path. Wrap it with event.NewIdempotentHandler when subscribing so redelivery
// cannot double-send.
type NotificationHandler struct {
	bookings booking.BookingRepository
	notifier shared.Notifier
	logger   *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(bookings booking.BookingRepository, notifier shared.Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		bookings: bookings,
		notifier: notifier,
		logger:   logger,
	}
}

// EventTypes returns the event types this handler subscribes to
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		booking.EventTypeBookingConfirmed,
		booking.EventTypePaymentRecorded,
	}
}

// Handle sends the notification for one event. Errors are returned so the
// idempotency wrapper can count them, but senders treat delivery as
// best-effort.
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	b, err := h.bookings.FindByIDForCompany(ctx, event.CompanyID(), event.AggregateID())
	if err != nil {
		return fmt.Errorf("load booking for notification: %w", err)
	}

	switch e := event.(type) {
	case *booking.BookingConfirmedEvent:
		return h.notifier.Send(ctx, shared.Notification{
			Recipient: b.ClientName,
			Template:  "booking_confirmed",
			Variables: map[string]string{
				"booking_number": e.BookingNumber,
				"grand_total":    b.GrandTotalMoney().String(),
				"start_date":     e.StartDate.Format("2006-01-02"),
				"end_date":       e.EndDate.Format("2006-01-02"),
			},
		})
	case *booking.PaymentRecordedEvent:
		template := "payment_received"
		if e.FullyPaid {
			template = "payment_received_in_full"
		}
		return h.notifier.Send(ctx, shared.Notification{
			Recipient: b.ClientName,
			Template:  template,
			Variables: map[string]string{
				"booking_number": e.BookingNumber,
				"amount":         e.Amount.String(),
				"balance_due":    b.BalanceDue().String(),
			},
		})
	default:
		h.logger.Debug("ignoring unexpected event type",
			zap.String("event_type", event.EventType()))
		return nil
	}
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
