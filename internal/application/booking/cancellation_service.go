package booking

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CancellationService runs the two-phase cancellation flow. Phase one
// (Cancel) transitions the booking, releases its reservations and computes
// the refund owed; phase two (ProcessRefund) records the confirmed money
// movement. The phases are separate so the payment provider call can be
// retried without re-running the state transition.
type CancellationService struct {
	bookings       booking.BookingRepository
	clock          shared.Clock
	validate       *validator.Validate
	logger         *zap.Logger
	notifier       shared.Notifier
	eventPublisher shared.EventPublisher
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(bookings booking.BookingRepository, clock shared.Clock, logger *zap.Logger) *CancellationService {
	return &CancellationService{
		bookings: bookings,
		clock:    clock,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetNotifier sets the outbound notifier
func (s *CancellationService) SetNotifier(notifier shared.Notifier) {
	s.notifier = notifier
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CancellationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CancelBooking cancels the booking and computes the policy refund.
// Releasing the booking's reservations is implicit: availability reads only
// consider inventory-holding statuses, which CANCELLED is not.
func (s *CancellationService) CancelBooking(ctx context.Context, companyID, bookingID uuid.UUID, req CancelBookingRequest) (*CancellationResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	expected := b.GetVersion()
	if err := b.Cancel(req.Actor, req.Reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, shared.Notification{
			Recipient: b.ClientName,
			Template:  "booking_cancelled",
			Variables: map[string]string{
				"booking_number": b.BookingNumber,
				"refund_amount":  b.RefundMoney().String(),
			},
		}); err != nil {
			s.logger.Warn("cancellation notification failed",
				zap.String("booking_number", b.BookingNumber),
				zap.Error(err))
		}
	}

	return &CancellationResult{
		Status:       b.Status.String(),
		RefundAmount: b.RefundAmount,
		RefundStatus: string(b.RefundStatus),
	}, nil
}

// ProcessRefund completes the pending refund once the payment provider
// confirms the money movement. Valid exactly once from PENDING.
func (s *CancellationService) ProcessRefund(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	expected := b.GetVersion()
	if err := b.ProcessRefund(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// RefundPreview reports what cancelling now would refund, without mutating
// anything
func (s *CancellationService) RefundPreview(ctx context.Context, companyID, bookingID uuid.UUID) (*CancellationResult, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	refund := b.RefundAmountAt(now)
	status := "refund_available"
	if !b.RefundAllowed(now) {
		status = "past_deadline"
	}

	return &CancellationResult{
		Status:       status,
		RefundAmount: refund.Amount(),
		RefundStatus: string(b.RefundStatus),
	}, nil
}

func (s *CancellationService) loadBooking(ctx context.Context, companyID, bookingID uuid.UUID) (*booking.Booking, error) {
	b, err := s.bookings.FindByIDForCompany(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	b.RestorePeriod()
	return b, nil
}

func (s *CancellationService) publishEvents(ctx context.Context, b *booking.Booking) {
	if s.eventPublisher == nil {
		b.ClearDomainEvents()
		return
	}
	_ = s.eventPublisher.Publish(ctx, b.GetDomainEvents()...)
	b.ClearDomainEvents()
}
