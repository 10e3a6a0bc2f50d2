package booking

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// quoteExpiryBatchSize bounds how many quotes one sweep pass touches
const quoteExpiryBatchSize = 200

// QuoteService drives the quote sub-lifecycle: conversion, delivery,
// approval, duplication, and the time-driven expiry sweep.
type QuoteService struct {
	bookings       booking.BookingRepository
	clock          shared.Clock
	validate       *validator.Validate
	logger         *zap.Logger
	notifier       shared.Notifier
	eventPublisher shared.EventPublisher
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(bookings booking.BookingRepository, clock shared.Clock, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		bookings: bookings,
		clock:    clock,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetNotifier sets the outbound notifier for quote delivery
func (s *QuoteService) SetNotifier(notifier shared.Notifier) {
	s.notifier = notifier
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *QuoteService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ConvertToQuote starts the quote lifecycle on a draft booking
func (s *QuoteService) ConvertToQuote(ctx context.Context, companyID, bookingID uuid.UUID, req ConvertToQuoteRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	number, err := s.bookings.GenerateQuoteNumber(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var expiresAt *time.Time
	if req.ValidDays > 0 {
		t := now.AddDate(0, 0, req.ValidDays)
		expiresAt = &t
	}

	if err := b.ConvertToQuote(number, req.Terms, expiresAt, now); err != nil {
		return nil, err
	}

	return s.save(ctx, b)
}

// SendQuote marks the quote sent and dispatches the notification after the
// state change commits
func (s *QuoteService) SendQuote(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	if err := b.SendQuote(s.clock.Now()); err != nil {
		return nil, err
	}

	response, err := s.save(ctx, b)
	if err != nil {
		return nil, err
	}

	// Fire-and-forget: a failed notification never rolls back the transition
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, shared.Notification{
			Recipient: b.ClientName,
			Template:  "quote_sent",
			Variables: map[string]string{
				"quote_number": b.QuoteNumber,
				"grand_total":  b.GrandTotalMoney().String(),
			},
		}); err != nil {
			s.logger.Warn("quote notification failed",
				zap.String("quote_number", b.QuoteNumber),
				zap.Error(err))
		}
	}

	return response, nil
}

// MarkQuoteViewed records the client opening the quote
func (s *QuoteService) MarkQuoteViewed(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.MarkQuoteViewed(s.clock.Now()); err != nil {
		return nil, err
	}
	return s.save(ctx, b)
}

// ApproveQuote accepts the quote and confirms the booking. The confirmation
// runs through the atomic reservation path so availability is re-checked in
// the same transaction that commits the status change.
func (s *QuoteService) ApproveQuote(ctx context.Context, companyID, bookingID uuid.UUID, req ApproveQuoteRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	approveErr := b.ApproveQuote(req.ApprovedBy, s.clock.Now())
	if approveErr != nil {
		// A lazy expiry discovered during approval still needs persisting
		if b.QuoteStatus == booking.QuoteStatusExpired {
			if _, err := s.save(ctx, b); err != nil {
				return nil, err
			}
		}
		return nil, approveErr
	}

	if err := s.bookings.ConfirmWithReservation(ctx, b); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// DeclineQuote declines the quote; the booking remains draft-like
func (s *QuoteService) DeclineQuote(ctx context.Context, companyID, bookingID uuid.UUID, req DeclineQuoteRequest) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.DeclineQuote(req.Reason, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.save(ctx, b)
}

// DuplicateQuote clones a booking into a fresh draft quote with optional
// overrides, used to re-quote after a decline or expiry
func (s *QuoteService) DuplicateQuote(ctx context.Context, companyID, bookingID uuid.UUID, req DuplicateQuoteRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	period := valueobject.DateRange{}
	if req.StartDate != nil && req.EndDate != nil {
		if period, err = valueobject.NewDateRange(*req.StartDate, *req.EndDate); err != nil {
			return nil, shared.ErrInvalidDateRange
		}
	}

	number, err := s.bookings.GenerateBookingNumber(ctx, companyID)
	if err != nil {
		return nil, err
	}

	dup, err := b.DuplicateAsQuote(number, period, now)
	if err != nil {
		return nil, err
	}
	if req.ClientName != nil {
		dup.ClientName = *req.ClientName
	}

	quoteNumber, err := s.bookings.GenerateQuoteNumber(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var expiresAt *time.Time
	if req.ValidDays > 0 {
		t := now.AddDate(0, 0, req.ValidDays)
		expiresAt = &t
	}
	if err := dup.ConvertToQuote(quoteNumber, b.QuoteTerms, expiresAt, now); err != nil {
		return nil, err
	}

	if err := s.bookings.Save(ctx, dup); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, dup)
	response := ToBookingResponse(dup)
	return &response, nil
}

// ExpireQuotes is the batch sweep that persists EXPIRED for every quote
// whose validity window has passed. Idempotent: a quote already expired is
// skipped by the query, so re-running the sweep is harmless.
func (s *QuoteService) ExpireQuotes(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.bookings.FindQuotesToExpire(ctx, now, quoteExpiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for idx := range candidates {
		b := &candidates[idx]
		b.RestorePeriod()
		if err := b.MarkQuoteExpired(now); err != nil {
			continue
		}
		if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
			s.logger.Warn("quote expiry sweep skipped a booking",
				zap.String("booking_number", b.BookingNumber),
				zap.Error(err))
			continue
		}
		s.publishEvents(ctx, b)
		expired++
	}

	if expired > 0 {
		s.logger.Info("quote expiry sweep completed", zap.Int("expired", expired))
	}
	return expired, nil
}

func (s *QuoteService) loadBooking(ctx context.Context, companyID, bookingID uuid.UUID) (*booking.Booking, error) {
	b, err := s.bookings.FindByIDForCompany(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	b.RestorePeriod()
	return b, nil
}

func (s *QuoteService) save(ctx context.Context, b *booking.Booking) (*BookingResponse, error) {
	if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

func (s *QuoteService) publishEvents(ctx context.Context, b *booking.Booking) {
	if s.eventPublisher == nil {
		b.ClearDomainEvents()
		return
	}
	_ = s.eventPublisher.Publish(ctx, b.GetDomainEvents()...)
	b.ClearDomainEvents()
}
