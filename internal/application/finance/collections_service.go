package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reminderTTL is how long a sent reminder suppresses re-sends. One day:
// the sweep may re-run any number of times within a day without
// double-reminding anyone.
const reminderTTL = 24 * time.Hour

// CollectionsService drives accounts-receivable aging and dunning: the
// daily sweep recomputes AR metrics and escalates collection statuses, and
// the administrative actions hand receivables to collections or write them
// off.
type CollectionsService struct {
	bookings        booking.BookingRepository
	idempotency     shared.IdempotencyStore
	clock           shared.Clock
	validate        *validator.Validate
	logger          *zap.Logger
	notifier        shared.Notifier
	eventPublisher  shared.EventPublisher
	businessMetrics *telemetry.BusinessMetrics
}

// NewCollectionsService creates a new CollectionsService
func NewCollectionsService(
	bookings booking.BookingRepository,
	idempotency shared.IdempotencyStore,
	clock shared.Clock,
	logger *zap.Logger,
) *CollectionsService {
	return &CollectionsService{
		bookings:    bookings,
		idempotency: idempotency,
		clock:       clock,
		validate:    validator.New(),
		logger:      logger,
	}
}

// SetNotifier sets the outbound notifier for payment reminders
func (s *CollectionsService) SetNotifier(notifier shared.Notifier) {
	s.notifier = notifier
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CollectionsService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the business metrics collector
func (s *CollectionsService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// ARMetricsResponse reports one booking's receivable position
type ARMetricsResponse struct {
	BookingID        uuid.UUID       `json:"booking_id"`
	PaymentDueDate   *time.Time      `json:"payment_due_date,omitempty"`
	DaysPastDue      int             `json:"days_past_due"`
	AgingBucket      string          `json:"aging_bucket"`
	CollectionStatus string          `json:"collection_status"`
	BalanceDue       decimal.Decimal `json:"balance_due"`
}

// WriteOffRequest abandons an outstanding balance
type WriteOffRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
	Actor  string `json:"actor" validate:"required,min=1,max=100"`
}

// AssignToCollectionsRequest hands a receivable to an external agency
type AssignToCollectionsRequest struct {
	Actor string `json:"actor" validate:"required,min=1,max=100"`
	Notes string `json:"notes" validate:"max=500"`
}

// SendReminderRequest sends one dunning reminder
type SendReminderRequest struct {
	ReminderType string `json:"reminder_type" validate:"required,oneof=payment_due overdue_notice final_demand"`
}

// AgingSummaryResponse is the per-bucket AR report plus grand totals
type AgingSummaryResponse struct {
	Buckets             []booking.AgingSummaryRow `json:"buckets"`
	TotalBalance        decimal.Decimal           `json:"total_balance"`
	ExpectedCollectible decimal.Decimal           `json:"expected_collectible"`
}

// SweepResult summarizes one collections sweep run
type SweepResult struct {
	Examined  int `json:"examined"`
	Escalated int `json:"escalated"`
	Reminded  int `json:"reminded"`
}

// UpdateARMetrics recomputes one booking's due date, days past due and
// aging bucket
func (s *CollectionsService) UpdateARMetrics(ctx context.Context, companyID, bookingID uuid.UUID) (*ARMetricsResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	b.UpdateARMetrics(s.clock.Now())
	if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
		return nil, err
	}

	return s.toMetricsResponse(b), nil
}

// EscalateCollectionStatus advances the dunning ladder for one booking
func (s *CollectionsService) EscalateCollectionStatus(ctx context.Context, companyID, bookingID uuid.UUID) (*ARMetricsResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	b.UpdateARMetrics(s.clock.Now())
	if b.EscalateCollectionStatus(s.clock.Now()) {
		s.publishEvents(ctx, b)
	}
	if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
		return nil, err
	}

	return s.toMetricsResponse(b), nil
}

// SendPaymentReminder sends one dunning reminder, guarded so that repeated
// sweep runs within the TTL window never double-remind
func (s *CollectionsService) SendPaymentReminder(ctx context.Context, companyID, bookingID uuid.UUID, req SendReminderRequest) (*ARMetricsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	if !b.BalanceDue().IsPositive() {
		return s.toMetricsResponse(b), nil
	}

	key := reminderKey(bookingID, s.clock.Now())
	fresh, err := s.idempotency.MarkProcessed(ctx, key, reminderTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.logger.Debug("payment reminder already sent today",
			zap.String("booking_id", bookingID.String()))
		return s.toMetricsResponse(b), nil
	}

	expected := b.GetVersion()
	if err := b.RecordPaymentReminder(req.ReminderType, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, shared.Notification{
			Recipient: b.ClientName,
			Template:  req.ReminderType,
			Variables: map[string]string{
				"booking_number": b.BookingNumber,
				"balance_due":    b.BalanceDue().String(),
				"days_past_due":  fmt.Sprintf("%d", b.DaysPastDue),
			},
		}); err != nil {
			s.logger.Warn("payment reminder notification failed",
				zap.String("booking_number", b.BookingNumber),
				zap.Error(err))
		}
	}

	return s.toMetricsResponse(b), nil
}

// AssignToCollections hands the receivable to an external collections agency
func (s *CollectionsService) AssignToCollections(ctx context.Context, companyID, bookingID uuid.UUID, req AssignToCollectionsRequest) (*ARMetricsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	expected := b.GetVersion()
	if err := b.AssignToCollections(req.Actor, req.Notes, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)
	return s.toMetricsResponse(b), nil
}

// WriteOffBadDebt abandons the outstanding balance with an audit trail
func (s *CollectionsService) WriteOffBadDebt(ctx context.Context, companyID, bookingID uuid.UUID, req WriteOffRequest) (*ARMetricsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	balance := b.BalanceDue()
	expected := b.GetVersion()
	if err := b.WriteOffBadDebt(req.Reason, req.Actor, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordBadDebtWriteOff(ctx, companyID, balance.Amount())
	}

	s.publishEvents(ctx, b)
	return s.toMetricsResponse(b), nil
}

// ARAgingSummary aggregates count, balance and expected collectible per
// aging bucket
func (s *CollectionsService) ARAgingSummary(ctx context.Context, companyID uuid.UUID) (*AgingSummaryResponse, error) {
	rows, err := s.bookings.AgingSummary(ctx, companyID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	expected := decimal.Zero
	for idx := range rows {
		rate := rows[idx].Bucket.ExpectedCollectionRate()
		rows[idx].ExpectedCollectible = rows[idx].Balance.Mul(rate).Round(2)
		total = total.Add(rows[idx].Balance)
		expected = expected.Add(rows[idx].ExpectedCollectible)
	}

	return &AgingSummaryResponse{
		Buckets:             rows,
		TotalBalance:        total,
		ExpectedCollectible: expected,
	}, nil
}

// RunCollectionsSweep recomputes AR metrics and escalates every outstanding
// booking for a company. Safe under at-least-once re-execution: metric
// recomputation is idempotent per day and reminders are TTL-guarded.
func (s *CollectionsService) RunCollectionsSweep(ctx context.Context, companyID uuid.UUID) (*SweepResult, error) {
	outstanding, err := s.bookings.FindOutstandingForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := &SweepResult{Examined: len(outstanding)}
	totalOutstanding := decimal.Zero

	for idx := range outstanding {
		b := &outstanding[idx]
		b.RestorePeriod()

		b.UpdateARMetrics(now)
		escalated := b.EscalateCollectionStatus(now)

		if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
			s.logger.Warn("collections sweep skipped a booking",
				zap.String("booking_number", b.BookingNumber),
				zap.Error(err))
			continue
		}
		if escalated {
			result.Escalated++
			s.publishEvents(ctx, b)
		}
		totalOutstanding = totalOutstanding.Add(b.BalanceDue().Amount())

		if b.IsOverdue() && !b.CollectionStatus.IsTerminal() {
			if _, err := s.SendPaymentReminder(ctx, companyID, b.ID, SendReminderRequest{ReminderType: "overdue_notice"}); err != nil {
				s.logger.Warn("collections sweep reminder failed",
					zap.String("booking_number", b.BookingNumber),
					zap.Error(err))
				continue
			}
			result.Reminded++
		}
	}

	if s.businessMetrics != nil {
		s.businessMetrics.SetOutstandingReceivable(ctx, companyID, totalOutstanding)
	}

	s.logger.Info("collections sweep completed",
		zap.String("company_id", companyID.String()),
		zap.Int("examined", result.Examined),
		zap.Int("escalated", result.Escalated),
		zap.Int("reminded", result.Reminded))

	return result, nil
}

func (s *CollectionsService) loadBooking(ctx context.Context, companyID, bookingID uuid.UUID) (*booking.Booking, error) {
	b, err := s.bookings.FindByIDForCompany(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	b.RestorePeriod()
	return b, nil
}

func (s *CollectionsService) toMetricsResponse(b *booking.Booking) *ARMetricsResponse {
	return &ARMetricsResponse{
		BookingID:        b.ID,
		PaymentDueDate:   b.PaymentDueDate,
		DaysPastDue:      b.DaysPastDue,
		AgingBucket:      b.AgingBucket.String(),
		CollectionStatus: b.CollectionStatus.String(),
		BalanceDue:       b.BalanceDue().Amount(),
	}
}

func (s *CollectionsService) publishEvents(ctx context.Context, b *booking.Booking) {
	if s.eventPublisher == nil {
		b.ClearDomainEvents()
		return
	}
	_ = s.eventPublisher.Publish(ctx, b.GetDomainEvents()...)
	b.ClearDomainEvents()
}

// reminderKey is the per-day idempotency key guarding reminder sends
func reminderKey(bookingID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("reminder:%s:%s", bookingID, now.Format("2006-01-02"))
}
