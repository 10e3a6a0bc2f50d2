package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event types for the booking aggregate
const (
	EventTypeBookingCreated      = "booking.created"
	EventTypeBookingConfirmed    = "booking.confirmed"
	EventTypeBookingCompleted    = "booking.completed"
	EventTypeBookingCancelled    = "booking.cancelled"
	EventTypeRefundProcessed     = "booking.refund_processed"
	EventTypePaymentRecorded     = "booking.payment_recorded"
	EventTypeQuoteSent           = "booking.quote.sent"
	EventTypeQuoteApproved       = "booking.quote.approved"
	EventTypeQuoteDeclined       = "booking.quote.declined"
	EventTypeQuoteExpired        = "booking.quote.expired"
	EventTypeCollectionEscalated = "booking.collection.escalated"
	EventTypePaymentReminderSent = "booking.collection.reminder_sent"
	EventTypeBadDebtWrittenOff   = "booking.collection.written_off"
)

// BookingCreatedEvent is emitted when a draft booking is created
type BookingCreatedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string    `json:"booking_number"`
	ClientID      uuid.UUID `json:"client_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// NewBookingCreatedEvent creates a BookingCreatedEvent
func NewBookingCreatedEvent(b *Booking) *BookingCreatedEvent {
	return &BookingCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBookingCreated, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		ClientID:        b.ClientID,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
	}
}

// BookingConfirmedEvent is emitted when a booking commits to the calendar
type BookingConfirmedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
}

// NewBookingConfirmedEvent creates a BookingConfirmedEvent
func NewBookingConfirmedEvent(b *Booking) *BookingConfirmedEvent {
	return &BookingConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBookingConfirmed, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		GrandTotal:      b.GrandTotal,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
	}
}

// BookingCompletedEvent is emitted after the rental returns
type BookingCompletedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string `json:"booking_number"`
}

// NewBookingCompletedEvent creates a BookingCompletedEvent
func NewBookingCompletedEvent(b *Booking) *BookingCompletedEvent {
	return &BookingCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBookingCompleted, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
	}
}

// BookingCancelledEvent is emitted when a booking is cancelled; the refund
// amount is what phase two will move
type BookingCancelledEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	CancelledBy   string          `json:"cancelled_by"`
	Reason        string          `json:"reason"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
}

// NewBookingCancelledEvent creates a BookingCancelledEvent
func NewBookingCancelledEvent(b *Booking, refund valueobject.Money) *BookingCancelledEvent {
	return &BookingCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBookingCancelled, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		CancelledBy:     b.CancelledBy,
		Reason:          b.CancelReason,
		RefundAmount:    refund.Amount(),
	}
}

// RefundProcessedEvent is emitted when the pending refund completes
type RefundProcessedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
}

// NewRefundProcessedEvent creates a RefundProcessedEvent
func NewRefundProcessedEvent(b *Booking) *RefundProcessedEvent {
	return &RefundProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundProcessed, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		RefundAmount:    b.RefundAmount,
	}
}

// PaymentRecordedEvent is emitted for received payments only
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	Amount        decimal.Decimal `json:"amount"`
	FullyPaid     bool            `json:"fully_paid"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(b *Booking, amount valueobject.Money) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		Amount:          amount.Amount(),
		FullyPaid:       b.IsFullyPaid(),
	}
}

// QuoteSentEvent is emitted when a quote goes out to the client
type QuoteSentEvent struct {
	shared.BaseDomainEvent
	QuoteNumber string     `json:"quote_number"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// NewQuoteSentEvent creates a QuoteSentEvent
func NewQuoteSentEvent(b *Booking) *QuoteSentEvent {
	return &QuoteSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteSent, "Booking", b.ID, b.CompanyID),
		QuoteNumber:     b.QuoteNumber,
		ExpiresAt:       b.QuoteExpiresAt,
	}
}

// QuoteApprovedEvent is emitted when the client accepts a quote
type QuoteApprovedEvent struct {
	shared.BaseDomainEvent
	QuoteNumber string          `json:"quote_number"`
	ApprovedBy  string          `json:"approved_by"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// NewQuoteApprovedEvent creates a QuoteApprovedEvent
func NewQuoteApprovedEvent(b *Booking) *QuoteApprovedEvent {
	return &QuoteApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteApproved, "Booking", b.ID, b.CompanyID),
		QuoteNumber:     b.QuoteNumber,
		ApprovedBy:      b.QuoteApprovedBy,
		GrandTotal:      b.GrandTotal,
	}
}

// QuoteDeclinedEvent is emitted when the client declines a quote
type QuoteDeclinedEvent struct {
	shared.BaseDomainEvent
	QuoteNumber string `json:"quote_number"`
	Reason      string `json:"reason"`
}

// NewQuoteDeclinedEvent creates a QuoteDeclinedEvent
func NewQuoteDeclinedEvent(b *Booking) *QuoteDeclinedEvent {
	return &QuoteDeclinedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteDeclined, "Booking", b.ID, b.CompanyID),
		QuoteNumber:     b.QuoteNumber,
		Reason:          b.QuoteDeclineReason,
	}
}

// QuoteExpiredEvent is emitted by the expiry sweep or a lazy expiry check
type QuoteExpiredEvent struct {
	shared.BaseDomainEvent
	QuoteNumber string `json:"quote_number"`
}

// NewQuoteExpiredEvent creates a QuoteExpiredEvent
func NewQuoteExpiredEvent(b *Booking) *QuoteExpiredEvent {
	return &QuoteExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteExpired, "Booking", b.ID, b.CompanyID),
		QuoteNumber:     b.QuoteNumber,
	}
}

// CollectionEscalatedEvent is emitted when the dunning ladder advances
type CollectionEscalatedEvent struct {
	shared.BaseDomainEvent
	BookingNumber string           `json:"booking_number"`
	From          CollectionStatus `json:"from"`
	To            CollectionStatus `json:"to"`
	DaysPastDue   int              `json:"days_past_due"`
}

// NewCollectionEscalatedEvent creates a CollectionEscalatedEvent
func NewCollectionEscalatedEvent(b *Booking, from, to CollectionStatus) *CollectionEscalatedEvent {
	return &CollectionEscalatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionEscalated, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		From:            from,
		To:              to,
		DaysPastDue:     b.DaysPastDue,
	}
}

// PaymentReminderSentEvent is emitted when a dunning reminder goes out
type PaymentReminderSentEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	ReminderType  string          `json:"reminder_type"`
	ReminderCount int             `json:"reminder_count"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
}

// NewPaymentReminderSentEvent creates a PaymentReminderSentEvent
func NewPaymentReminderSentEvent(b *Booking, reminderType string) *PaymentReminderSentEvent {
	return &PaymentReminderSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReminderSent, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		ReminderType:    reminderType,
		ReminderCount:   b.ReminderCount,
		BalanceDue:      b.BalanceDue().Amount(),
	}
}

// BadDebtWrittenOffEvent is emitted when a receivable is abandoned
type BadDebtWrittenOffEvent struct {
	shared.BaseDomainEvent
	BookingNumber string          `json:"booking_number"`
	Amount        decimal.Decimal `json:"amount"`
}

// NewBadDebtWrittenOffEvent creates a BadDebtWrittenOffEvent
func NewBadDebtWrittenOffEvent(b *Booking, balance valueobject.Money) *BadDebtWrittenOffEvent {
	return &BadDebtWrittenOffEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBadDebtWrittenOff, "Booking", b.ID, b.CompanyID),
		BookingNumber:   b.BookingNumber,
		Amount:          balance.Amount(),
	}
}
