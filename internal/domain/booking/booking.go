package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Booking is the aggregate root of the reservation and financial lifecycle.
// It owns the line items, the cached money totals, the payment ledger, and
// the three coupled state machines: fulfillment status + quote sub-state,
// cancellation/refund, and receivable aging/collections.
//
// Subtotal, TaxTotal and GrandTotal are derived, cached fields. They are
// recomputed in memory whenever line items or tax configuration change and
// persisted in the same transaction, so partial recompute states are never
// externally observable.
type Booking struct {
	shared.CompanyAggregateRoot
	BookingNumber string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_booking_company_number,priority:2"`
	ClientID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientName    string    `gorm:"type:varchar(200);not null"`
	// ClientTaxID is the client's VAT-style identification number, consulted
	// for cross-border reverse charge
	ClientTaxID string `gorm:"type:varchar(50)"`
	// PaymentTermsDays is snapshotted from the client record; zero means the
	// 30-day default applies
	PaymentTermsDays int `gorm:"not null;default:0"`

	Period    valueobject.DateRange `gorm:"-"`
	StartDate time.Time             `gorm:"not null;index"`
	EndDate   time.Time             `gorm:"not null;index"`

	VenueCountry string `gorm:"type:varchar(100)"`
	VenueState   string `gorm:"type:varchar(100)"`
	VenueCity    string `gorm:"type:varchar(100)"`

	Status BookingStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`

	LineItems []LineItem `gorm:"foreignKey:BookingID;references:ID"`

	// Derived money totals (minor-unit exact decimals)
	Subtotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	GrandTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	// AmountPaid mirrors the received side of the payment ledger so
	// receivable reports can aggregate in SQL
	AmountPaid decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	// DefaultDiscountPercent applies to lines without their own discount
	DefaultDiscountPercent decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	DefaultTaxRateID       *uuid.UUID      `gorm:"type:uuid"`

	TaxExempt         bool            `gorm:"not null;default:false"`
	TaxExemptReason   string          `gorm:"type:varchar(500)"`
	TaxExemptCert     string          `gorm:"type:varchar(100)"`
	TaxOverride       bool            `gorm:"not null;default:false"`
	TaxOverrideAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxOverrideReason string          `gorm:"type:varchar(500)"`
	TaxOverrideActor  string          `gorm:"type:varchar(100)"`
	ReverseCharged    bool            `gorm:"not null;default:false"`

	// Quote sub-state (see quote.go)
	QuoteNumber        string      `gorm:"type:varchar(50);index"`
	QuoteStatus        QuoteStatus `gorm:"type:varchar(20);not null;default:'NONE'"`
	QuoteTerms         string      `gorm:"type:text"`
	QuoteExpiresAt     *time.Time  `gorm:"index"`
	QuoteSentAt        *time.Time
	QuoteViewedAt      *time.Time
	QuoteApprovedAt    *time.Time
	QuoteApprovedBy    string `gorm:"type:varchar(100)"`
	QuoteDeclinedAt    *time.Time
	QuoteDeclineReason string `gorm:"type:varchar(500)"`
	ConvertedFromQuote bool   `gorm:"not null;default:false"`

	// Cancellation & refund (see cancellation.go)
	CancellationPolicy        CancellationPolicy `gorm:"type:varchar(20);not null;default:'MODERATE'"`
	CancellationDeadlineHours int                `gorm:"not null;default:0"` // custom policy only
	CancellationFeePercent    decimal.Decimal    `gorm:"type:decimal(8,4);not null;default:0"`
	CancelledAt               *time.Time
	CancelledBy               string          `gorm:"type:varchar(100)"`
	CancelReason              string          `gorm:"type:varchar(500)"`
	RefundAmount              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RefundStatus              RefundStatus    `gorm:"type:varchar(20);not null;default:'NONE'"`
	RefundProcessedAt         *time.Time

	// Receivable / collections (see receivable.go)
	PaymentDueDate     *time.Time       `gorm:"index"`
	DaysPastDue        int              `gorm:"not null;default:0"`
	AgingBucket        AgingBucket      `gorm:"type:varchar(20);not null;default:'CURRENT';index"`
	CollectionStatus   CollectionStatus `gorm:"type:varchar(20);not null;default:'NONE'"`
	ReminderCount      int              `gorm:"not null;default:0"`
	LastReminderSentAt *time.Time
	Notes              CollectionNotes `gorm:"type:jsonb"`

	Payments PaymentLedger `gorm:"type:jsonb"`

	// Soft delete
	DeletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

// NewBooking creates a draft booking for a client and date range
func NewBooking(companyID uuid.UUID, bookingNumber string, clientID uuid.UUID, clientName string, period valueobject.DateRange, policy CancellationPolicy, now time.Time) (*Booking, error) {
	if bookingNumber == "" {
		return nil, shared.NewValidationError("Booking number cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	if clientName == "" {
		return nil, shared.NewValidationError("Client name cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.ErrInvalidDateRange
	}
	if policy == "" {
		policy = PolicyModerate
	}
	if !policy.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Unknown cancellation policy %q", policy))
	}

	b := &Booking{
		CompanyAggregateRoot:   shared.NewCompanyAggregateRootAt(companyID, now),
		BookingNumber:          bookingNumber,
		ClientID:               clientID,
		ClientName:             clientName,
		Period:                 period,
		StartDate:              period.Start(),
		EndDate:                period.End(),
		Status:                 BookingStatusDraft,
		LineItems:              make([]LineItem, 0),
		Subtotal:               decimal.Zero,
		TaxTotal:               decimal.Zero,
		GrandTotal:             decimal.Zero,
		DefaultDiscountPercent: decimal.Zero,
		TaxOverrideAmount:      decimal.Zero,
		CancellationPolicy:     policy,
		CancellationFeePercent: decimal.Zero,
		RefundAmount:           decimal.Zero,
		RefundStatus:           RefundStatusNone,
		QuoteStatus:            QuoteStatusNone,
		AgingBucket:            AgingBucketCurrent,
		CollectionStatus:       CollectionStatusNone,
		Notes:                  CollectionNotes{},
		Payments:               PaymentLedger{},
	}

	b.AddDomainEvent(NewBookingCreatedEvent(b))
	return b, nil
}

// RestorePeriod rebuilds the DateRange value object after loading from
// persistence, where only the raw start/end columns survive.
func (b *Booking) RestorePeriod() {
	if r, err := valueobject.NewDateRange(b.StartDate, b.EndDate); err == nil {
		b.Period = r
	}
}

// SetVenue records the venue location used for location-based tax lookup
func (b *Booking) SetVenue(country, state, city string) {
	b.VenueCountry = country
	b.VenueState = state
	b.VenueCity = city
	b.UpdatedAt = time.Now()
}

// CanModifyLines reports whether line items may still change. Once a booking
// holds inventory or is terminal, lines are frozen.
func (b *Booking) CanModifyLines() bool {
	return b.Status.IsDraftLike() && b.QuoteStatus != QuoteStatusApproved
}

// AddLineItem reserves a resource on this booking and reprices. The caller
// is responsible for the availability check-and-commit; this method only
// mutates the aggregate.
func (b *Booking) AddLineItem(resource catalog.Bookable, quantity int, taxable bool, now time.Time) (*LineItem, error) {
	if !b.CanModifyLines() {
		return nil, shared.NewStateConflictError(fmt.Sprintf("Cannot add line items to a booking in %s status", b.Status))
	}

	item, err := NewLineItem(b.ID, resource, quantity, taxable, now)
	if err != nil {
		return nil, err
	}

	b.LineItems = append(b.LineItems, *item)
	b.RecalculatePricing()
	b.UpdatedAt = now

	return item, nil
}

// UpdateLineItemQuantity changes a line's quantity and reprices
func (b *Booking) UpdateLineItemQuantity(itemID uuid.UUID, quantity int) error {
	if !b.CanModifyLines() {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot update line items on a booking in %s status", b.Status))
	}
	if quantity <= 0 {
		return shared.NewValidationError("Quantity must be positive")
	}

	for idx := range b.LineItems {
		if b.LineItems[idx].ID == itemID {
			b.LineItems[idx].Quantity = quantity
			b.LineItems[idx].UpdatedAt = time.Now()
			b.RecalculatePricing()
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("ITEM_NOT_FOUND", "Booking line item not found")
}

// SetLineItemDiscount sets or clears a line-level discount and reprices
func (b *Booking) SetLineItemDiscount(itemID uuid.UUID, percent *decimal.Decimal) error {
	if !b.CanModifyLines() {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot update line items on a booking in %s status", b.Status))
	}

	for idx := range b.LineItems {
		if b.LineItems[idx].ID == itemID {
			if err := b.LineItems[idx].SetDiscountPercent(percent); err != nil {
				return err
			}
			b.RecalculatePricing()
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("ITEM_NOT_FOUND", "Booking line item not found")
}

// RemoveLineItem removes a line and reprices
func (b *Booking) RemoveLineItem(itemID uuid.UUID) error {
	if !b.CanModifyLines() {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot remove line items from a booking in %s status", b.Status))
	}

	for idx, item := range b.LineItems {
		if item.ID == itemID {
			b.LineItems = append(b.LineItems[:idx], b.LineItems[idx+1:]...)
			b.RecalculatePricing()
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("ITEM_NOT_FOUND", "Booking line item not found")
}

// SetDefaultDiscount sets the booking-level discount applied to lines
// without their own discount
func (b *Booking) SetDefaultDiscount(percent decimal.Decimal) error {
	if !b.CanModifyLines() {
		return shared.NewStateConflictError("Cannot change discount on a committed booking")
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("Discount percent must be between 0 and 100")
	}
	b.DefaultDiscountPercent = percent
	b.RecalculatePricing()
	b.UpdatedAt = time.Now()
	return nil
}

// RentalDays returns the inclusive billable day count of the booking period
func (b *Booking) RentalDays() int64 {
	return b.Period.RentalDays()
}

// RecalculatePricing reprices every line and refreshes the cached subtotal.
// Tax is applied separately via ApplyTaxResult; the grand total tracks
// subtotal + tax at all times.
func (b *Booking) RecalculatePricing() {
	days := b.RentalDays()
	total := decimal.Zero
	for idx := range b.LineItems {
		b.LineItems[idx].reprice(days, b.DefaultDiscountPercent)
		total = total.Add(b.LineItems[idx].Subtotal)
	}
	b.Subtotal = total
	b.GrandTotal = b.Subtotal.Add(b.TaxTotal)
}

// LineTaxResult carries a tax engine result back onto one line
type LineTaxResult struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// ApplyTaxResult writes the tax engine's output into the cached totals and
// per-line detail. reverseCharged tags a zero total distinctly from an
// exemption.
func (b *Booking) ApplyTaxResult(taxTotal valueobject.Money, perLine map[uuid.UUID]LineTaxResult, reverseCharged bool) {
	for idx := range b.LineItems {
		if r, ok := perLine[b.LineItems[idx].ID]; ok {
			b.LineItems[idx].TaxAmount = r.Amount
			b.LineItems[idx].TaxRateUsed = r.Rate
		} else {
			b.LineItems[idx].TaxAmount = decimal.Zero
			b.LineItems[idx].TaxRateUsed = decimal.Zero
		}
	}
	b.TaxTotal = taxTotal.Amount()
	b.ReverseCharged = reverseCharged
	b.GrandTotal = b.Subtotal.Add(b.TaxTotal)
	b.UpdatedAt = time.Now()
}

// SetTaxExempt marks the booking exempt; the tax total is forced to zero on
// the next recalculation
func (b *Booking) SetTaxExempt(reason, certificate string) error {
	if reason == "" {
		return shared.NewValidationError("Tax exemption requires a reason")
	}
	b.TaxExempt = true
	b.TaxExemptReason = reason
	b.TaxExemptCert = certificate
	b.UpdatedAt = time.Now()
	return nil
}

// SetTaxOverride forces the booking tax total to a manual amount. The
// computed line detail is retained for audit.
func (b *Booking) SetTaxOverride(amount valueobject.Money, reason, actor string) error {
	if reason == "" {
		return shared.NewValidationError("Tax override requires a reason")
	}
	if actor == "" {
		return shared.NewValidationError("Tax override requires the acting user")
	}
	if amount.IsNegative() {
		return shared.NewValidationError("Tax override amount cannot be negative")
	}
	b.TaxOverride = true
	b.TaxOverrideAmount = amount.Amount()
	b.TaxOverrideReason = reason
	b.TaxOverrideActor = actor
	b.UpdatedAt = time.Now()
	return nil
}

// Confirm commits the booking to the calendar. The availability re-check
// happens inside the same transaction that persists this transition; see
// BookingRepository.ConfirmWithReservation.
func (b *Booking) Confirm(now time.Time) error {
	if !b.Status.CanTransitionTo(BookingStatusConfirmed) {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot confirm booking in %s status", b.Status))
	}
	if len(b.LineItems) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot confirm a booking without line items")
	}

	b.Status = BookingStatusConfirmed
	b.UpdatedAt = now
	b.AddDomainEvent(NewBookingConfirmedEvent(b))
	return nil
}

// Complete marks a confirmed or paid booking as completed after return
func (b *Booking) Complete(now time.Time) error {
	if !b.Status.CanTransitionTo(BookingStatusCompleted) {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot complete booking in %s status", b.Status))
	}
	b.Status = BookingStatusCompleted
	b.UpdatedAt = now
	b.AddDomainEvent(NewBookingCompletedEvent(b))
	return nil
}

// RecordPayment appends to the payment ledger. A received payment that
// clears the balance moves a confirmed booking to PAID and resets the
// receivable to current.
func (b *Booking) RecordPayment(pType PaymentType, amount valueobject.Money, reference string, now time.Time) error {
	if !pType.IsValid() {
		return shared.NewValidationError("Unknown payment type")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("Payment amount must be positive")
	}
	if b.Status == BookingStatusCancelled {
		return shared.NewStateConflictError("Cannot record payments against a cancelled booking")
	}

	b.Payments = append(b.Payments, NewPayment(pType, amount, reference, now))
	b.AmountPaid = b.Payments.TotalReceived().Amount()
	b.UpdatedAt = now

	if pType == PaymentTypeReceived {
		b.AddDomainEvent(NewPaymentRecordedEvent(b, amount))
		if !b.BalanceDue().IsPositive() {
			if b.Status == BookingStatusConfirmed {
				b.Status = BookingStatusPaid
			}
			// A cleared balance re-arms the reminder guard but never
			// demotes an already recorded collection status.
			b.DaysPastDue = 0
			b.AgingBucket = AgingBucketCurrent
		}
	}

	b.IncrementVersion()
	return nil
}

// BalanceDue is the grand total minus received payments
func (b *Booking) BalanceDue() valueobject.Money {
	return valueobject.NewMoneyUSD(b.GrandTotal).MustSubtract(b.Payments.TotalReceived())
}

// IsFullyPaid reports whether nothing is outstanding
func (b *Booking) IsFullyPaid() bool {
	return !b.BalanceDue().IsPositive()
}

// SubtotalMoney returns the cached subtotal as Money
func (b *Booking) SubtotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(b.Subtotal)
}

// TaxTotalMoney returns the cached tax total as Money
func (b *Booking) TaxTotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(b.TaxTotal)
}

// GrandTotalMoney returns the cached grand total as Money
func (b *Booking) GrandTotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(b.GrandTotal)
}

// GetLineItem returns a line item by ID
func (b *Booking) GetLineItem(itemID uuid.UUID) *LineItem {
	for idx := range b.LineItems {
		if b.LineItems[idx].ID == itemID {
			return &b.LineItems[idx]
		}
	}
	return nil
}

// SoftDelete marks the booking deleted without destroying the row
func (b *Booking) SoftDelete(now time.Time) {
	b.DeletedAt = &now
	b.UpdatedAt = now
}

// IsDeleted reports whether the booking was soft-deleted
func (b *Booking) IsDeleted() bool {
	return b.DeletedAt != nil
}
