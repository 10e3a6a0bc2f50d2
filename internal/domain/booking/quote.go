package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
)

// Quote lifecycle methods. A quote is not a separate aggregate: it is a
// sub-state of a draft-like booking. Converting a draft to a quote freezes
// nothing; approval is what promotes the booking toward confirmation.

// ConvertToQuote starts the quote lifecycle on a draft booking
func (b *Booking) ConvertToQuote(quoteNumber, terms string, expiresAt *time.Time, now time.Time) error {
	if !b.Status.IsDraftLike() {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot quote a booking in %s status", b.Status))
	}
	if b.QuoteStatus != QuoteStatusNone {
		return shared.NewStateConflictError(fmt.Sprintf("Booking already has a quote in %s status", b.QuoteStatus))
	}
	if quoteNumber == "" {
		return shared.NewValidationError("Quote number cannot be empty")
	}
	if len(b.LineItems) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot quote a booking without line items")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return shared.NewValidationError("Quote expiry must be in the future")
	}

	b.QuoteNumber = quoteNumber
	b.QuoteTerms = terms
	b.QuoteExpiresAt = expiresAt
	b.QuoteStatus = QuoteStatusDraft
	b.UpdatedAt = now
	return nil
}

// SendQuote marks the quote as delivered to the client. Re-sending an
// already-sent quote is allowed and re-stamps the delivery time.
func (b *Booking) SendQuote(now time.Time) error {
	if b.QuoteStatus != QuoteStatusDraft && b.QuoteStatus != QuoteStatusSent {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot send a quote in %s status", b.QuoteStatus))
	}
	if b.QuoteExpired(now) {
		return b.MarkQuoteExpired(now)
	}

	b.QuoteStatus = QuoteStatusSent
	b.QuoteSentAt = &now
	b.UpdatedAt = now
	b.AddDomainEvent(NewQuoteSentEvent(b))
	return nil
}

// MarkQuoteViewed records the client opening the quote. Repeat views are
// idempotent; only the first view timestamp is kept.
func (b *Booking) MarkQuoteViewed(now time.Time) error {
	switch b.QuoteStatus {
	case QuoteStatusViewed:
		return nil
	case QuoteStatusSent:
	default:
		return shared.NewStateConflictError(fmt.Sprintf("Cannot view a quote in %s status", b.QuoteStatus))
	}
	if b.QuoteExpired(now) {
		return b.MarkQuoteExpired(now)
	}

	b.QuoteStatus = QuoteStatusViewed
	b.QuoteViewedAt = &now
	b.UpdatedAt = now
	return nil
}

// ApproveQuote accepts the quote and confirms the booking in the same step.
// The caller is expected to persist through the atomic reservation path so
// availability is re-checked inside the confirming transaction.
func (b *Booking) ApproveQuote(approvedBy string, now time.Time) error {
	if b.QuoteStatus != QuoteStatusSent && b.QuoteStatus != QuoteStatusViewed {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot approve a quote in %s status", b.QuoteStatus))
	}
	if approvedBy == "" {
		return shared.NewValidationError("Quote approval requires the approving party")
	}
	if b.QuoteExpired(now) {
		if err := b.MarkQuoteExpired(now); err != nil {
			return err
		}
		return shared.NewStateConflictError("Quote has expired and can no longer be approved")
	}

	b.QuoteStatus = QuoteStatusApproved
	b.QuoteApprovedAt = &now
	b.QuoteApprovedBy = approvedBy
	b.ConvertedFromQuote = true
	b.UpdatedAt = now
	b.AddDomainEvent(NewQuoteApprovedEvent(b))
	return b.Confirm(now)
}

// DeclineQuote rejects the quote; the booking stays draft-like and may be
// re-quoted by duplication
func (b *Booking) DeclineQuote(reason string, now time.Time) error {
	if b.QuoteStatus != QuoteStatusSent && b.QuoteStatus != QuoteStatusViewed {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot decline a quote in %s status", b.QuoteStatus))
	}

	b.QuoteStatus = QuoteStatusDeclined
	b.QuoteDeclinedAt = &now
	b.QuoteDeclineReason = reason
	b.UpdatedAt = now
	b.AddDomainEvent(NewQuoteDeclinedEvent(b))
	return nil
}

// QuoteExpired reports whether the expiry instant has passed. Quotes with no
// expiry never expire.
func (b *Booking) QuoteExpired(now time.Time) bool {
	return b.QuoteExpiresAt != nil && !now.Before(*b.QuoteExpiresAt)
}

// MarkQuoteExpired moves an expirable quote to EXPIRED. The expiry sweep and
// the lazy checks in Send/View/Approve both funnel through here.
func (b *Booking) MarkQuoteExpired(now time.Time) error {
	if !b.QuoteStatus.CanExpire() {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot expire a quote in %s status", b.QuoteStatus))
	}

	b.QuoteStatus = QuoteStatusExpired
	b.UpdatedAt = now
	b.AddDomainEvent(NewQuoteExpiredEvent(b))
	return nil
}

// DuplicateAsQuote creates a fresh draft booking from this one: same client,
// same lines at their snapshotted rates, new identity, clean quote and
// financial state. Used to re-quote after a decline or expiry.
func (b *Booking) DuplicateAsQuote(bookingNumber string, period valueobject.DateRange, now time.Time) (*Booking, error) {
	if period.IsZero() {
		period = b.Period
	}

	dup, err := NewBooking(b.CompanyID, bookingNumber, b.ClientID, b.ClientName, period, b.CancellationPolicy, now)
	if err != nil {
		return nil, err
	}

	dup.ClientTaxID = b.ClientTaxID
	dup.PaymentTermsDays = b.PaymentTermsDays
	dup.VenueCountry = b.VenueCountry
	dup.VenueState = b.VenueState
	dup.VenueCity = b.VenueCity
	dup.DefaultDiscountPercent = b.DefaultDiscountPercent
	dup.DefaultTaxRateID = b.DefaultTaxRateID
	dup.CancellationDeadlineHours = b.CancellationDeadlineHours
	dup.CancellationFeePercent = b.CancellationFeePercent
	dup.QuoteTerms = b.QuoteTerms

	for _, item := range b.LineItems {
		copied := item
		copied.ID = uuid.New()
		copied.BookingID = dup.ID
		copied.TaxAmount = item.TaxAmount.Copy()
		copied.TaxRateUsed = item.TaxRateUsed.Copy()
		copied.CreatedAt = now
		copied.UpdatedAt = now
		if item.DiscountPercent != nil {
			d := item.DiscountPercent.Copy()
			copied.DiscountPercent = &d
		}
		dup.LineItems = append(dup.LineItems, copied)
	}

	dup.RecalculatePricing()
	return dup, nil
}
