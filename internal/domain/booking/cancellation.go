package booking

import (
	"fmt"
	"time"

	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CancellationPolicy names the refund schedule snapshotted onto the booking
// at creation. Policy changes on the company never retroactively alter an
// existing booking's schedule.
type CancellationPolicy string

const (
	PolicyFlexible CancellationPolicy = "FLEXIBLE"
	PolicyModerate CancellationPolicy = "MODERATE"
	PolicyStrict   CancellationPolicy = "STRICT"
	PolicyNoRefund CancellationPolicy = "NO_REFUND"
	PolicyCustom   CancellationPolicy = "CUSTOM"
)

// IsValid checks if the policy is a valid CancellationPolicy
func (p CancellationPolicy) IsValid() bool {
	switch p {
	case PolicyFlexible, PolicyModerate, PolicyStrict, PolicyNoRefund, PolicyCustom:
		return true
	}
	return false
}

// String returns the string representation of CancellationPolicy
func (p CancellationPolicy) String() string {
	return string(p)
}

// RefundPercent returns the refundable share of the grand total for a
// cancellation at the given lead time before pickup:
//
//	FLEXIBLE:  100% at 7+ days, 0% inside
//	MODERATE:  100% at 14+ days, 50% from 7 to 14 days, 0% inside
//	STRICT:    100% at 30+ days, 50% from 14 to 30 days, 0% inside
//	NO_REFUND: always 0%
//	CUSTOM:    100% outside the deadline, (100 - fee)% inside
//
// Lead times at an exact boundary fall into the more generous band.
func (p CancellationPolicy) RefundPercent(hoursUntilStart int64, customDeadlineHours int, customFeePercent decimal.Decimal) decimal.Decimal {
	full := decimal.NewFromInt(100)
	half := decimal.NewFromInt(50)

	switch p {
	case PolicyFlexible:
		if hoursUntilStart >= 7*24 {
			return full
		}
	case PolicyModerate:
		if hoursUntilStart >= 14*24 {
			return full
		}
		if hoursUntilStart >= 7*24 {
			return half
		}
	case PolicyStrict:
		if hoursUntilStart >= 30*24 {
			return full
		}
		if hoursUntilStart >= 14*24 {
			return half
		}
	case PolicyNoRefund:
		return decimal.Zero
	case PolicyCustom:
		if hoursUntilStart >= int64(customDeadlineHours) {
			return full
		}
		pct := full.Sub(customFeePercent)
		if pct.IsNegative() {
			return decimal.Zero
		}
		return pct
	}
	return decimal.Zero
}

// SetCustomCancellationTerms configures the custom policy's deadline and fee
func (b *Booking) SetCustomCancellationTerms(deadlineHours int, feePercent decimal.Decimal) error {
	if b.CancellationPolicy != PolicyCustom {
		return shared.NewStateConflictError("Custom cancellation terms require the CUSTOM policy")
	}
	if deadlineHours < 0 {
		return shared.NewValidationError("Cancellation deadline cannot be negative")
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("Cancellation fee percent must be between 0 and 100")
	}
	b.CancellationDeadlineHours = deadlineHours
	b.CancellationFeePercent = feePercent
	b.UpdatedAt = time.Now()
	return nil
}

// RefundAmountAt computes the refund owed for a cancellation at the given
// instant, per the booking's policy. The base is the grand total, regardless
// of how much has actually been paid; the application layer caps the actual
// payout at amounts received.
func (b *Booking) RefundAmountAt(now time.Time) valueobject.Money {
	hours := b.Period.HoursUntilStart(now)
	if hours < 0 {
		hours = 0
	}
	pct := b.CancellationPolicy.RefundPercent(hours, b.CancellationDeadlineHours, b.CancellationFeePercent)
	return b.GrandTotalMoney().CalculatePercentage(pct).RoundToCents()
}

// Cancel moves the booking to CANCELLED, releasing its reservations and
// computing the refund owed. Refund money movement is a second phase; see
// ProcessRefund.
func (b *Booking) Cancel(actor, reason string, now time.Time) error {
	if !b.Status.CanTransitionTo(BookingStatusCancelled) {
		return shared.NewStateConflictError(fmt.Sprintf("Cannot cancel booking in %s status", b.Status))
	}
	if actor == "" {
		return shared.NewValidationError("Cancellation requires the acting user")
	}
	if reason == "" {
		return shared.NewValidationError("Cancellation requires a reason")
	}

	refund := b.RefundAmountAt(now)

	b.Status = BookingStatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = actor
	b.CancelReason = reason
	b.RefundAmount = refund.Amount()
	if refund.IsPositive() {
		b.RefundStatus = RefundStatusPending
	} else {
		b.RefundStatus = RefundStatusNotApplicable
	}
	b.UpdatedAt = now

	b.AddDomainEvent(NewBookingCancelledEvent(b, refund))
	b.IncrementVersion()
	return nil
}

// ProcessRefund completes the second phase of cancellation once the payment
// provider confirms the money movement
func (b *Booking) ProcessRefund(now time.Time) error {
	if b.Status != BookingStatusCancelled {
		return shared.NewStateConflictError("Refunds only apply to cancelled bookings")
	}
	if b.RefundStatus != RefundStatusPending {
		return shared.NewStateConflictError(fmt.Sprintf("No pending refund to process (refund status %s)", b.RefundStatus))
	}

	b.RefundStatus = RefundStatusCompleted
	b.RefundProcessedAt = &now
	b.UpdatedAt = now
	b.AddDomainEvent(NewRefundProcessedEvent(b))
	b.IncrementVersion()
	return nil
}

// RefundMoney returns the computed refund as Money
func (b *Booking) RefundMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(b.RefundAmount)
}

// RefundAllowed reports whether cancelling now would yield any refund.
// Pure predicate; nothing is mutated.
func (b *Booking) RefundAllowed(now time.Time) bool {
	return b.RefundAmountAt(now).IsPositive()
}

// PastCancellationDeadline reports whether the full-refund window has
// closed under the booking's policy
func (b *Booking) PastCancellationDeadline(now time.Time) bool {
	hours := b.Period.HoursUntilStart(now)
	if hours < 0 {
		hours = 0
	}
	full := decimal.NewFromInt(100)
	pct := b.CancellationPolicy.RefundPercent(hours, b.CancellationDeadlineHours, b.CancellationFeePercent)
	return pct.LessThan(full)
}

// IsCancelled reports whether the booking was cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}
