package booking

// BookingStatus is the fulfillment status of a booking
type BookingStatus string

const (
	BookingStatusDraft     BookingStatus = "DRAFT"
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusDraft, BookingStatusPending, BookingStatusConfirmed,
		BookingStatusPaid, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	switch s {
	case BookingStatusDraft:
		return target == BookingStatusPending || target == BookingStatusConfirmed || target == BookingStatusCancelled
	case BookingStatusPending:
		return target == BookingStatusConfirmed || target == BookingStatusCancelled
	case BookingStatusConfirmed:
		return target == BookingStatusPaid || target == BookingStatusCancelled || target == BookingStatusCompleted
	case BookingStatusPaid:
		return target == BookingStatusCompleted || target == BookingStatusCancelled
	case BookingStatusCancelled, BookingStatusCompleted:
		return false // Terminal states
	}
	return false
}

// IsTerminal returns true if the booking is in a terminal state
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// IsDraftLike returns true while the booking has not been committed to the
// calendar. Quote sub-states are only meaningful here.
func (s BookingStatus) IsDraftLike() bool {
	return s == BookingStatusDraft || s == BookingStatusPending
}

// HoldsInventory returns true for statuses whose reservations consume
// bookable capacity.
func (s BookingStatus) HoldsInventory() bool {
	return s == BookingStatusConfirmed || s == BookingStatusPaid
}

// QuoteStatus is the quote sub-state, valid only while the booking status is
// draft-like. Transitions are strictly monotonic through
// draft -> sent -> viewed -> approved|declined, except expired, which can
// preempt draft/sent/viewed once past the expiry instant.
type QuoteStatus string

const (
	QuoteStatusNone     QuoteStatus = "NONE"
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusViewed   QuoteStatus = "VIEWED"
	QuoteStatusApproved QuoteStatus = "APPROVED"
	QuoteStatusDeclined QuoteStatus = "DECLINED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// IsValid checks if the status is a valid QuoteStatus
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusNone, QuoteStatusDraft, QuoteStatusSent, QuoteStatusViewed,
		QuoteStatusApproved, QuoteStatusDeclined, QuoteStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of QuoteStatus
func (s QuoteStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the quote can no longer move
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusApproved || s == QuoteStatusDeclined || s == QuoteStatusExpired
}

// CanExpire returns true for the states the time-driven expiry may preempt
func (s QuoteStatus) CanExpire() bool {
	return s == QuoteStatusDraft || s == QuoteStatusSent || s == QuoteStatusViewed
}

// RefundStatus tracks the two-phase refund lifecycle after cancellation
type RefundStatus string

const (
	RefundStatusNone          RefundStatus = "NONE"
	RefundStatusPending       RefundStatus = "PENDING"
	RefundStatusCompleted     RefundStatus = "COMPLETED"
	RefundStatusNotApplicable RefundStatus = "NOT_APPLICABLE"
)

// IsValid checks if the status is a valid RefundStatus
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusNone, RefundStatusPending, RefundStatusCompleted, RefundStatusNotApplicable:
		return true
	}
	return false
}
