package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Receivable aging and collections. These fields are recomputed by the daily
// sweep and read by the aging report; escalation only ever advances.

// DefaultPaymentTermsDays applies when the client record carries no terms
const DefaultPaymentTermsDays = 30

// AgingBucket classifies a receivable by days past due
type AgingBucket string

const (
	AgingBucketCurrent AgingBucket = "CURRENT"
	AgingBucket0To30   AgingBucket = "DAYS_0_30"
	AgingBucket31To60  AgingBucket = "DAYS_31_60"
	AgingBucket61To90  AgingBucket = "DAYS_61_90"
	AgingBucket90Plus  AgingBucket = "DAYS_90_PLUS"
)

// IsValid checks if the bucket is a valid AgingBucket
func (a AgingBucket) IsValid() bool {
	switch a {
	case AgingBucketCurrent, AgingBucket0To30, AgingBucket31To60, AgingBucket61To90, AgingBucket90Plus:
		return true
	}
	return false
}

// String returns the string representation of AgingBucket
func (a AgingBucket) String() string {
	return string(a)
}

// BucketForDaysPastDue maps days past due to a bucket. A receivable becomes
// past due on day one; day zero is current.
func BucketForDaysPastDue(days int) AgingBucket {
	switch {
	case days <= 0:
		return AgingBucketCurrent
	case days <= 30:
		return AgingBucket0To30
	case days <= 60:
		return AgingBucket31To60
	case days <= 90:
		return AgingBucket61To90
	default:
		return AgingBucket90Plus
	}
}

// ExpectedCollectionRate returns the historical collectible fraction per
// bucket, used for expected-value reporting
func (a AgingBucket) ExpectedCollectionRate() decimal.Decimal {
	switch a {
	case AgingBucketCurrent:
		return decimal.NewFromInt(1)
	case AgingBucket0To30:
		return decimal.NewFromFloat(0.90)
	case AgingBucket31To60:
		return decimal.NewFromFloat(0.75)
	case AgingBucket61To90:
		return decimal.NewFromFloat(0.60)
	case AgingBucket90Plus:
		return decimal.NewFromFloat(0.25)
	}
	return decimal.Zero
}

// CollectionStatus tracks the dunning escalation ladder. rank() orders the
// ladder so the sweep can only ever move forward.
type CollectionStatus string

const (
	CollectionStatusNone          CollectionStatus = "NONE"
	CollectionStatusReminderSent  CollectionStatus = "REMINDER_SENT"
	CollectionStatusFirstNotice   CollectionStatus = "FIRST_NOTICE"
	CollectionStatusSecondNotice  CollectionStatus = "SECOND_NOTICE"
	CollectionStatusFinalNotice   CollectionStatus = "FINAL_NOTICE"
	CollectionStatusInCollections CollectionStatus = "IN_COLLECTIONS"
	CollectionStatusWrittenOff    CollectionStatus = "WRITTEN_OFF"
)

// IsValid checks if the status is a valid CollectionStatus
func (c CollectionStatus) IsValid() bool {
	switch c {
	case CollectionStatusNone, CollectionStatusReminderSent, CollectionStatusFirstNotice,
		CollectionStatusSecondNotice, CollectionStatusFinalNotice,
		CollectionStatusInCollections, CollectionStatusWrittenOff:
		return true
	}
	return false
}

// String returns the string representation of CollectionStatus
func (c CollectionStatus) String() string {
	return string(c)
}

// IsTerminal returns true for the administrative end states
func (c CollectionStatus) IsTerminal() bool {
	return c == CollectionStatusInCollections || c == CollectionStatusWrittenOff
}

func (c CollectionStatus) rank() int {
	switch c {
	case CollectionStatusNone:
		return 0
	case CollectionStatusReminderSent:
		return 1
	case CollectionStatusFirstNotice:
		return 2
	case CollectionStatusSecondNotice:
		return 3
	case CollectionStatusFinalNotice:
		return 4
	case CollectionStatusInCollections:
		return 5
	case CollectionStatusWrittenOff:
		return 6
	}
	return -1
}

// statusForDaysPastDue maps overdue age onto the escalation ladder
func statusForDaysPastDue(days int) CollectionStatus {
	switch {
	case days >= 90:
		return CollectionStatusInCollections
	case days >= 60:
		return CollectionStatusFinalNotice
	case days >= 30:
		return CollectionStatusSecondNotice
	case days >= 14:
		return CollectionStatusFirstNotice
	case days >= 7:
		return CollectionStatusReminderSent
	}
	return CollectionStatusNone
}

// UpdateARMetrics recomputes the due date, days past due and aging bucket.
// Idempotent for a given day; safe under at-least-once sweep re-execution.
// Fully paid bookings are always current regardless of elapsed time.
func (b *Booking) UpdateARMetrics(now time.Time) {
	terms := b.PaymentTermsDays
	if terms <= 0 {
		terms = DefaultPaymentTermsDays
	}
	due := b.EndDate.AddDate(0, 0, terms)
	b.PaymentDueDate = &due

	if !b.BalanceDue().IsPositive() {
		b.DaysPastDue = 0
		b.AgingBucket = AgingBucketCurrent
		return
	}

	days := int(now.Sub(due).Hours() / 24)
	if days < 0 {
		days = 0
	}
	b.DaysPastDue = days
	b.AgingBucket = BucketForDaysPastDue(days)
	b.UpdatedAt = now
}

// EscalateCollectionStatus advances the collection status per the overdue
// thresholds. It never regresses and is a no-op for fully paid bookings or
// terminal statuses; payment is the only path back down (via RecordPayment).
func (b *Booking) EscalateCollectionStatus(now time.Time) bool {
	if !b.BalanceDue().IsPositive() {
		return false
	}
	if b.CollectionStatus.IsTerminal() {
		return false
	}

	target := statusForDaysPastDue(b.DaysPastDue)
	if target.rank() <= b.CollectionStatus.rank() {
		return false
	}

	from := b.CollectionStatus
	b.CollectionStatus = target
	b.UpdatedAt = now
	b.AddDomainEvent(NewCollectionEscalatedEvent(b, from, target))
	return true
}

// RecordPaymentReminder stamps a sent reminder and triggers escalation.
// No-op when nothing is owed. The "already reminded today" guard lives in
// the application layer's idempotency store, not here.
func (b *Booking) RecordPaymentReminder(reminderType string, now time.Time) error {
	if !b.BalanceDue().IsPositive() {
		return nil
	}
	if reminderType == "" {
		return shared.NewValidationError("Reminder type cannot be empty")
	}

	b.ReminderCount++
	b.LastReminderSentAt = &now
	b.EscalateCollectionStatus(now)
	b.UpdatedAt = now
	b.AddDomainEvent(NewPaymentReminderSentEvent(b, reminderType))
	return nil
}

// AddCollectionNote appends an audit note on the receivable
func (b *Booking) AddCollectionNote(actor, note string, now time.Time) error {
	if actor == "" {
		return shared.NewValidationError("Collection note requires the acting user")
	}
	if note == "" {
		return shared.NewValidationError("Collection note cannot be empty")
	}
	b.Notes = append(b.Notes, CollectionNote{
		ID:        uuid.New(),
		Actor:     actor,
		Note:      note,
		WrittenAt: now,
	})
	b.UpdatedAt = now
	return nil
}

// AssignToCollections hands the receivable to an external collections agency
func (b *Booking) AssignToCollections(actor, notes string, now time.Time) error {
	if actor == "" {
		return shared.NewValidationError("Collections assignment requires the acting user")
	}
	if b.CollectionStatus == CollectionStatusWrittenOff {
		return shared.NewStateConflictError("Cannot assign a written-off receivable to collections")
	}
	if !b.BalanceDue().IsPositive() {
		return shared.NewStateConflictError("Cannot assign a settled booking to collections")
	}

	b.CollectionStatus = CollectionStatusInCollections
	note := fmt.Sprintf("Assigned to collections by %s", actor)
	if notes != "" {
		note = fmt.Sprintf("%s: %s", note, notes)
	}
	if err := b.AddCollectionNote(actor, note, now); err != nil {
		return err
	}
	b.UpdatedAt = now
	b.IncrementVersion()
	return nil
}

// WriteOffBadDebt abandons the outstanding balance. The audit note embeds
// the balance at the moment of write-off.
func (b *Booking) WriteOffBadDebt(reason, actor string, now time.Time) error {
	if actor == "" {
		return shared.NewValidationError("Write-off requires the acting user")
	}
	if reason == "" {
		return shared.NewValidationError("Write-off requires a reason")
	}
	if b.CollectionStatus == CollectionStatusWrittenOff {
		return shared.NewStateConflictError("Receivable is already written off")
	}
	balance := b.BalanceDue()
	if !balance.IsPositive() {
		return shared.NewStateConflictError("Cannot write off a settled booking")
	}

	b.CollectionStatus = CollectionStatusWrittenOff
	note := fmt.Sprintf("Wrote off %s as bad debt: %s", balance.StringFixed(2), reason)
	if err := b.AddCollectionNote(actor, note, now); err != nil {
		return err
	}
	b.UpdatedAt = now
	b.AddDomainEvent(NewBadDebtWrittenOffEvent(b, balance))
	b.IncrementVersion()
	return nil
}

// ExpectedCollectible is the balance due discounted by the bucket's
// historical collection rate
func (b *Booking) ExpectedCollectible() valueobject.Money {
	return b.BalanceDue().Multiply(b.AgingBucket.ExpectedCollectionRate()).RoundToCents()
}

// IsOverdue reports whether the booking carries an unpaid past-due balance
func (b *Booking) IsOverdue() bool {
	return b.DaysPastDue > 0 && b.BalanceDue().IsPositive()
}
