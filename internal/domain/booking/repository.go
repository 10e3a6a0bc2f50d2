package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ReservationUsage is one committed reservation of a bookable resource,
// as read by the availability engine
type ReservationUsage struct {
	BookingID  uuid.UUID
	BookableID uuid.UUID
	Quantity   int
	Period     valueobject.DateRange
}

// AgingSummaryRow is one bucket of the AR aging report
type AgingSummaryRow struct {
	Bucket              AgingBucket     `json:"bucket"`
	Count               int             `json:"count"`
	Balance             decimal.Decimal `json:"balance"`
	ExpectedCollectible decimal.Decimal `json:"expected_collectible"`
}

// BookingRepository is the persistence port for the booking aggregate
type BookingRepository interface {
	shared.CompanyRepository[Booking]

	// SaveWithVersion persists the aggregate with an optimistic concurrency
	// check; returns shared.ErrConcurrencyConflict (retryable) if the stored
	// version moved underneath us.
	SaveWithVersion(ctx context.Context, b *Booking, expectedVersion int) error

	// ConfirmWithReservation re-validates availability for every
	// capacity-constrained line inside the same transaction that persists
	// the CONFIRMED transition, serializing commits per resource so two
	// racing confirmations cannot both succeed past capacity. Returns a
	// CapacityError when the re-check fails.
	ConfirmWithReservation(ctx context.Context, b *Booking) error

	// GenerateBookingNumber issues the next sequential booking number for a
	// company (BK-YYYYMMDD-NNNN)
	GenerateBookingNumber(ctx context.Context, companyID uuid.UUID) (string, error)

	// GenerateQuoteNumber issues the next sequential quote number (Q-YYYYMMDD-NNNN)
	GenerateQuoteNumber(ctx context.Context, companyID uuid.UUID) (string, error)

	FindByNumber(ctx context.Context, companyID uuid.UUID, bookingNumber string) (*Booking, error)
	FindByCompany(ctx context.Context, companyID uuid.UUID, filter shared.Filter) (shared.Paginated[Booking], error)

	// FindActiveReservations returns the committed line quantities of
	// inventory-holding bookings for one resource within the window
	FindActiveReservations(ctx context.Context, companyID, bookableID uuid.UUID, window valueobject.DateRange) ([]ReservationUsage, error)

	// FindQuotesToExpire returns bookings whose quote is still expirable but
	// whose expiry instant has passed
	FindQuotesToExpire(ctx context.Context, now time.Time, limit int) ([]Booking, error)

	// FindOutstandingForCompany returns non-cancelled bookings with a
	// positive balance due, for the collections sweep and aging report
	FindOutstandingForCompany(ctx context.Context, companyID uuid.UUID) ([]Booking, error)

	// AgingSummary aggregates count and balance per aging bucket
	AgingSummary(ctx context.Context, companyID uuid.UUID) ([]AgingSummaryRow, error)
}
