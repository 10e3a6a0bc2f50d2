package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBookableRepo serves catalog entries from memory
type fakeBookableRepo struct {
	entries map[uuid.UUID]catalog.Bookable
}

func (f *fakeBookableRepo) FindBookable(_ context.Context, _ uuid.UUID, id uuid.UUID) (catalog.Bookable, error) {
	if b, ok := f.entries[id]; ok {
		return b, nil
	}
	return nil, shared.ErrNotFound
}

// fakeReservationRepo answers FindActiveReservations from a fixed slice and
// stubs the rest of the booking repository port
type fakeReservationRepo struct {
	usages []ReservationUsage
}

func (f *fakeReservationRepo) FindByID(context.Context, uuid.UUID) (*Booking, error) {
	return nil, shared.ErrNotFound
}
func (f *fakeReservationRepo) FindByIDForCompany(context.Context, uuid.UUID, uuid.UUID) (*Booking, error) {
	return nil, shared.ErrNotFound
}
func (f *fakeReservationRepo) Save(context.Context, *Booking) error    { return nil }
func (f *fakeReservationRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (f *fakeReservationRepo) SaveWithVersion(context.Context, *Booking, int) error {
	return nil
}
func (f *fakeReservationRepo) ConfirmWithReservation(context.Context, *Booking) error {
	return nil
}
func (f *fakeReservationRepo) GenerateBookingNumber(context.Context, uuid.UUID) (string, error) {
	return "BK-20250701-0001", nil
}
func (f *fakeReservationRepo) GenerateQuoteNumber(context.Context, uuid.UUID) (string, error) {
	return "Q-20250701-0001", nil
}
func (f *fakeReservationRepo) FindByNumber(context.Context, uuid.UUID, string) (*Booking, error) {
	return nil, shared.ErrNotFound
}
func (f *fakeReservationRepo) FindByCompany(context.Context, uuid.UUID, shared.Filter) (shared.Paginated[Booking], error) {
	return shared.Paginated[Booking]{}, nil
}
func (f *fakeReservationRepo) FindActiveReservations(_ context.Context, _ uuid.UUID, bookableID uuid.UUID, window valueobject.DateRange) ([]ReservationUsage, error) {
	out := make([]ReservationUsage, 0)
	for _, u := range f.usages {
		if u.BookableID == bookableID && u.Period.Overlaps(window) {
			out = append(out, u)
		}
	}
	return out, nil
}
func (f *fakeReservationRepo) FindQuotesToExpire(context.Context, time.Time, int) ([]Booking, error) {
	return nil, nil
}
func (f *fakeReservationRepo) FindOutstandingForCompany(context.Context, uuid.UUID) ([]Booking, error) {
	return nil, nil
}
func (f *fakeReservationRepo) AgingSummary(context.Context, uuid.UUID) ([]AgingSummaryRow, error) {
	return nil, nil
}

func day(d int) time.Time {
	return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC)
}

func window(t *testing.T, startDay, endDay int) valueobject.DateRange {
	t.Helper()
	r, err := valueobject.NewDateRange(day(startDay), day(endDay))
	require.NoError(t, err)
	return r
}

func TestCheckAvailability(t *testing.T) {
	companyID := uuid.New()
	ctx := context.Background()

	asset := testAsset(t, companyID, 3, 10000)

	newService := func(usages ...ReservationUsage) *AvailabilityService {
		return NewAvailabilityService(
			&fakeReservationRepo{usages: usages},
			&fakeBookableRepo{entries: map[uuid.UUID]catalog.Bookable{asset.BookableID(): asset}},
		)
	}

	t.Run("unreserved resource offers full quantity", func(t *testing.T) {
		svc := newService()
		result, err := svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 4, 6), 3)
		require.NoError(t, err)

		assert.True(t, result.Available)
		assert.Equal(t, 3, result.AvailableQuantity)
		require.Len(t, result.ByDate, 2)
		assert.Equal(t, 3, result.ByDate[0].Available)
	})

	t.Run("existing reservation reduces the remainder", func(t *testing.T) {
		// Quantity 3 owned; 2 reserved over [day4, day6)
		svc := newService(ReservationUsage{
			BookingID:  uuid.New(),
			BookableID: asset.BookableID(),
			Quantity:   2,
			Period:     window(t, 4, 6),
		})

		result, err := svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 4, 6), 1)
		require.NoError(t, err)
		assert.True(t, result.Available)
		assert.Equal(t, 1, result.AvailableQuantity)

		result, err = svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 4, 6), 2)
		require.NoError(t, err)
		assert.False(t, result.Available)
	})

	t.Run("worst single day binds the whole window", func(t *testing.T) {
		// Two overlapping singles peak at 2 booked on day 5 only
		svc := newService(
			ReservationUsage{BookingID: uuid.New(), BookableID: asset.BookableID(), Quantity: 1, Period: window(t, 4, 6)},
			ReservationUsage{BookingID: uuid.New(), BookableID: asset.BookableID(), Quantity: 1, Period: window(t, 5, 8)},
		)

		result, err := svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 4, 8), 2)
		require.NoError(t, err)
		assert.False(t, result.Available)
		assert.Equal(t, 1, result.AvailableQuantity)

		// Per-day detail shows the uneven occupancy
		byDay := map[int]int{}
		for _, d := range result.ByDate {
			byDay[d.Day.Day()] = d.Booked
		}
		assert.Equal(t, 1, byDay[4])
		assert.Equal(t, 2, byDay[5])
		assert.Equal(t, 1, byDay[6])
		assert.Equal(t, 1, byDay[7])
	})

	t.Run("same day turnover does not collide", func(t *testing.T) {
		// All 3 units reserved through day 6; a new booking starting day 6 is fine
		svc := newService(ReservationUsage{
			BookingID:  uuid.New(),
			BookableID: asset.BookableID(),
			Quantity:   3,
			Period:     window(t, 4, 6),
		})

		result, err := svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 6, 9), 3)
		require.NoError(t, err)
		assert.True(t, result.Available)
		assert.Equal(t, 3, result.AvailableQuantity)
	})

	t.Run("available quantity never exceeds owned quantity", func(t *testing.T) {
		svc := newService()
		qty, err := svc.AvailableQuantity(ctx, companyID, asset.BookableID(), window(t, 4, 6))
		require.NoError(t, err)
		assert.LessOrEqual(t, qty, asset.OwnedQuantity())
	})

	t.Run("services are always available", func(t *testing.T) {
		service, err := catalog.NewServiceItem(companyID, "Delivery crew", valueobject.NewMoneyUSDFromCents(25000))
		require.NoError(t, err)

		svc := NewAvailabilityService(
			&fakeReservationRepo{},
			&fakeBookableRepo{entries: map[uuid.UUID]catalog.Bookable{service.BookableID(): service}},
		)

		result, err := svc.CheckAvailability(ctx, companyID, service.BookableID(), window(t, 4, 6), 10)
		require.NoError(t, err)
		assert.True(t, result.Available)
	})

	t.Run("rejects unknown resources", func(t *testing.T) {
		svc := newService()
		_, err := svc.CheckAvailability(ctx, companyID, uuid.New(), window(t, 4, 6), 1)
		require.Error(t, err)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc := newService()
		_, err := svc.CheckAvailability(ctx, companyID, asset.BookableID(), window(t, 4, 6), 0)
		require.Error(t, err)
	})
}
